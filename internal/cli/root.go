package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/concordia/internal/model"
)

const version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	quiet     bool
	target    string
	baseURL   string
	role      string
	noCache   bool
	logFormat string

	// configErr is set by initConfig and surfaced by the first command that loads config
	configErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "concordia",
	Short: "Concordia - match local files to CMS records and upload them",
	Long: `Concordia pairs locally selected files (report PDFs, spreadsheets, blog
assets) with the records they belong to in the CMS, then uploads them.

Matching is by title: record titles and file names are normalized the
same way (lowercased, qualifier after " - " dropped, punctuation removed)
and compared exactly. Nothing is uploaded until the matched and unmatched
lists have been shown.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "concordia %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.concordia/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "only print warnings, errors and results")
	pf.StringVarP(&target, "target", "t", "reports", "record collection to work against (see config targets)")
	pf.StringVar(&baseURL, "base-url", "", "CMS base URL (overrides cms.base_url)")
	pf.StringVar(&role, "role", "", "CMS role used for permission checks (overrides role)")
	pf.BoolVar(&noCache, "no-cache", false, "always fetch a fresh record list")
	pf.StringVar(&logFormat, "log-format", "", "log format: text or json (overrides log.format)")

	rootCmd.AddCommand(versionCmd)
}

// initConfig layers defaults, the config file and CONCORDIA_* env vars
func initConfig() {
	configErr = nil
	defaults, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		configErr = fmt.Errorf("marshal defaults: %w", err)
		return
	}
	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(bytes.NewReader(defaults)); err != nil {
		configErr = fmt.Errorf("load defaults: %w", err)
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if dir, err := configDir(); err == nil {
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("CONCORDIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// keys left out of the defaults document still need an env binding
	for _, key := range []string{"cms.token", "cms.http_proxy", "cms.https_proxy"} {
		_ = viper.BindEnv(key)
	}

	if err := viper.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("read config: %w", err)
		}
	}
}

// loadConfig decodes the layered settings and applies explicit flags
func loadConfig(cmd *cobra.Command) (*model.Config, error) {
	if configErr != nil {
		return nil, configErr
	}

	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.CMS.BaseURL = baseURL
	}
	if flags.Changed("role") {
		cfg.Role = role
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.Cache.Dir == "" {
		if dir, err := configDir(); err == nil {
			cfg.Cache.Dir = filepath.Join(dir, "cache")
		} else {
			cfg.Cache.Enabled = false
		}
	}

	return cfg, nil
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".concordia"), nil
}
