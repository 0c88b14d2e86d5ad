package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/concordia/internal/cache"
	"github.com/ppiankov/concordia/internal/output"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the record snapshot cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached record snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Cache.Dir == "" {
			return fmt.Errorf("no cache directory configured")
		}

		if err := cache.NewDiskStore(cfg.Cache.Dir, cfg.Cache.TTL).Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		output.NewPrinter(quiet).Success("Cleared %s", cfg.Cache.Dir)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
