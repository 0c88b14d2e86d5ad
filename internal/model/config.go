package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Config holds every setting the CLI reads from flags, env and config file
type Config struct {
	Role    string                  `yaml:"role" mapstructure:"role"`
	CMS     CMSConfig               `yaml:"cms" mapstructure:"cms"`
	Targets map[string]TargetConfig `yaml:"targets" mapstructure:"targets"`
	Match   MatchConfig             `yaml:"match" mapstructure:"match"`
	Upload  UploadConfig            `yaml:"upload" mapstructure:"upload"`
	Cache   CacheConfig             `yaml:"cache" mapstructure:"cache"`
	Intake  IntakeConfig            `yaml:"intake" mapstructure:"intake"`
	Log     LogConfig               `yaml:"log" mapstructure:"log"`
}

// CMSConfig describes how to reach the CMS API
type CMSConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	Token      string        `yaml:"token,omitempty" mapstructure:"token"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// TargetConfig names the endpoints and field names of one record collection
type TargetConfig struct {
	Section     string `yaml:"section" mapstructure:"section"`
	RecordsPath string `yaml:"records_path" mapstructure:"records_path"`
	UploadPath  string `yaml:"upload_path" mapstructure:"upload_path"`
	TitleField  string `yaml:"title_field" mapstructure:"title_field"`
	IDField     string `yaml:"id_field" mapstructure:"id_field"`
	FileField   string `yaml:"file_field" mapstructure:"file_field"`
}

// MatchConfig tunes normalization and collision handling
type MatchConfig struct {
	Delimiter       string `yaml:"delimiter" mapstructure:"delimiter"`
	FoldAccents     bool   `yaml:"fold_accents" mapstructure:"fold_accents"`
	CollisionPolicy string `yaml:"collision_policy" mapstructure:"collision_policy"`
}

// UploadConfig controls batching and pacing
type UploadConfig struct {
	BatchSize         int     `yaml:"batch_size" mapstructure:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig controls record snapshot caching
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// IntakeConfig controls which local files are picked up
type IntakeConfig struct {
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
	Recursive  bool     `yaml:"recursive" mapstructure:"recursive"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Role: "editor",
		CMS: CMSConfig{
			BaseURL:   "http://localhost:3000",
			Timeout:   60 * time.Second,
			UserAgent: "Concordia/0.1 (+https://github.com/ppiankov/concordia)",
		},
		Targets: map[string]TargetConfig{
			"reports": {
				Section:     "reports",
				RecordsPath: "/api/reports",
				UploadPath:  "/api/reports/upload-file",
				TitleField:  "title",
				IDField:     "recordId",
				FileField:   "file",
			},
			"blogs": {
				Section:     "blogs",
				RecordsPath: "/api/blogs",
				UploadPath:  "/api/blogs/upload-file",
				TitleField:  "title",
				IDField:     "recordId",
				FileField:   "file",
			},
		},
		Match: MatchConfig{
			Delimiter:       " - ",
			CollisionPolicy: "last-wins",
		},
		Upload: UploadConfig{
			BatchSize:         5,
			RequestsPerSecond: 2,
			Burst:             1,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		Intake: IntakeConfig{
			Extensions: []string{".pdf", ".xlsx", ".xls", ".csv", ".docx", ".pptx"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Target looks up a target by name, filling blank fields from defaults
func (c *Config) Target(name string) (TargetConfig, error) {
	t, ok := c.Targets[name]
	if !ok {
		return TargetConfig{}, fmt.Errorf("unknown target %q (known: %s)", name, strings.Join(c.TargetNames(), ", "))
	}
	if t.Section == "" {
		t.Section = name
	}
	if t.TitleField == "" {
		t.TitleField = "title"
	}
	if t.IDField == "" {
		t.IDField = "recordId"
	}
	if t.FileField == "" {
		t.FileField = "file"
	}
	if t.RecordsPath == "" || t.UploadPath == "" {
		return TargetConfig{}, fmt.Errorf("target %q: records_path and upload_path are required", name)
	}
	return t, nil
}

// TargetNames returns configured target names in sorted order
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
