package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittodav/pkg/adapter/webdav"
	"github.com/marmos91/dittodav/pkg/lock"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyPropertiesDefaults(&cfg.Properties)
	applyLockDefaults(&cfg.Locks)

	if len(cfg.Folders) == 0 {
		cfg.Folders = []FolderConfig{
			{
				URL:           "files",
				Path:          "data",
				ShowInBrowser: true,
			},
		}
	}
	applyFolderDefaults(cfg.Folders)

	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = "."
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyPropertiesDefaults sets property store defaults.
func applyPropertiesDefaults(cfg *PropertiesConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Applied for every type so generated config files show them
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "properties"
	}
}

// applyLockDefaults fills in unset lock limits.
func applyLockDefaults(cfg *lock.Config) {
	defaults := lock.DefaultConfig()
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = defaults.DefaultTimeout
	}
	if cfg.MaxTimeout == 0 {
		cfg.MaxTimeout = defaults.MaxTimeout
	}
	// AllowInfiniteTimeout defaults to false
}

// applyFolderDefaults sets folder defaults.
func applyFolderDefaults(folders []FolderConfig) {
	for i := range folders {
		folder := &folders[i]

		folder.URL = strings.Trim(folder.URL, " ")
		if folder.Content == "" {
			folder.Content = "filesystem"
		}
		if folder.Path == "" && folder.Content == "filesystem" {
			folder.Path = folder.URL
		}
		// ShowInBrowser defaults to false
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// A WebDAV section left entirely unset means "enabled with defaults".
	// Users can set enabled: false together with a port to disable it.
	if !cfg.WebDAV.Enabled && cfg.WebDAV.Port == 0 {
		cfg.WebDAV.Enabled = true
	}

	applyWebDAVDefaults(&cfg.WebDAV)
}

// applyWebDAVDefaults sets WebDAV adapter defaults.
func applyWebDAVDefaults(cfg *webdav.WebDAVConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/dav"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	// MaxPropfindDepth and RateLimit default to 0 (unlimited)
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Properties: PropertiesConfig{
			Memory: make(map[string]any),
			Badger: make(map[string]any),
		},
		Folders: []FolderConfig{
			{
				URL:           "files",
				Path:          "data",
				ShowInBrowser: true,
				Content:       "filesystem",
			},
		},
		Adapters: AdaptersConfig{
			WebDAV: webdav.WebDAVConfig{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
