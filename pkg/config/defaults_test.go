package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" || cfg.Logging.Output != "stdout" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Server.BaseDir != "." {
		t.Errorf("Expected base_dir '.', got %q", cfg.Server.BaseDir)
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Server.Metrics.Port != 9090 {
		t.Errorf("Expected metrics port 9090, got %d", cfg.Server.Metrics.Port)
	}
	if cfg.Properties.Badger["db_path"] != "properties" {
		t.Errorf("Expected default badger db_path, got %v", cfg.Properties.Badger["db_path"])
	}
	if cfg.Locks.MaxTimeout != time.Hour {
		t.Errorf("Expected max lock timeout 1h, got %v", cfg.Locks.MaxTimeout)
	}
	if cfg.Locks.AllowInfiniteTimeout {
		t.Error("Expected infinite lock timeouts disallowed by default")
	}

	if len(cfg.Folders) != 1 {
		t.Fatalf("Expected one default folder, got %d", len(cfg.Folders))
	}
	folder := cfg.Folders[0]
	if folder.URL != "files" || folder.Path != "data" || !folder.ShowInBrowser || folder.Content != "filesystem" {
		t.Errorf("Unexpected default folder: %+v", folder)
	}

	dav := cfg.Adapters.WebDAV
	if !dav.Enabled {
		t.Error("Expected WebDAV adapter enabled by default")
	}
	if dav.ReadTimeout != 10*time.Minute || dav.IdleTimeout != 2*time.Minute || dav.ShutdownTimeout != 30*time.Second {
		t.Errorf("Unexpected WebDAV timeouts: %+v", dav)
	}
	if dav.MaxPropfindDepth != 0 || dav.RateLimit.RequestsPerSecond != 0 {
		t.Errorf("Expected unlimited depth and rate, got %+v", dav)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "debug", Format: "json", Output: "/var/log/dav.log"},
		Server:  ServerConfig{ShutdownTimeout: 5 * time.Second, BaseDir: "/srv"},
		Folders: []FolderConfig{{URL: "music", Path: "/media/music"}},
	}
	cfg.Adapters.WebDAV.Port = 8443
	cfg.Adapters.WebDAV.Prefix = "/"
	cfg.Locks.DefaultTimeout = time.Minute

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "/var/log/dav.log" {
		t.Errorf("Expected output preserved, got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second || cfg.Server.BaseDir != "/srv" {
		t.Errorf("Expected server settings preserved, got %+v", cfg.Server)
	}
	if len(cfg.Folders) != 1 || cfg.Folders[0].URL != "music" {
		t.Errorf("Expected configured folder kept, got %+v", cfg.Folders)
	}
	if cfg.Adapters.WebDAV.Port != 8443 || cfg.Adapters.WebDAV.Prefix != "/" {
		t.Errorf("Expected WebDAV settings preserved, got %+v", cfg.Adapters.WebDAV)
	}
	if cfg.Adapters.WebDAV.Enabled {
		t.Error("Expected an explicitly configured port to leave enabled untouched")
	}
	if cfg.Locks.DefaultTimeout != time.Minute {
		t.Errorf("Expected lock timeout preserved, got %v", cfg.Locks.DefaultTimeout)
	}
}

func TestApplyFolderDefaults(t *testing.T) {
	folders := []FolderConfig{
		{URL: "docs"},
		{URL: "scratch", Content: "memory"},
		{URL: "media", Path: "/mnt/media"},
	}
	applyFolderDefaults(folders)

	if folders[0].Content != "filesystem" || folders[0].Path != "docs" {
		t.Errorf("Expected filesystem folder defaulting its path to the url, got %+v", folders[0])
	}
	if folders[1].Path != "" {
		t.Errorf("Expected memory folder without a path, got %+v", folders[1])
	}
	if folders[2].Path != "/mnt/media" {
		t.Errorf("Expected explicit path kept, got %+v", folders[2])
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected default config to validate, got: %v", err)
	}
}
