package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidPropertyStoreType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Properties.Type = "postgres"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unknown property store type")
	}
}

func TestValidate_ZeroShutdownTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.ShutdownTimeout = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero shutdown timeout")
	}
}

func TestValidate_Folders(t *testing.T) {
	tests := []struct {
		name    string
		folders []FolderConfig
		wantErr string
	}{
		{
			name:    "NoFolders",
			folders: nil,
			wantErr: "at least one folder",
		},
		{
			name:    "EmptyURL",
			folders: []FolderConfig{{URL: "", Path: "x", Content: "filesystem"}},
			wantErr: "required",
		},
		{
			name:    "SlashInURL",
			folders: []FolderConfig{{URL: "a/b", Path: "x", Content: "filesystem"}},
			wantErr: "excludesall",
		},
		{
			name:    "DotURL",
			folders: []FolderConfig{{URL: "..", Path: "x", Content: "filesystem"}},
			wantErr: "not a valid path segment",
		},
		{
			name: "DuplicateURL",
			folders: []FolderConfig{
				{URL: "files", Path: "a", Content: "filesystem"},
				{URL: "files", Path: "b", Content: "filesystem"},
			},
			wantErr: "duplicate folder url",
		},
		{
			name:    "UnknownContent",
			folders: []FolderConfig{{URL: "files", Path: "a", Content: "s3"}},
			wantErr: "oneof",
		},
		{
			name:    "FilesystemWithoutPath",
			folders: []FolderConfig{{URL: "files", Content: "filesystem"}},
			wantErr: "path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Folders = tt.folders

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("Expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_CaseSensitiveURLsAreDistinct(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Folders = []FolderConfig{
		{URL: "Files", Path: "a", Content: "filesystem"},
		{URL: "files", Path: "b", Content: "filesystem"},
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected urls differing in case to be accepted, got: %v", err)
	}
}

func TestValidate_NoAdapterEnabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.WebDAV.Enabled = false

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "at least one adapter") {
		t.Fatalf("Expected adapter error, got: %v", err)
	}
}

func TestValidate_InvalidWebDAVPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapters.WebDAV.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for out-of-range port")
	}
}

func TestValidate_MetricsPortClash(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Metrics.Enabled = true
	cfg.Server.Metrics.Port = cfg.Adapters.WebDAV.Port

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for metrics port clashing with WebDAV")
	}
}

func TestValidate_LockTimeouts(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Locks.DefaultTimeout = 2 * time.Hour
	cfg.Locks.MaxTimeout = time.Hour

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for default_timeout above max_timeout")
	}

	cfg.Locks.MaxTimeout = 0
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected uncapped max_timeout to accept any default, got: %v", err)
	}
}
