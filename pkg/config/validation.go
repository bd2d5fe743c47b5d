package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tags cover field-level constraints; validateCustomRules covers the
// cross-field ones.
//
// Returns an error describing the first validation failure.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Folders) == 0 {
		return fmt.Errorf("folders: at least one folder must be configured")
	}

	urls := make(map[string]bool)
	for i, folder := range cfg.Folders {
		if urls[folder.URL] {
			return fmt.Errorf("folders[%d]: duplicate folder url %q", i, folder.URL)
		}
		urls[folder.URL] = true

		if folder.URL == "." || folder.URL == ".." {
			return fmt.Errorf("folders[%d]: url %q is not a valid path segment", i, folder.URL)
		}
		if folder.Content == "filesystem" && folder.Path == "" {
			return fmt.Errorf("folders[%d]: path is required for filesystem content", i)
		}
	}

	if !cfg.Adapters.WebDAV.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Adapters.WebDAV.Port {
		return fmt.Errorf("server.metrics.port: port %d is already used by the WebDAV adapter", cfg.Server.Metrics.Port)
	}

	if cfg.Locks.MaxTimeout > 0 && cfg.Locks.DefaultTimeout > cfg.Locks.MaxTimeout {
		return fmt.Errorf("locks: default_timeout %v exceeds max_timeout %v",
			cfg.Locks.DefaultTimeout, cfg.Locks.MaxTimeout)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
