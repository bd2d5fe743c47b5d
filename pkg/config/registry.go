package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/registry"
)

// PropertyStoreName is the name the configured property store is
// registered under.
const PropertyStoreName = "default"

// InitializeRegistry creates a fully configured Registry from the provided configuration.
//
// This function orchestrates the complete initialization process:
//  1. Creates and registers the property store from cfg.Properties
//  2. Creates one resource tree per folder
//  3. Resolves every folder into a mount under the WebDAV prefix and adds it
//
// On failure everything created so far is closed.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	reg, err := config.InitializeRegistry(ctx, cfg)
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
func InitializeRegistry(ctx context.Context, cfg *Config) (*registry.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if len(cfg.Folders) == 0 {
		return nil, fmt.Errorf("no folders configured: at least one folder is required")
	}

	logger.Debug("Initializing registry from configuration")

	reg := registry.NewRegistry()

	store, err := CreatePropertyStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create property store: %w", err)
	}
	if err := reg.RegisterPropertyStore(PropertyStoreName, store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register property store: %w", err)
	}
	logger.Debug("Property store %q registered (type: %s)", PropertyStoreName, cfg.Properties.Type)

	if err := addMounts(ctx, reg, cfg); err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("failed to add mounts: %w", err)
	}
	logger.Info("Property store %q serves mounts: %s", PropertyStoreName,
		strings.Join(reg.ListMountsUsingPropertyStore(PropertyStoreName), ", "))

	return reg, nil
}

// RegistryFolders converts the folder configuration into the registry's
// folder table, with paths resolved against server.base_dir.
func (c *Config) RegistryFolders() []registry.Folder {
	folders := make([]registry.Folder, 0, len(c.Folders))
	for _, f := range c.Folders {
		folders = append(folders, registry.Folder{
			URL:           f.URL,
			Path:          c.ResolvePath(f.Path),
			ShowInBrowser: f.ShowInBrowser,
		})
	}
	return folders
}

// addMounts creates a tree for every folder and adds it as a mount.
func addMounts(ctx context.Context, reg *registry.Registry, cfg *Config) error {
	folders := cfg.RegistryFolders()

	for _, folderCfg := range cfg.Folders {
		mount, ok := registry.ResolveMount(cfg.Adapters.WebDAV.Prefix, folders, folderCfg.URL)
		if !ok {
			return fmt.Errorf("folder %q: invalid url", folderCfg.URL)
		}

		tree, err := CreateTree(ctx, cfg, folderCfg)
		if err != nil {
			return fmt.Errorf("folder %q: %w", folderCfg.URL, err)
		}

		if err := reg.AddMount(ctx, &registry.MountConfig{
			Mount:         mount,
			Tree:          tree,
			PropertyStore: PropertyStoreName,
			Locks:         cfg.Locks,
		}); err != nil {
			return fmt.Errorf("folder %q: %w", folderCfg.URL, err)
		}

		logger.Debug("Folder %q mounted at %s (content: %s, browsing: %v)",
			folderCfg.URL, mount.URLBasePrefix, folderCfg.Content, folderCfg.ShowInBrowser)
	}

	return nil
}
