package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dittodav/pkg/store/props"
	"github.com/marmos91/dittodav/pkg/store/props/badger"
	propsmemory "github.com/marmos91/dittodav/pkg/store/props/memory"
	"github.com/mitchellh/mapstructure"
)

// CreatePropertyStore creates the dead-property store described by cfg.
//
// Supported types:
//   - "memory": Uses pkg/store/props/memory (lost on restart)
//   - "badger": Uses pkg/store/props/badger (persistent)
//
// Relative database paths are resolved against server.base_dir.
func CreatePropertyStore(ctx context.Context, cfg *Config) (props.Store, error) {
	switch cfg.Properties.Type {
	case "memory":
		return createMemoryPropertyStore(ctx, cfg.Properties.Memory)
	case "badger":
		return createBadgerPropertyStore(ctx, cfg, cfg.Properties.Badger)
	default:
		return nil, fmt.Errorf("unknown property store type: %q", cfg.Properties.Type)
	}
}

// createMemoryPropertyStore creates an in-memory property store.
func createMemoryPropertyStore(ctx context.Context, _ map[string]any) (props.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return propsmemory.NewMemoryPropertyStore(), nil
}

// createBadgerPropertyStore creates a BadgerDB property store.
func createBadgerPropertyStore(ctx context.Context, cfg *Config, options map[string]any) (props.Store, error) {
	var storeCfg badger.BadgerPropertyStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger property store config: %w", err)
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger property store: db_path is required")
	}
	storeCfg.DBPath = cfg.ResolvePath(storeCfg.DBPath)

	store, err := badger.NewBadgerPropertyStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger property store: %w", err)
	}
	return store, nil
}
