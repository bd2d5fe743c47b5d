package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/store/props"
	"github.com/samber/lo"
)

// Registry manages all named resources: dead-property stores and active
// mounts. It provides thread-safe registration and lookup of all server
// resources.
//
// Property stores are shared: several mounts may use the same store, each
// through a view scoped to its own name. Every mount owns its tree and its
// lock manager.
//
// Example usage:
//
//	reg := NewRegistry()
//	reg.RegisterPropertyStore("default", badgerStore)
//	reg.AddMount(ctx, &MountConfig{Mount: m, Tree: tree, PropertyStore: "default"})
//
//	mount, _ := reg.GetMount("photos")
type Registry struct {
	mu     sync.RWMutex
	props  map[string]props.Store
	mounts map[string]*ActiveMount
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		props:  make(map[string]props.Store),
		mounts: make(map[string]*ActiveMount),
	}
}

// RegisterPropertyStore adds a named property store to the registry.
// Returns an error if a store with the same name already exists.
func (r *Registry) RegisterPropertyStore(name string, store props.Store) error {
	if store == nil {
		return fmt.Errorf("cannot register nil property store")
	}
	if name == "" {
		return fmt.Errorf("cannot register property store with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.props[name]; exists {
		return fmt.Errorf("property store %q already registered", name)
	}

	r.props[name] = store
	return nil
}

// GetPropertyStore retrieves a property store by name.
func (r *Registry) GetPropertyStore(name string) (props.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, exists := r.props[name]
	if !exists {
		return nil, fmt.Errorf("property store %q not found", name)
	}
	return store, nil
}

// AddMount activates a mount.
//
// The mount gets a view of its property store scoped to its name and a
// fresh lock manager.
//
// Returns an error if:
//   - The mount has no name or no tree
//   - A mount with the same name already exists
//   - The referenced property store doesn't exist
func (r *Registry) AddMount(ctx context.Context, cfg *MountConfig) error {
	if cfg.Mount.Name == "" {
		return fmt.Errorf("cannot add mount with empty name")
	}
	if cfg.Tree == nil {
		return fmt.Errorf("mount %q has no resource tree", cfg.Mount.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.mounts[cfg.Mount.Name]; exists {
		return fmt.Errorf("mount %q already exists", cfg.Mount.Name)
	}

	store, exists := r.props[cfg.PropertyStore]
	if !exists {
		return fmt.Errorf("property store %q not found", cfg.PropertyStore)
	}

	r.mounts[cfg.Mount.Name] = &ActiveMount{
		Mount:         cfg.Mount,
		Tree:          cfg.Tree,
		Props:         props.NewPrefixed(store, cfg.Mount.Name),
		Locks:         lock.NewManager(cfg.Locks),
		PropertyStore: cfg.PropertyStore,
	}

	logger.Debug("Mount %q added: root=%s url=%s store=%s", cfg.Mount.Name,
		cfg.Mount.FilesystemRoot, cfg.Mount.URLBasePrefix, cfg.PropertyStore)
	return nil
}

// GetMount retrieves an active mount by name.
func (r *Registry) GetMount(name string) (*ActiveMount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mount, exists := r.mounts[name]
	if !exists {
		return nil, fmt.Errorf("mount %q not found", name)
	}
	return mount, nil
}

// ListMounts returns the names of all active mounts, sorted.
// The returned slice is a copy and safe to modify.
func (r *Registry) ListMounts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.mounts)
	slices.Sort(names)
	return names
}

// ListMountsUsingPropertyStore returns the names of the mounts backed by the
// specified property store, sorted.
func (r *Registry) ListMountsUsingPropertyStore(storeName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.FilterMap(lo.Values(r.mounts), func(m *ActiveMount, _ int) (string, bool) {
		return m.Name, m.PropertyStore == storeName
	})
	slices.Sort(names)
	return names
}

// CountMounts returns the number of active mounts.
func (r *Registry) CountMounts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mounts)
}

// CountPropertyStores returns the number of registered property stores.
func (r *Registry) CountPropertyStores() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.props)
}

// Close closes every registered property store and forgets all mounts.
// Errors are joined; every store is closed even if one fails.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, store := range r.props {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close property store %q: %w", name, err))
		}
	}

	r.props = make(map[string]props.Store)
	r.mounts = make(map[string]*ActiveMount)
	return errors.Join(errs...)
}
