// Package memory provides a volatile dead property store.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/store/props"
)

// MemoryPropertyStore keeps dead properties in a map keyed by path.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Values are copied on the
// way in and out so callers never share buffers with the store.
type MemoryPropertyStore struct {
	mu    sync.RWMutex
	props map[string]map[dav.PropName]dav.Property
}

var _ props.Store = (*MemoryPropertyStore)(nil)

// NewMemoryPropertyStore creates an empty store.
func NewMemoryPropertyStore() *MemoryPropertyStore {
	return &MemoryPropertyStore{
		props: make(map[string]map[dav.PropName]dav.Property),
	}
}

func cloneProperty(p dav.Property) dav.Property {
	p.InnerXML = append([]byte(nil), p.InnerXML...)
	return p
}

// Get returns a copy of the properties stored at path.
func (s *MemoryPropertyStore) Get(ctx context.Context, path string) (map[dav.PropName]dav.Property, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[dav.PropName]dav.Property, len(s.props[path]))
	for name, prop := range s.props[path] {
		result[name] = cloneProperty(prop)
	}
	return result, nil
}

// Patch applies patches to a working copy and swaps it in, so a failure
// leaves the stored properties untouched.
func (s *MemoryPropertyStore) Patch(ctx context.Context, path string, patches []dav.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := make(map[dav.PropName]dav.Property, len(s.props[path])+len(patches))
	for name, prop := range s.props[path] {
		working[name] = prop
	}

	for _, patch := range patches {
		if patch.Remove {
			delete(working, patch.Property.Name)
			continue
		}
		working[patch.Property.Name] = cloneProperty(patch.Property)
	}

	if len(working) == 0 {
		delete(s.props, path)
		return nil
	}
	s.props[path] = working
	return nil
}

// Delete drops path and its descendants.
func (s *MemoryPropertyStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(path)
	return nil
}

func (s *MemoryPropertyStore) deleteLocked(root string) {
	for p := range s.props {
		if dav.IsWithin(root, p) {
			delete(s.props, p)
		}
	}
}

// Move re-keys src and its descendants under dst.
func (s *MemoryPropertyStore) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if src == dst {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	moved := make(map[string]map[dav.PropName]dav.Property)
	for p, entry := range s.props {
		if dav.IsWithin(src, p) {
			moved[dav.Rebase(p, src, dst)] = entry
			delete(s.props, p)
		}
	}

	s.deleteLocked(dst)
	for p, entry := range moved {
		s.props[p] = entry
	}
	return nil
}

// Copy duplicates src (and its descendants when recursive) under dst.
func (s *MemoryPropertyStore) Copy(ctx context.Context, src, dst string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if src == dst {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(map[string]map[dav.PropName]dav.Property)
	for p, entry := range s.props {
		if p != src && !(recursive && dav.IsAncestor(src, p)) {
			continue
		}
		clone := make(map[dav.PropName]dav.Property, len(entry))
		for name, prop := range entry {
			clone[name] = cloneProperty(prop)
		}
		copied[dav.Rebase(p, src, dst)] = clone
	}

	s.deleteLocked(dst)
	for p, entry := range copied {
		s.props[p] = entry
	}
	return nil
}

// Close is a no-op.
func (s *MemoryPropertyStore) Close() error {
	return nil
}
