// Package props defines the storage of dead properties.
//
// Dead properties are the client-defined (name, value) pairs set through
// PROPPATCH. They are kept in a side table keyed by tree path, so the store
// follows resources explicitly: the dispatcher calls Delete, Move and Copy
// alongside the matching resource tree operation.
package props

import (
	"context"

	"github.com/marmos91/dittodav/pkg/dav"
)

// Store persists dead properties by resource path.
//
// Paths are clean tree paths ("/" is the root). Operations that take a path
// also apply to every descendant of that path.
//
// Thread Safety:
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the dead properties of path. A path without properties
	// returns an empty map, never an error.
	Get(ctx context.Context, path string) (map[dav.PropName]dav.Property, error)

	// Patch applies set and remove instructions in order. Either every
	// instruction is applied or none is. Removing an absent property is a
	// no-op.
	Patch(ctx context.Context, path string, patches []dav.Patch) error

	// Delete drops the properties of path and all its descendants.
	Delete(ctx context.Context, path string) error

	// Move re-keys the properties of src and its descendants under dst.
	// Properties previously stored at or below dst are dropped.
	Move(ctx context.Context, src, dst string) error

	// Copy duplicates the properties of src under dst, including
	// descendants when recursive is true. Properties previously stored at or
	// below dst are dropped.
	Copy(ctx context.Context, src, dst string, recursive bool) error

	// Close releases the resources held by the store.
	Close() error
}

// PropertyError attributes a Patch failure to one property.
//
// Backends return it when the failure can be pinned on a single instruction,
// so callers can report that property as the cause and the rest of the patch
// as a failed dependency.
type PropertyError struct {
	Name dav.PropName
	Err  error
}

func (e *PropertyError) Error() string {
	return "property " + e.Name.String() + ": " + e.Err.Error()
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}
