// Package content defines the resource tree that WebDAV mounts expose.
//
// A Tree bridges protocol operations to a real (or in-memory) filesystem. Every
// implementation translates storage errors into the dav error taxonomy, so the
// protocol layer never has to interpret raw I/O errors.
package content

import (
	"context"
	"io"

	"github.com/marmos91/dittodav/pkg/dav"
)

// Tree is the capability set every mount's resource tree provides.
//
// All paths are tree paths ("/" is the mount root). Implementations clean
// incoming paths and reject any path escaping the root with dav.ErrForbidden.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Individual operations are
// not serialized against each other: two concurrent writers to the same path
// are protected at the protocol level by the lock manager, not here.
type Tree interface {
	// Resolve returns the resource at path.
	//
	// Errors: dav.ErrNotFound
	Resolve(ctx context.Context, path string) (*dav.Resource, error)

	// List returns the direct children of a collection, sorted by name.
	//
	// Errors: dav.ErrNotFound, dav.ErrConflict (path is not a collection)
	List(ctx context.Context, path string) ([]*dav.Resource, error)

	// Read opens a file for reading. The caller must close the returned reader.
	//
	// Errors: dav.ErrNotFound, dav.ErrConflict (path is a collection)
	Read(ctx context.Context, path string) (io.ReadSeekCloser, *dav.Resource, error)

	// Write stores the content of r at path and reports whether the resource
	// was created. The content is replaced atomically: readers observe either
	// the old or the new content.
	//
	// Errors: dav.ErrConflict (parent missing), dav.ErrPreconditionFailed
	// (overwrite is false and the resource exists), dav.ErrMethodNotAllowed
	// (path is a collection)
	Write(ctx context.Context, path string, r io.Reader, overwrite bool) (*dav.Resource, bool, error)

	// CreateCollection creates a new, empty collection.
	//
	// Errors: dav.ErrMethodNotAllowed (path exists), dav.ErrConflict (parent
	// missing or not a collection)
	CreateCollection(ctx context.Context, path string) (*dav.Resource, error)

	// Delete removes path and, for collections, everything below it.
	//
	// Entries that cannot be removed are returned as failures; their ancestors
	// are left in place and are not reported. The returned error is set when
	// the operation could not start (e.g. path not found) or was cancelled.
	Delete(ctx context.Context, path string, opts DeleteOptions) ([]Failure, error)

	// Move renames src to dst and reports whether dst was created.
	//
	// Errors: dav.ErrNotFound (src), dav.ErrConflict (dst parent missing),
	// dav.ErrPreconditionFailed (dst exists and overwrite is false),
	// dav.ErrForbidden (dst inside src, or either is the root)
	Move(ctx context.Context, src, dst string, overwrite bool) (bool, error)

	// Copy duplicates src at dst. With dav.DepthZero only the resource itself
	// is copied (an empty collection for collections); with
	// dav.DepthInfinity the whole subtree is copied. Failures of individual
	// descendants are returned without aborting the copy.
	Copy(ctx context.Context, src, dst string, overwrite bool, depth dav.Depth) (bool, []Failure, error)

	// Walk visits path and its descendants in pre-order, down to depth.
	// fn receives the visited resource and its level below path (0 for path
	// itself). Returning an error from fn stops the walk with that error.
	Walk(ctx context.Context, path string, depth dav.Depth, fn WalkFunc) error

	// ContentType returns the media type of a file, detected from its
	// extension or, failing that, from its first bytes.
	ContentType(ctx context.Context, path string) (string, error)
}

// WalkFunc is called for every resource visited by Tree.Walk.
type WalkFunc func(res *dav.Resource, level int) error

// DeleteOptions customizes a recursive delete.
type DeleteOptions struct {
	// Keep is consulted for every entry before it is removed. A non-nil error
	// leaves the entry (and therefore its ancestors) in place and is reported
	// as a failure for that entry.
	Keep func(path string) error

	// Removed is called after each entry is removed, children before their
	// collection.
	Removed func(path string)
}

// Failure describes one entry a multi-resource operation could not process.
type Failure struct {
	Path string
	Err  error
}
