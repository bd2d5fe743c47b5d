// Package dav holds the domain types shared by the resource tree, the
// property store, the lock manager and the WebDAV protocol handlers.
package dav

import (
	"fmt"
	"time"
)

// Resource is a node of the virtual tree exposed by a mount.
//
// A resource is either a file or a collection. Path is always clean, slash
// separated and rooted at the mount ("/" is the mount root).
type Resource struct {
	// Path is the canonical path of the resource relative to the tree root
	Path string

	// IsCollection is true for collections (directories)
	IsCollection bool

	// ContentLength is the size in bytes (files only)
	ContentLength int64

	// LastModified is the modification time reported by the filesystem
	LastModified time.Time

	// ContentType is the media type of a file, empty for collections or
	// when it has not been detected yet
	ContentType string
}

// DisplayName returns the last path segment, or "/" for the root.
func (r *Resource) DisplayName() string {
	if r.Path == "/" {
		return "/"
	}
	return Base(r.Path)
}

// ETag returns the entity tag of the resource, derived from the modification
// time and size. The returned value is quoted.
func (r *Resource) ETag() string {
	return ComputeETag(r.LastModified, r.ContentLength)
}

// ComputeETag builds a strong entity tag from a modification time and a size.
func ComputeETag(modTime time.Time, size int64) string {
	return fmt.Sprintf(`"%x%x"`, modTime.UnixNano(), size)
}

// Depth is the value of the Depth request header.
type Depth int

const (
	// DepthZero applies an operation to the resource only
	DepthZero Depth = 0

	// DepthOne applies an operation to the resource and its direct children
	DepthOne Depth = 1

	// DepthInfinity applies an operation to the whole subtree
	DepthInfinity Depth = -1
)

// String returns the header representation of the depth.
func (d Depth) String() string {
	switch d {
	case DepthZero:
		return "0"
	case DepthOne:
		return "1"
	default:
		return "infinity"
	}
}
