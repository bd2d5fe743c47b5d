package registry

import (
	"path"
	"strings"

	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/props"
)

// Folder is one entry of the configured folder table: a URL segment bound
// to a filesystem directory.
type Folder struct {
	// URL is the single path segment the folder is served under
	URL string

	// Path is the filesystem directory exposed by the folder
	Path string

	// ShowInBrowser enables the HTML listing for browsers
	ShowInBrowser bool
}

// Mount is a folder resolved against the route prefix.
type Mount struct {
	// Name is the URL segment identifying the mount
	Name string

	// FilesystemRoot is the directory the mount exposes
	FilesystemRoot string

	// URLBasePrefix is the URL path of the mount root, with a trailing slash
	// (e.g. "/dav/photos/")
	URLBasePrefix string

	// EnableBrowsing serves HTML listings of collections to browsers
	EnableBrowsing bool
}

// ResolveMount finds the folder served under segment.
//
// Matching is exact and case-sensitive. An empty segment, a segment holding
// a slash, or one naming no folder yields false.
//
// Parameters:
//   - prefix: Route prefix the mounts are served under (e.g. "/dav")
//   - folders: Configured folder table
//   - segment: First path segment after the prefix
//
// Returns:
//   - Mount: The resolved mount
//   - bool: Whether a folder matched
func ResolveMount(prefix string, folders []Folder, segment string) (Mount, bool) {
	if segment == "" || strings.Contains(segment, "/") {
		return Mount{}, false
	}

	for _, f := range folders {
		if f.URL != segment {
			continue
		}
		return Mount{
			Name:           f.URL,
			FilesystemRoot: f.Path,
			URLBasePrefix:  path.Join("/", prefix, f.URL) + "/",
			EnableBrowsing: f.ShowInBrowser,
		}, true
	}
	return Mount{}, false
}

// MountConfig contains everything needed to activate a mount.
type MountConfig struct {
	Mount Mount

	// Tree is the mount's resource tree
	Tree content.Tree

	// PropertyStore names the registered dead-property store the mount
	// uses. Mounts sharing a store are isolated by key prefix.
	PropertyStore string

	// Locks configures the mount's lock manager
	Locks lock.Config
}

// ActiveMount is a mount with its live state: resource tree, scoped
// property store and lock manager.
type ActiveMount struct {
	Mount

	Tree  content.Tree
	Props props.Store
	Locks *lock.Manager

	// PropertyStore is the name of the backing property store
	PropertyStore string
}
