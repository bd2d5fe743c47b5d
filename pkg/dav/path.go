package dav

import (
	"path"
	"strings"
)

// CleanPath normalizes a request path into the canonical tree form.
//
// The result always starts with "/" and never ends with "/" (except for the
// root). Paths that try to climb above the root with ".." segments are
// rejected with ErrForbidden instead of being silently clamped, so a request
// can never be resolved outside the mount.
func CleanPath(p string) (string, error) {
	if p == "" {
		return "/", nil
	}

	depth := 0
	for _, segment := range strings.Split(p, "/") {
		switch segment {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return "", NewForbiddenError("path escapes the mount root", p)
			}
		default:
			depth++
		}
	}

	return path.Clean("/" + p), nil
}

// Parent returns the parent path of p. The parent of the root is the root.
func Parent(p string) string {
	return path.Dir(p)
}

// Base returns the last element of p.
func Base(p string) string {
	return path.Base(p)
}

// Join joins a parent path and a child name.
func Join(parent, name string) string {
	return path.Join(parent, name)
}

// IsAncestor reports whether ancestor is a strict ancestor of p.
func IsAncestor(ancestor, p string) bool {
	if ancestor == p {
		return false
	}
	if ancestor == "/" {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// IsWithin reports whether p equals root or lives below it.
func IsWithin(root, p string) bool {
	return root == p || IsAncestor(root, p)
}

// Rebase moves p from under oldRoot to under newRoot. p must be within
// oldRoot.
func Rebase(p, oldRoot, newRoot string) string {
	if p == oldRoot {
		return newRoot
	}
	rel := strings.TrimPrefix(p, oldRoot)
	if oldRoot == "/" {
		rel = p
	}
	return path.Join(newRoot, rel)
}
