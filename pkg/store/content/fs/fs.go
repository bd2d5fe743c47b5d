// Package fs implements the resource tree on top of an afero filesystem.
//
// NewFSTree roots the tree in a directory of the local filesystem through an
// afero.BasePathFs, so no tree path can reach outside the mount root. New
// accepts any afero.Fs, which the memory package and the tests use with an
// afero.MemMapFs.
package fs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"sort"

	"github.com/gabriel-vasile/mimetype"
	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/spf13/afero"
)

// sniffLen is the number of leading bytes read to detect a content type.
const sniffLen = 3072

// Tree implements content.Tree over an afero.Fs.
//
// Thread Safety:
// The underlying filesystem calls are safe for concurrent use. Tree keeps no
// mutable state of its own.
type Tree struct {
	fs afero.Fs

	// dirPerm and filePerm are applied to created collections and files
	dirPerm  os.FileMode
	filePerm os.FileMode
}

var _ content.Tree = (*Tree)(nil)

// New creates a tree backed by fs. The root of fs is the root of the tree.
func New(fs afero.Fs) *Tree {
	return &Tree{
		fs:       fs,
		dirPerm:  0755,
		filePerm: 0644,
	}
}

// NewFSTree creates a tree rooted at a directory of the local filesystem.
//
// The directory is created if it doesn't exist.
//
// Parameters:
//   - ctx: Context for cancellation
//   - root: Directory to expose
//
// Returns:
//   - *Tree: Tree rooted at root
//   - error: If the directory cannot be created or is not a directory
func NewFSTree(ctx context.Context, root string) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mount root %s: %w", root, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat mount root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mount root %s is not a directory", root)
	}

	return New(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

func toResource(p string, info os.FileInfo) *dav.Resource {
	res := &dav.Resource{
		Path:         p,
		IsCollection: info.IsDir(),
		LastModified: info.ModTime(),
	}
	if !res.IsCollection {
		res.ContentLength = info.Size()
	}
	return res
}

func (t *Tree) stat(p string) (os.FileInfo, error) {
	info, err := t.fs.Stat(p)
	if err != nil {
		return nil, mapError("stat", p, err)
	}
	return info, nil
}

// Resolve returns the resource at p.
func (t *Tree) Resolve(ctx context.Context, p string) (*dav.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := dav.CleanPath(p)
	if err != nil {
		return nil, err
	}

	info, err := t.stat(p)
	if err != nil {
		return nil, err
	}
	return toResource(p, info), nil
}

// List returns the children of a collection sorted by name.
func (t *Tree) List(ctx context.Context, p string) ([]*dav.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := dav.CleanPath(p)
	if err != nil {
		return nil, err
	}

	info, err := t.stat(p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, dav.NewConflictError("not a collection", p)
	}

	return t.list(p)
}

func (t *Tree) list(p string) ([]*dav.Resource, error) {
	infos, err := afero.ReadDir(t.fs, p)
	if err != nil {
		return nil, mapError("readdir", p, err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	children := make([]*dav.Resource, 0, len(infos))
	for _, info := range infos {
		children = append(children, toResource(path.Join(p, info.Name()), info))
	}
	return children, nil
}

// Read opens a file for reading.
func (t *Tree) Read(ctx context.Context, p string) (io.ReadSeekCloser, *dav.Resource, error) {
	res, err := t.Resolve(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	if res.IsCollection {
		return nil, nil, dav.NewConflictError("collections have no content", res.Path)
	}

	f, err := t.fs.Open(res.Path)
	if err != nil {
		return nil, nil, mapError("open", res.Path, err)
	}
	return f, res, nil
}

// ContentType detects the media type of a file.
func (t *Tree) ContentType(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if ctype := mime.TypeByExtension(path.Ext(p)); ctype != "" {
		return ctype, nil
	}

	f, err := t.fs.Open(p)
	if err != nil {
		return "", mapError("open", p, err)
	}
	defer func() { _ = f.Close() }()

	mt, err := mimetype.DetectReader(io.LimitReader(f, sniffLen))
	if err != nil {
		return "", mapError("read", p, err)
	}
	return mt.String(), nil
}

// CreateCollection creates an empty collection at p.
func (t *Tree) CreateCollection(ctx context.Context, p string) (*dav.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := dav.CleanPath(p)
	if err != nil {
		return nil, err
	}

	if _, err := t.fs.Stat(p); err == nil {
		return nil, dav.NewError(dav.ErrMethodNotAllowed, "resource already exists", p)
	}

	if err := t.requireParent(p); err != nil {
		return nil, err
	}

	if err := t.fs.Mkdir(p, t.dirPerm); err != nil {
		return nil, mapError("mkdir", p, err)
	}

	return t.Resolve(ctx, p)
}

// requireParent checks that the parent of p exists and is a collection.
func (t *Tree) requireParent(p string) error {
	parent := dav.Parent(p)
	info, err := t.fs.Stat(parent)
	if err != nil {
		err = mapError("stat", parent, err)
		if dav.IsNotFound(err) {
			return dav.NewConflictError("parent collection does not exist", parent)
		}
		return err
	}
	if !info.IsDir() {
		return dav.NewConflictError("parent is not a collection", parent)
	}
	return nil
}
