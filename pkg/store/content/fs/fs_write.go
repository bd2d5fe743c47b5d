package fs

import (
	"context"
	"io"
	"os"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/spf13/afero"
)

const uploadPrefix = ".dittodav-upload-"

// Write stores the content of r at p.
//
// Content is first written to a temporary file in the destination collection
// and then renamed over the target, so concurrent readers never observe a
// partially written file. A cancelled context aborts the copy and leaves the
// previous content untouched.
func (t *Tree) Write(ctx context.Context, p string, r io.Reader, overwrite bool) (*dav.Resource, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	p, err := dav.CleanPath(p)
	if err != nil {
		return nil, false, err
	}
	if p == "/" {
		return nil, false, dav.NewError(dav.ErrMethodNotAllowed, "cannot write to the mount root", p)
	}

	if err := t.requireParent(p); err != nil {
		return nil, false, err
	}

	created := true
	if info, err := t.fs.Stat(p); err == nil {
		if info.IsDir() {
			return nil, false, dav.NewError(dav.ErrMethodNotAllowed, "cannot write to a collection", p)
		}
		if !overwrite {
			return nil, false, dav.NewError(dav.ErrPreconditionFailed, "resource already exists", p)
		}
		created = false
	} else if !os.IsNotExist(err) {
		return nil, false, mapError("stat", p, err)
	}

	tmp, err := afero.TempFile(t.fs, dav.Parent(p), uploadPrefix)
	if err != nil {
		return nil, false, mapError("create", p, err)
	}
	tmpName := tmp.Name()

	_, copyErr := io.Copy(tmp, &contextReader{ctx: ctx, r: r})
	closeErr := tmp.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = t.fs.Remove(tmpName)
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, mapError("write", p, copyErr)
	}

	if err := t.fs.Chmod(tmpName, t.filePerm); err != nil {
		_ = t.fs.Remove(tmpName)
		return nil, false, mapError("chmod", p, err)
	}

	if err := t.fs.Rename(tmpName, p); err != nil {
		_ = t.fs.Remove(tmpName)
		return nil, false, mapError("rename", p, err)
	}

	res, err := t.Resolve(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return res, created, nil
}

// contextReader stops a copy as soon as its context is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
