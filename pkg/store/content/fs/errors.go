package fs

import (
	"errors"
	"io/fs"
	"syscall"

	"github.com/marmos91/dittodav/pkg/dav"
)

// mapError translates filesystem errors into the dav error taxonomy.
//
// Errors that are already domain errors pass through unchanged. Anything the
// mapping does not recognize becomes dav.ErrInternal, keeping the raw error as
// the (never client-visible) cause.
func mapError(op, p string, err error) error {
	if err == nil {
		return nil
	}

	var davErr *dav.Error
	if errors.As(err, &davErr) {
		return err
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return dav.NewNotFoundError(p)
	case errors.Is(err, fs.ErrExist):
		return dav.WrapError(dav.ErrMethodNotAllowed, "resource already exists", p, err)
	case errors.Is(err, fs.ErrPermission):
		return dav.WrapError(dav.ErrForbidden, "permission denied", p, err)
	case errors.Is(err, syscall.ENOTDIR):
		// A file in the middle of the path: nothing exists below it
		return dav.NewNotFoundError(p)
	case errors.Is(err, syscall.EISDIR):
		return dav.WrapError(dav.ErrMethodNotAllowed, "resource is a collection", p, err)
	case errors.Is(err, syscall.ENOTEMPTY):
		return dav.WrapError(dav.ErrConflict, "collection is not empty", p, err)
	case errors.Is(err, syscall.ENOSPC):
		return dav.WrapError(dav.ErrInternal, "insufficient storage", p, err)
	case errors.Is(err, syscall.ENAMETOOLONG):
		return dav.WrapError(dav.ErrBadRequest, "name too long", p, err)
	}

	return dav.WrapError(dav.ErrInternal, op+" failed", p, err)
}
