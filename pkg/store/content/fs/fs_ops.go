package fs

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/store/content"
)

// Delete removes p recursively.
//
// The walk is depth-first. An entry rejected by opts.Keep, or one the
// filesystem refuses to remove, is reported as a failure and keeps its
// ancestors alive. Cancellation stops the walk; entries already removed stay
// removed.
func (t *Tree) Delete(ctx context.Context, p string, opts content.DeleteOptions) ([]content.Failure, error) {
	p, err := dav.CleanPath(p)
	if err != nil {
		return nil, err
	}
	if p == "/" {
		return nil, dav.NewForbiddenError("cannot delete the mount root", p)
	}

	info, err := t.stat(p)
	if err != nil {
		return nil, err
	}

	var failures []content.Failure
	_, err = t.deleteNode(ctx, p, info, opts, &failures)
	return failures, err
}

func (t *Tree) deleteNode(ctx context.Context, p string, info os.FileInfo, opts content.DeleteOptions, failures *[]content.Failure) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if opts.Keep != nil {
		if err := opts.Keep(p); err != nil {
			*failures = append(*failures, content.Failure{Path: p, Err: err})
			return false, nil
		}
	}

	if info.IsDir() {
		children, err := t.list(p)
		if err != nil {
			*failures = append(*failures, content.Failure{Path: p, Err: err})
			return false, nil
		}

		removedAll := true
		for _, child := range children {
			childInfo, err := t.fs.Stat(child.Path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				*failures = append(*failures, content.Failure{Path: child.Path, Err: mapError("stat", child.Path, err)})
				removedAll = false
				continue
			}

			removed, err := t.deleteNode(ctx, child.Path, childInfo, opts, failures)
			if err != nil {
				return false, err
			}
			removedAll = removedAll && removed
		}

		if !removedAll {
			return false, nil
		}
	}

	if err := t.fs.Remove(p); err != nil && !os.IsNotExist(err) {
		*failures = append(*failures, content.Failure{Path: p, Err: mapError("remove", p, err)})
		return false, nil
	}
	if opts.Removed != nil {
		opts.Removed(p)
	}
	return true, nil
}

// prepareDestination validates src and dst for a move or a copy and clears
// an existing destination when overwriting. It reports whether dst existed.
func (t *Tree) prepareDestination(src, dst string, overwrite bool) (bool, error) {
	if src == "/" || dst == "/" {
		return false, dav.NewForbiddenError("cannot move or copy the mount root", dst)
	}
	if src == dst {
		return false, dav.NewForbiddenError("source and destination are the same", dst)
	}
	if dav.IsAncestor(src, dst) {
		return false, dav.NewForbiddenError("destination is inside the source", dst)
	}
	if dav.IsAncestor(dst, src) {
		return false, dav.NewForbiddenError("destination contains the source", dst)
	}

	if _, err := t.stat(src); err != nil {
		return false, err
	}

	if err := t.requireParent(dst); err != nil {
		return false, err
	}

	existed := false
	if _, err := t.fs.Stat(dst); err == nil {
		if !overwrite {
			return true, dav.NewError(dav.ErrPreconditionFailed, "destination exists", dst)
		}
		existed = true
		if err := t.fs.RemoveAll(dst); err != nil {
			return true, mapError("remove", dst, err)
		}
	} else if !os.IsNotExist(err) {
		return false, mapError("stat", dst, err)
	}

	return existed, nil
}

// Move renames src to dst.
func (t *Tree) Move(ctx context.Context, src, dst string, overwrite bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	src, err := dav.CleanPath(src)
	if err != nil {
		return false, err
	}
	dst, err = dav.CleanPath(dst)
	if err != nil {
		return false, err
	}

	existed, err := t.prepareDestination(src, dst, overwrite)
	if err != nil {
		return false, err
	}

	if err := t.fs.Rename(src, dst); err != nil {
		return false, mapError("rename", src, err)
	}
	return !existed, nil
}

// Copy duplicates src at dst.
func (t *Tree) Copy(ctx context.Context, src, dst string, overwrite bool, depth dav.Depth) (bool, []content.Failure, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}

	src, err := dav.CleanPath(src)
	if err != nil {
		return false, nil, err
	}
	dst, err = dav.CleanPath(dst)
	if err != nil {
		return false, nil, err
	}

	existed, err := t.prepareDestination(src, dst, overwrite)
	if err != nil {
		return false, nil, err
	}

	info, err := t.stat(src)
	if err != nil {
		return false, nil, err
	}

	var failures []content.Failure
	if err := t.copyNode(ctx, src, dst, info, depth, &failures); err != nil {
		return false, failures, err
	}
	return !existed, failures, nil
}

// copyNode copies one entry. Errors on the top-level entry are returned;
// errors on descendants are collected as failures.
func (t *Tree) copyNode(ctx context.Context, src, dst string, info os.FileInfo, depth dav.Depth, failures *[]content.Failure) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !info.IsDir() {
		return t.copyFile(src, dst, info)
	}

	if err := t.fs.Mkdir(dst, t.dirPerm); err != nil {
		return mapError("mkdir", dst, err)
	}
	if depth != dav.DepthInfinity {
		return nil
	}

	children, err := t.list(src)
	if err != nil {
		return err
	}

	for _, child := range children {
		childInfo, err := t.fs.Stat(child.Path)
		if err != nil {
			if !os.IsNotExist(err) {
				*failures = append(*failures, content.Failure{Path: child.Path, Err: mapError("stat", child.Path, err)})
			}
			continue
		}

		childDst := path.Join(dst, path.Base(child.Path))
		if err := t.copyNode(ctx, child.Path, childDst, childInfo, depth, failures); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			*failures = append(*failures, content.Failure{Path: childDst, Err: err})
		}
	}

	return nil
}

func (t *Tree) copyFile(src, dst string, info os.FileInfo) error {
	in, err := t.fs.Open(src)
	if err != nil {
		return mapError("open", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := t.fs.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return mapError("create", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = t.fs.Remove(dst)
		return mapError("write", dst, err)
	}
	if err := out.Close(); err != nil {
		_ = t.fs.Remove(dst)
		return mapError("write", dst, err)
	}

	// Preserve the modification time, and with it the ETag
	_ = t.fs.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

// Walk visits p and its descendants in pre-order down to depth.
func (t *Tree) Walk(ctx context.Context, p string, depth dav.Depth, fn content.WalkFunc) error {
	res, err := t.Resolve(ctx, p)
	if err != nil {
		return err
	}
	return t.walk(ctx, res, depth, 0, fn)
}

func (t *Tree) walk(ctx context.Context, res *dav.Resource, depth dav.Depth, level int, fn content.WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := fn(res, level); err != nil {
		return err
	}

	if !res.IsCollection || depth == dav.DepthZero {
		return nil
	}

	children, err := t.list(res.Path)
	if err != nil {
		// Collections removed concurrently simply end the walk for that branch
		if dav.IsNotFound(err) {
			return nil
		}
		return err
	}

	next := depth
	if depth == dav.DepthOne {
		next = dav.DepthZero
	}

	for _, child := range children {
		if err := t.walk(ctx, child, next, level+1, fn); err != nil {
			return err
		}
	}
	return nil
}
