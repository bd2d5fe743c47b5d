package webdav

import (
	"net/http"
	"net/url"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/dav"
)

// destination resolves the Destination header to a tree path of this mount.
//
// A destination on another host yields 502; one outside the mount yields 403.
func (h *Handler) destination(r *http.Request) (string, int, error) {
	raw := r.Header.Get("Destination")
	if raw == "" {
		return "", 0, dav.NewBadRequestError("missing Destination header")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, dav.WrapError(dav.ErrBadRequest, "malformed Destination header", raw, err)
	}
	if u.Host != "" && u.Host != r.Host {
		return "", http.StatusBadGateway, nil
	}

	p, err := h.pathFromURL(u.Path)
	if err != nil {
		return "", 0, err
	}
	return p, 0, nil
}

// handleCopyMove serves COPY and MOVE.
func handleCopyMove(h *Handler, w http.ResponseWriter, r *http.Request, src string) (int, error) {
	ctx := r.Context()
	move := r.Method == "MOVE"

	if _, err := h.tree.Resolve(ctx, src); err != nil {
		return 0, err
	}

	dst, status, err := h.destination(r)
	if err != nil || status != 0 {
		return status, err
	}
	if src == dst {
		return 0, dav.NewForbiddenError("source and destination are the same", dst)
	}

	overwrite, err := parseOverwrite(r)
	if err != nil {
		return 0, err
	}

	depth, err := parseDepth(r, dav.DepthInfinity)
	if err != nil {
		return 0, err
	}
	if depth == dav.DepthOne || (move && depth != dav.DepthInfinity) {
		return 0, dav.NewBadRequestError("invalid Depth for " + r.Method)
	}

	tokens, err := h.checkIf(ctx, r, src)
	if err != nil {
		return 0, err
	}
	if move {
		if err := h.locks.Check(ctx, src, true, tokens); err != nil {
			return 0, err
		}
	}
	if err := h.locks.Check(ctx, dst, true, tokens); err != nil {
		return 0, err
	}

	if move {
		created, err := h.tree.Move(ctx, src, dst, overwrite)
		if err != nil {
			return 0, err
		}
		h.locks.Purge(ctx, dst)
		h.locks.Purge(ctx, src)
		if err := h.store.Move(ctx, src, dst); err != nil {
			logger.Warn("WebDAV MOVE mount=%s: failed to move properties %s -> %s: %v", h.name, src, dst, err)
		}
		return createdStatus(created), nil
	}

	created, failures, err := h.tree.Copy(ctx, src, dst, overwrite, depth)
	if err != nil {
		return 0, err
	}
	h.locks.Purge(ctx, dst)
	if err := h.store.Copy(ctx, src, dst, depth == dav.DepthInfinity); err != nil {
		logger.Warn("WebDAV COPY mount=%s: failed to copy properties %s -> %s: %v", h.name, src, dst, err)
	}

	if len(failures) > 0 {
		return 0, h.writeFailures(w, failures)
	}
	return createdStatus(created), nil
}

func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusNoContent
}
