package webdav

import (
	"net/http"
	"strings"

	"github.com/marmos91/dittodav/pkg/dav"
)

// handlePut stores the request body at p.
func handlePut(h *Handler, w http.ResponseWriter, r *http.Request, p string) (int, error) {
	ctx := r.Context()

	if p == "/" {
		return 0, dav.NewError(dav.ErrMethodNotAllowed, "cannot write to the mount root", p)
	}
	if r.Header.Get("Content-Range") != "" {
		return 0, dav.NewBadRequestError("partial PUT is not supported")
	}

	tokens, err := h.checkIf(ctx, r, p)
	if err != nil {
		return 0, err
	}
	if err := h.locks.Check(ctx, p, false, tokens); err != nil {
		return 0, err
	}

	existing, err := h.tree.Resolve(ctx, p)
	if err != nil && !dav.IsNotFound(err) {
		return 0, err
	}
	if existing != nil && existing.IsCollection {
		return 0, dav.NewError(dav.ErrMethodNotAllowed, "cannot write to a collection", p)
	}
	if err := checkEntityTags(r, existing); err != nil {
		return 0, err
	}

	res, created, err := h.tree.Write(ctx, p, r.Body, true)
	if err != nil {
		return 0, err
	}

	w.Header().Set("ETag", res.ETag())
	if created {
		return http.StatusCreated, nil
	}
	return http.StatusNoContent, nil
}

// checkEntityTags evaluates If-Match and If-None-Match against the current
// resource (nil when absent).
func checkEntityTags(r *http.Request, res *dav.Resource) error {
	current := ""
	if res != nil {
		current = res.ETag()
	}

	if v := r.Header.Get("If-Match"); v != "" {
		if !matchesETagList(v, current) {
			return dav.NewError(dav.ErrPreconditionFailed, "If-Match failed", "")
		}
	}
	if v := r.Header.Get("If-None-Match"); v != "" {
		if matchesETagList(v, current) {
			return dav.NewError(dav.ErrPreconditionFailed, "If-None-Match failed", "")
		}
	}
	return nil
}

// matchesETagList reports whether a comma separated entity tag list (or
// "*") matches current. An empty current never matches.
func matchesETagList(list, current string) bool {
	if current == "" {
		return false
	}
	for _, tag := range strings.Split(list, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || etagMatches(tag, current) {
			return true
		}
	}
	return false
}
