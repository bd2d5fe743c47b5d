package webdav

import (
	"net/http"

	"github.com/marmos91/dittodav/pkg/dav"
)

// handleMkcol creates a collection. Request bodies are not supported.
func handleMkcol(h *Handler, w http.ResponseWriter, r *http.Request, p string) (int, error) {
	ctx := r.Context()

	if hasBody(r) {
		data, err := readBody(r.Body)
		if err != nil {
			return 0, err
		}
		if len(data) > 0 {
			return 0, dav.NewError(dav.ErrUnsupportedMediaType, "MKCOL bodies are not supported", p)
		}
	}

	tokens, err := h.checkIf(ctx, r, p)
	if err != nil {
		return 0, err
	}
	if err := h.locks.Check(ctx, p, false, tokens); err != nil {
		return 0, err
	}

	if _, err := h.tree.CreateCollection(ctx, p); err != nil {
		return 0, err
	}
	return http.StatusCreated, nil
}
