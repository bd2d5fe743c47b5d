package webdav

import (
	"bytes"
	"net/http"

	"github.com/marmos91/dittodav/pkg/dav"
)

// handleProppatch sets and removes dead properties of p.
func handleProppatch(h *Handler, w http.ResponseWriter, r *http.Request, p string) (int, error) {
	ctx := r.Context()

	res, err := h.tree.Resolve(ctx, p)
	if err != nil {
		return 0, err
	}

	tokens, err := h.checkIf(ctx, r, p)
	if err != nil {
		return 0, err
	}
	if err := h.locks.Check(ctx, p, false, tokens); err != nil {
		return 0, err
	}

	patches, err := readProppatch(r.Body)
	if err != nil {
		return 0, err
	}

	stats, err := h.props.Patch(ctx, res, patches)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	mw := newMultistatusWriter(&buf)
	if err := mw.writeResponse(response{Href: h.href(p, res.IsCollection), Propstats: stats}); err != nil {
		return 0, err
	}
	if err := mw.close(); err != nil {
		return 0, err
	}

	writeXML(w, dav.StatusMulti, buf.Bytes())
	return 0, nil
}
