package webdav

import (
	"bytes"
	"net/http"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/store/content"
)

// handleDelete removes p and everything below it.
//
// Descendants locked by tokens the client did not present are kept and
// reported as 423 in a multi-status body, as is any entry the tree failed
// to remove. Dead properties and locks of removed entries are dropped.
func handleDelete(h *Handler, w http.ResponseWriter, r *http.Request, p string) (int, error) {
	ctx := r.Context()

	if _, err := h.tree.Resolve(ctx, p); err != nil {
		return 0, err
	}
	if p == "/" {
		return 0, dav.NewForbiddenError("cannot delete the mount root", p)
	}

	tokens, err := h.checkIf(ctx, r, p)
	if err != nil {
		return 0, err
	}
	if err := h.locks.Check(ctx, p, false, tokens); err != nil {
		return 0, err
	}

	failures, err := h.tree.Delete(ctx, p, content.DeleteOptions{
		Keep: func(entry string) error {
			if entry == p {
				return nil
			}
			return h.locks.Check(ctx, entry, false, tokens)
		},
		Removed: func(entry string) {
			if err := h.store.Delete(ctx, entry); err != nil {
				logger.Warn("WebDAV DELETE mount=%s: failed to drop properties of %s: %v", h.name, entry, err)
			}
			h.locks.Purge(ctx, entry)
		},
	})
	if err != nil {
		return 0, err
	}

	if len(failures) == 0 {
		return http.StatusNoContent, nil
	}
	return 0, h.writeFailures(w, failures)
}

// writeFailures reports per-entry failures as a multi-status body.
func (h *Handler) writeFailures(w http.ResponseWriter, failures []content.Failure) error {
	var buf bytes.Buffer
	mw := newMultistatusWriter(&buf)
	for _, f := range failures {
		status := dav.StatusOf(f.Err)
		if status >= http.StatusInternalServerError {
			logger.Error("WebDAV mount=%s path=%s: %v", h.name, f.Path, f.Err)
		}

		resp := response{Href: h.href(f.Path, false), Status: status}
		if status == dav.StatusLocked {
			resp.Error = []byte("<D:lock-token-submitted/>")
		}
		if err := mw.writeResponse(resp); err != nil {
			return err
		}
	}
	if err := mw.close(); err != nil {
		return err
	}

	writeXML(w, dav.StatusMulti, buf.Bytes())
	return nil
}
