package webdav

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/samber/lo"
)

// davClients are User-Agent fragments of known WebDAV clients. They never
// get the HTML listing, even when they accept text/html.
var davClients = []string{
	"microsoft-webdav-miniredir",
	"webdavfs",
	"webdavlib",
	"davfs2",
	"cadaver",
	"gvfs",
	"kio",
	"rclone",
	"cyberduck",
	"mountain duck",
	"transmit",
	"webdav",
}

// handleGet serves GET and HEAD.
//
// Files are served with http.ServeContent, which handles ranges and the
// conditional headers against the ETag and Last-Modified set here.
// Collections are listed as HTML when browsing is enabled and the request
// comes from a browser, and answered with 409 otherwise.
func handleGet(h *Handler, w http.ResponseWriter, r *http.Request, p string) (int, error) {
	ctx := r.Context()

	res, err := h.tree.Resolve(ctx, p)
	if err != nil {
		return 0, err
	}

	if res.IsCollection {
		noContent := dav.NewConflictError("collections have no content", p)
		if !h.browse || !wantsListing(r) {
			return 0, noContent
		}

		status, err := h.serveListing(w, r, res)
		if err == nil || errors.Is(err, context.Canceled) {
			return status, err
		}
		// A listing that cannot be built gets the answer DAV clients get
		logger.Warn("WebDAV browse mount=%s path=%s: %v", h.name, p, err)
		return 0, noContent
	}

	f, res, err := h.tree.Read(ctx, p)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	ctype, err := h.tree.ContentType(ctx, p)
	if err != nil {
		return 0, err
	}

	w.Header().Set("Content-Type", ctype)
	w.Header().Set("ETag", res.ETag())
	http.ServeContent(w, r, res.DisplayName(), res.LastModified, f)
	return 0, nil
}

// wantsListing reports whether a request for a collection comes from a web
// browser rather than a WebDAV client.
func wantsListing(r *http.Request) bool {
	if !strings.Contains(r.Header.Get("Accept"), "text/html") {
		return false
	}
	for _, header := range []string{"Depth", "Translate", "If"} {
		if r.Header.Get(header) != "" {
			return false
		}
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	return !lo.ContainsBy(davClients, func(client string) bool {
		return strings.Contains(ua, client)
	})
}
