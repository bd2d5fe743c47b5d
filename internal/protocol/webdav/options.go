package webdav

import (
	"net/http"

	"github.com/marmos91/dittodav/pkg/dav"
)

const (
	allowUnmapped   = "OPTIONS, LOCK, PUT, MKCOL"
	allowCollection = "OPTIONS, LOCK, UNLOCK, DELETE, PROPPATCH, COPY, MOVE, PROPFIND, GET, HEAD"
	allowFile       = "OPTIONS, LOCK, UNLOCK, DELETE, PROPPATCH, COPY, MOVE, PROPFIND, GET, HEAD, PUT"
)

// handleOptions advertises the supported compliance classes and the methods
// allowed on the resource.
func handleOptions(h *Handler, w http.ResponseWriter, r *http.Request, p string) (int, error) {
	allow := allowUnmapped
	res, err := h.tree.Resolve(r.Context(), p)
	switch {
	case err == nil && res.IsCollection:
		allow = allowCollection
	case err == nil:
		allow = allowFile
	case !dav.IsNotFound(err):
		return 0, err
	}

	w.Header().Set("Allow", allow)
	w.Header().Set("DAV", "1, 2")
	w.Header().Set("MS-Author-Via", "DAV")
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
	return 0, nil
}
