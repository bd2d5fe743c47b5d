// Package webdav implements the WebDAV methods (RFC 4918, class 1 and 2) for
// one mount.
//
// A Handler translates HTTP requests into operations on the mount's resource
// tree, dead property store and lock manager. Every method runs through a
// dispatch table; handlers return a status (or an error) and the dispatcher
// turns errors into HTTP responses using the dav error taxonomy, so raw
// storage errors never reach clients.
package webdav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/property"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/props"
)

// HandlerConfig wires a Handler to a mount.
type HandlerConfig struct {
	// Name is the mount name, used for logging
	Name string

	// Prefix is the URL path the mount is served under (e.g. "/dav/photos")
	Prefix string

	// Tree is the mount's resource tree
	Tree content.Tree

	// Props stores the mount's dead properties
	Props props.Store

	// Locks tracks the mount's locks
	Locks *lock.Manager

	// EnableBrowsing serves an HTML listing on GET of a collection
	EnableBrowsing bool

	// MaxPropfindDepth caps the levels visited by a Depth: infinity
	// PROPFIND (0 = unlimited)
	MaxPropfindDepth int
}

// Handler serves the WebDAV methods of one mount.
//
// Thread Safety:
// Handler is immutable after creation and safe for concurrent use; the
// tree, the property store and the lock manager serialize their own state.
type Handler struct {
	name     string
	prefix   string
	tree     content.Tree
	store    props.Store
	locks    *lock.Manager
	props    *property.Service
	browse   bool
	maxDepth int
}

// NewHandler creates the handler of one mount.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		name:     cfg.Name,
		prefix:   strings.TrimSuffix(cfg.Prefix, "/"),
		tree:     cfg.Tree,
		store:    cfg.Props,
		locks:    cfg.Locks,
		browse:   cfg.EnableBrowsing,
		maxDepth: cfg.MaxPropfindDepth,
	}
	h.props = property.NewService(h.tree, h.store, h.locks, property.WithHref(func(p string) string {
		return h.href(p, false)
	}))
	return h
}

// ============================================================================
// Method Dispatch Table
// ============================================================================

// methodHandler processes one method on the tree path p. A non-zero status
// is written by the dispatcher; handlers that write their own response
// return 0.
type methodHandler func(h *Handler, w http.ResponseWriter, r *http.Request, p string) (int, error)

// methodInfo contains metadata about a method for dispatch.
type methodInfo struct {
	// Name is the method name for logging
	Name string

	// Handler is the function that processes this method
	Handler methodHandler
}

// methodTable maps HTTP methods to their handlers.
var methodTable map[string]*methodInfo

// allMethods is the Allow header of unsupported-method responses.
const allMethods = "OPTIONS, GET, HEAD, PUT, DELETE, MKCOL, COPY, MOVE, PROPFIND, PROPPATCH, LOCK, UNLOCK"

func init() {
	methodTable = map[string]*methodInfo{
		http.MethodOptions: {Name: "OPTIONS", Handler: handleOptions},
		http.MethodGet:     {Name: "GET", Handler: handleGet},
		http.MethodHead:    {Name: "HEAD", Handler: handleGet},
		http.MethodPut:     {Name: "PUT", Handler: handlePut},
		http.MethodDelete:  {Name: "DELETE", Handler: handleDelete},
		"MKCOL":            {Name: "MKCOL", Handler: handleMkcol},
		"COPY":             {Name: "COPY", Handler: handleCopyMove},
		"MOVE":             {Name: "MOVE", Handler: handleCopyMove},
		"PROPFIND":         {Name: "PROPFIND", Handler: handlePropfind},
		"PROPPATCH":        {Name: "PROPPATCH", Handler: handleProppatch},
		"LOCK":             {Name: "LOCK", Handler: handleLock},
		"UNLOCK":           {Name: "UNLOCK", Handler: handleUnlock},
	}
}

// ServeHTTP dispatches a request to its method handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info, ok := methodTable[r.Method]
	if !ok {
		w.Header().Set("Allow", allMethods)
		h.writeError(w, r.Method, r.URL.Path, dav.NewError(dav.ErrMethodNotAllowed, "unsupported method", r.URL.Path))
		return
	}

	p, err := h.treePath(r.URL.Path)
	if err != nil {
		h.writeError(w, info.Name, r.URL.Path, err)
		return
	}

	logger.Debug("WebDAV %s mount=%s path=%s client=%s", info.Name, h.name, p, r.RemoteAddr)

	tw := &trackingWriter{ResponseWriter: w}
	status, err := info.Handler(h, tw, r, p)
	if err != nil {
		if tw.wroteHeader {
			logger.Warn("WebDAV %s mount=%s path=%s: failed after response started: %v", info.Name, h.name, p, err)
			return
		}
		h.writeError(w, info.Name, p, err)
		return
	}

	if status != 0 {
		w.WriteHeader(status)
		if status != http.StatusNoContent && status != http.StatusNotModified {
			_, _ = w.Write([]byte(dav.StatusText(status)))
		}
	}
}

// ============================================================================
// Paths and URLs
// ============================================================================

// treePath maps a request URL path to a tree path.
func (h *Handler) treePath(urlPath string) (string, error) {
	if urlPath != h.prefix && !strings.HasPrefix(urlPath, h.prefix+"/") {
		return "", dav.NewNotFoundError(urlPath)
	}
	return dav.CleanPath(strings.TrimPrefix(urlPath, h.prefix))
}

// href returns the escaped URL of a tree path. Collections end with a slash.
func (h *Handler) href(p string, collection bool) string {
	full := h.prefix + p
	if p == "/" {
		full = h.prefix + "/"
	}
	if collection && !strings.HasSuffix(full, "/") {
		full += "/"
	}
	u := url.URL{Path: full}
	return u.EscapedPath()
}

// pathFromURL maps an absolute URI or absolute path to a tree path of this
// mount.
func (h *Handler) pathFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", dav.WrapError(dav.ErrBadRequest, "malformed URL", raw, err)
	}
	if u.Path != h.prefix && !strings.HasPrefix(u.Path, h.prefix+"/") {
		return "", dav.NewForbiddenError("URL is outside the mount", raw)
	}
	return dav.CleanPath(strings.TrimPrefix(u.Path, h.prefix))
}

// ============================================================================
// Preconditions
// ============================================================================

// checkIf evaluates the If header against p and returns the lock tokens it
// presents.
//
// A token condition holds when it names a live lock covering the list's
// resource; an entity tag condition holds when it matches the resource's
// current ETag. If no list holds the request fails with 412.
func (h *Handler) checkIf(ctx context.Context, r *http.Request, p string) ([]string, error) {
	v := r.Header.Get("If")
	if v == "" {
		return nil, nil
	}

	ih, err := parseIfHeader(v)
	if err != nil {
		return nil, err
	}

	for _, list := range ih.Lists {
		target := p
		if list.ResourceTag != "" {
			tagged, err := h.pathFromURL(list.ResourceTag)
			if err != nil {
				continue
			}
			target = tagged
		}
		if h.evalIfList(ctx, list, target) {
			return ih.tokens(), nil
		}
	}

	return nil, dav.NewError(dav.ErrPreconditionFailed, "If header conditions not met", p)
}

func (h *Handler) evalIfList(ctx context.Context, list ifList, target string) bool {
	var res *dav.Resource
	resolved := false

	for _, c := range list.Conditions {
		var ok bool
		if c.Token != "" {
			if l, found := h.locks.Lookup(ctx, c.Token); found {
				ok = l.Covers(target)
			}
		} else {
			if !resolved {
				res, _ = h.tree.Resolve(ctx, target)
				resolved = true
			}
			ok = res != nil && etagMatches(c.ETag, res.ETag())
		}

		if c.Not {
			ok = !ok
		}
		if !ok {
			return false
		}
	}
	return true
}

// ============================================================================
// Error Responses
// ============================================================================

// writeError turns err into an HTTP response.
func (h *Handler) writeError(w http.ResponseWriter, method, p string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Client disconnect or server shutdown
		logger.Debug("WebDAV %s mount=%s path=%s: request cancelled", method, h.name, p)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(dav.StatusText(http.StatusServiceUnavailable)))
		return
	}

	status := dav.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("WebDAV %s mount=%s path=%s: %v", method, h.name, p, err)
	} else {
		logger.Debug("WebDAV %s mount=%s path=%s: %v", method, h.name, p, err)
	}

	if status == dav.StatusLocked {
		var davErr *dav.Error
		if errors.As(err, &davErr) && davErr.Path != "" {
			body := fmt.Sprintf(`%s<D:error xmlns:D="DAV:"><D:lock-token-submitted><D:href>%s</D:href></D:lock-token-submitted></D:error>`,
				xmlHeader, escapeString(h.href(davErr.Path, false)))
			writeXML(w, status, []byte(body))
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(dav.StatusText(status)))
}

// trackingWriter records whether a handler has started its response.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *trackingWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *trackingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeXML writes a complete XML response.
func writeXML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeConditionError writes a DAV:error body naming a failed condition.
func writeConditionError(w http.ResponseWriter, status int, condition string) {
	writeXML(w, status, []byte(xmlHeader+`<D:error xmlns:D="DAV:"><D:`+condition+`/></D:error>`))
}
