package webdav

import (
	"bytes"
	"net/http"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/property"
)

// handleLock creates or refreshes a lock.
//
// A LOCK on an unmapped URL creates an empty file. An empty body refreshes
// the lock named by the If header.
func handleLock(h *Handler, w http.ResponseWriter, r *http.Request, p string) (int, error) {
	ctx := r.Context()

	li, ok, err := readLockInfo(r.Body)
	if err != nil {
		return 0, err
	}
	if !ok {
		return h.refreshLock(w, r, p)
	}

	depth, err := parseDepth(r, dav.DepthInfinity)
	if err != nil {
		return 0, err
	}
	if depth == dav.DepthOne {
		return 0, dav.NewBadRequestError("lock depth must be 0 or infinity")
	}

	if _, err := h.checkIf(ctx, r, p); err != nil {
		return 0, err
	}

	scope := lock.Exclusive
	if li.Shared != nil {
		scope = lock.Shared
	}

	l, err := h.locks.Acquire(ctx, lock.Details{
		Root:    p,
		Scope:   scope,
		Depth:   depth,
		Owner:   li.Owner,
		Timeout: parseTimeout(r),
	})
	if err != nil {
		return 0, err
	}

	status := http.StatusOK
	if _, err := h.tree.Resolve(ctx, p); err != nil {
		if !dav.IsNotFound(err) {
			_ = h.locks.Release(ctx, l.Token)
			return 0, err
		}
		if _, _, err := h.tree.Write(ctx, p, bytes.NewReader(nil), false); err != nil {
			_ = h.locks.Release(ctx, l.Token)
			return 0, err
		}
		status = http.StatusCreated
	}

	w.Header().Set("Lock-Token", "<"+l.Token+">")
	h.writeLockDiscovery(w, status, l)
	return 0, nil
}

// refreshLock extends the lock named by the If header.
func (h *Handler) refreshLock(w http.ResponseWriter, r *http.Request, p string) (int, error) {
	ctx := r.Context()

	if _, err := h.tree.Resolve(ctx, p); err != nil {
		return 0, err
	}

	v := r.Header.Get("If")
	if v == "" {
		return 0, dav.NewBadRequestError("lock refresh requires an If header")
	}
	ih, err := parseIfHeader(v)
	if err != nil {
		return 0, err
	}

	for _, token := range ih.tokens() {
		current, found := h.locks.Lookup(ctx, token)
		if !found || !current.Covers(p) {
			continue
		}
		l, err := h.locks.Refresh(ctx, token, parseTimeout(r))
		if err != nil {
			return 0, err
		}
		h.writeLockDiscovery(w, http.StatusOK, l)
		return 0, nil
	}

	return 0, dav.NewError(dav.ErrPreconditionFailed, "no lock to refresh", p)
}

func (h *Handler) writeLockDiscovery(w http.ResponseWriter, status int, l lock.Lock) {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString(`<D:prop xmlns:D="DAV:"><D:lockdiscovery>`)
	// Rendered as of the grant, so the timeout reads as the full granted value
	granted := l.Expires.Add(-l.Timeout)
	buf.Write(property.LockDiscoveryXML([]lock.Lock{l}, granted, func(p string) string {
		return h.href(p, false)
	}))
	buf.WriteString(`</D:lockdiscovery></D:prop>`)
	writeXML(w, status, buf.Bytes())
}

// handleUnlock releases the lock named by the Lock-Token header.
func handleUnlock(h *Handler, w http.ResponseWriter, r *http.Request, p string) (int, error) {
	ctx := r.Context()

	token, err := parseLockToken(r)
	if err != nil {
		return 0, err
	}

	if _, err := h.tree.Resolve(ctx, p); err != nil {
		return 0, err
	}

	l, found := h.locks.Lookup(ctx, token)
	if !found || !l.Covers(p) {
		writeConditionError(w, http.StatusConflict, "lock-token-matches-request-uri")
		return 0, nil
	}

	if err := h.locks.Release(ctx, token); err != nil {
		return 0, err
	}
	return http.StatusNoContent, nil
}
