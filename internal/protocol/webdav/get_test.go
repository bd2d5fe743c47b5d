package webdav

import (
	"context"
	"net/http"
	"testing"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/stretchr/testify/assert"
)

const browserAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

func TestGet_File(t *testing.T) {
	s := newTestServer(t)
	put := s.mustStatus(t, http.StatusCreated, "PUT", "/notes.txt", "hello world")

	rec := s.mustStatus(t, http.StatusOK, "GET", "/notes.txt", "")
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Equal(t, put.Header().Get("ETag"), rec.Header().Get("ETag"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	head := s.mustStatus(t, http.StatusOK, "HEAD", "/notes.txt", "")
	assert.Empty(t, head.Body.String())
}

func TestGet_Range(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/notes.txt", "hello world")

	rec := s.mustStatus(t, http.StatusPartialContent, "GET", "/notes.txt", "", "Range", "bytes=6-10")
	assert.Equal(t, "world", rec.Body.String())
}

func TestGet_IfNoneMatch(t *testing.T) {
	s := newTestServer(t)
	put := s.mustStatus(t, http.StatusCreated, "PUT", "/notes.txt", "hello")

	s.mustStatus(t, http.StatusNotModified, "GET", "/notes.txt", "", "If-None-Match", put.Header().Get("ETag"))
}

func TestGet_NotFound(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusNotFound, "GET", "/missing.txt", "")
}

func TestGet_CollectionWithoutBrowsing(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs", "")

	s.mustStatus(t, http.StatusConflict, "GET", "/docs", "")
}

func TestGet_CollectionListing(t *testing.T) {
	s := newTestServer(t, withBrowsing())
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs", "")
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs/sub", "")
	s.mustStatus(t, http.StatusCreated, "PUT", "/docs/report%20%3C1%3E.txt", "12345")

	rec := s.mustStatus(t, http.StatusOK, "GET", "/docs", "", "Accept", browserAccept)
	body := rec.Body.String()

	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "sub/")
	assert.Contains(t, body, `href="`+testPrefix+`/docs/sub/"`)
	assert.Contains(t, body, "report &lt;1&gt;.txt")
	assert.Contains(t, body, "5 B")
	assert.Contains(t, body, `href="`+testPrefix+`/"`)

	head := s.mustStatus(t, http.StatusOK, "HEAD", "/docs", "", "Accept", browserAccept)
	assert.Empty(t, head.Body.String())
}

func TestGet_CollectionListingOnlyForBrowsers(t *testing.T) {
	s := newTestServer(t, withBrowsing())
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs", "")

	s.mustStatus(t, http.StatusConflict, "GET", "/docs", "")
	s.mustStatus(t, http.StatusConflict, "GET", "/docs", "", "Accept", browserAccept, "User-Agent", "Microsoft-WebDAV-MiniRedir/10.0.19045")
	s.mustStatus(t, http.StatusConflict, "GET", "/docs", "", "Accept", browserAccept, "Translate", "f")
	s.mustStatus(t, http.StatusOK, "GET", "/docs", "", "Accept", browserAccept, "User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0")
}

// unlistableTree fails every List call.
type unlistableTree struct {
	content.Tree
}

func (unlistableTree) List(ctx context.Context, p string) ([]*dav.Resource, error) {
	return nil, dav.NewError(dav.ErrInternal, "listing unavailable", p)
}

func TestGet_ListingFailureFallsBackToConflict(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs", "")

	s.handler = NewHandler(HandlerConfig{
		Name:           "files",
		Prefix:         testPrefix,
		Tree:           unlistableTree{Tree: s.tree},
		Props:          s.store,
		Locks:          s.locks,
		EnableBrowsing: true,
	})

	s.mustStatus(t, http.StatusConflict, "GET", "/docs", "", "Accept", browserAccept)
}
