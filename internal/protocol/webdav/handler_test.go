package webdav

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/content/memory"
	"github.com/marmos91/dittodav/pkg/store/props"
	propsmemory "github.com/marmos91/dittodav/pkg/store/props/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "/dav/files"

type testServer struct {
	handler *Handler
	tree    content.Tree
	store   props.Store
	locks   *lock.Manager
}

type option func(*HandlerConfig)

func withBrowsing() option {
	return func(c *HandlerConfig) { c.EnableBrowsing = true }
}

func withMaxDepth(depth int) option {
	return func(c *HandlerConfig) { c.MaxPropfindDepth = depth }
}

func newTestServer(t *testing.T, opts ...option) *testServer {
	t.Helper()

	tree, err := memory.NewMemoryTree(context.Background())
	require.NoError(t, err)

	s := &testServer{
		tree:  tree,
		store: propsmemory.NewMemoryPropertyStore(),
		locks: lock.NewManager(lock.DefaultConfig()),
	}

	cfg := HandlerConfig{
		Name:   "files",
		Prefix: testPrefix,
		Tree:   s.tree,
		Props:  s.store,
		Locks:  s.locks,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s.handler = NewHandler(cfg)
	return s
}

// do sends a request for a mount-relative path. headers alternate names and
// values.
func (s *testServer) do(t *testing.T, method, p, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, testPrefix+p, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) mustStatus(t *testing.T, expected int, method, p, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	rec := s.do(t, method, p, body, headers...)
	require.Equal(t, expected, rec.Code, "%s %s: %s", method, p, rec.Body.String())
	return rec
}

// lockToken takes an exclusive lock and returns its token.
func (s *testServer) lockToken(t *testing.T, p, depth string) string {
	t.Helper()
	rec := s.do(t, "LOCK", p, lockBody("exclusive"), "Depth", depth)
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())

	token := rec.Header().Get("Lock-Token")
	require.NotEmpty(t, token)
	return strings.Trim(token, "<>")
}

func lockBody(scope string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<D:lockinfo xmlns:D="DAV:">
  <D:lockscope><D:` + scope + `/></D:lockscope>
  <D:locktype><D:write/></D:locktype>
  <D:owner><D:href>mailto:alice@example.com</D:href></D:owner>
</D:lockinfo>`
}

// ============================================================================
// Multi-Status Parsing
// ============================================================================

type msProp struct {
	InnerXML string `xml:",innerxml"`
}

type msPropstat struct {
	Prop   msProp `xml:"prop"`
	Status string `xml:"status"`
}

type msResponse struct {
	Href      string       `xml:"href"`
	Status    string       `xml:"status"`
	Propstats []msPropstat `xml:"propstat"`
}

type multistatus struct {
	Responses []msResponse `xml:"response"`
}

func parseMultistatus(t *testing.T, rec *httptest.ResponseRecorder) multistatus {
	t.Helper()
	require.Equal(t, 207, rec.Code, rec.Body.String())

	var ms multistatus
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &ms), rec.Body.String())
	return ms
}

func (ms multistatus) find(href string) (msResponse, bool) {
	for _, r := range ms.Responses {
		if r.Href == href {
			return r, true
		}
	}
	return msResponse{}, false
}

// propstatFor returns the propstat whose status line contains code.
func (r msResponse) propstatFor(code string) (msPropstat, bool) {
	for _, ps := range r.Propstats {
		if strings.Contains(ps.Status, code) {
			return ps, true
		}
	}
	return msPropstat{}, false
}

// ============================================================================
// Dispatch Tests
// ============================================================================

func TestUnsupportedMethod(t *testing.T) {
	s := newTestServer(t)

	rec := s.mustStatus(t, http.StatusMethodNotAllowed, "PATCH", "/", "")
	assert.Contains(t, rec.Header().Get("Allow"), "PROPFIND")
}

func TestPathEscapeIsForbidden(t *testing.T) {
	s := newTestServer(t)

	s.mustStatus(t, http.StatusForbidden, "GET", "/../../etc/passwd", "")
	s.mustStatus(t, http.StatusForbidden, "PROPFIND", "/a/../../..", "")
}

func TestOptions(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/dir", "")
	s.mustStatus(t, http.StatusCreated, "PUT", "/file.txt", "x")

	tests := []struct {
		path    string
		has     []string
		missing []string
	}{
		{"/missing", []string{"PUT", "MKCOL", "LOCK"}, []string{"DELETE", "PROPFIND"}},
		{"/dir", []string{"PROPFIND", "DELETE"}, []string{"PUT", "MKCOL"}},
		{"/file.txt", []string{"PUT", "PROPFIND"}, []string{"MKCOL"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := s.mustStatus(t, http.StatusOK, "OPTIONS", tt.path, "")
			assert.Equal(t, "1, 2", rec.Header().Get("DAV"))
			assert.Equal(t, "DAV", rec.Header().Get("MS-Author-Via"))

			allow := rec.Header().Get("Allow")
			for _, m := range tt.has {
				assert.Contains(t, allow, m)
			}
			for _, m := range tt.missing {
				assert.NotContains(t, allow, m)
			}
		})
	}
}

func TestCancelledRequestIsUnavailable(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{"PROPFIND", "/", ""},
		{"PUT", "/a.txt", "replaced"},
		{"DELETE", "/a.txt", ""},
		{"MKCOL", "/dir", ""},
	}
	for _, tc := range requests {
		req := httptest.NewRequest(tc.method, testPrefix+tc.path, strings.NewReader(tc.body)).WithContext(ctx)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "%s %s", tc.method, tc.path)
	}

	get := s.mustStatus(t, http.StatusOK, "GET", "/a.txt", "")
	assert.Equal(t, "x", get.Body.String())
	s.mustStatus(t, http.StatusNotFound, "PROPFIND", "/dir", "", "Depth", "0")
}
