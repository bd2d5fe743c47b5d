package webdav

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/store/content/memory"
	propsmemory "github.com/marmos91/dittodav/pkg/store/props/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMetrics captures the calls the adapter makes.
type recordingMetrics struct {
	mu          sync.Mutex
	requests    []string
	statuses    []int
	inFlight    int
	written     int64
	activeLocks map[string]int
	rateLimited int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{activeLocks: make(map[string]int)}
}

func (m *recordingMetrics) RecordRequest(method, mount string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, method+" "+mount)
	m.statuses = append(m.statuses, status)
}

func (m *recordingMetrics) RecordRequestStart(string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight++
}

func (m *recordingMetrics) RecordRequestEnd(string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
}

func (m *recordingMetrics) RecordBytesTransferred(_, _, direction string, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if direction == "write" {
		m.written += bytes
	}
}

func (m *recordingMetrics) SetActiveLocks(mount string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeLocks[mount] = count
}

func (m *recordingMetrics) RecordRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited++
}

func newTestRegistry(t *testing.T, mounts ...string) *registry.Registry {
	t.Helper()

	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterPropertyStore("default", propsmemory.NewMemoryPropertyStore()))

	for _, name := range mounts {
		tree, err := memory.NewMemoryTree(context.Background())
		require.NoError(t, err)

		mount, ok := registry.ResolveMount("/dav", []registry.Folder{{URL: name, ShowInBrowser: true}}, name)
		require.True(t, ok)

		require.NoError(t, reg.AddMount(context.Background(), &registry.MountConfig{
			Mount:         mount,
			Tree:          tree,
			PropertyStore: "default",
			Locks:         lock.DefaultConfig(),
		}))
	}
	return reg
}

func newTestAdapter(t *testing.T, cfg WebDAVConfig, mounts ...string) (*WebDAVAdapter, *recordingMetrics) {
	t.Helper()
	m := newRecordingMetrics()
	a := New(cfg, m)
	a.SetRegistry(newTestRegistry(t, mounts...))
	return a, m
}

func serve(a *WebDAVAdapter, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

// ============================================================================
// Configuration Tests
// ============================================================================

func TestNew_Defaults(t *testing.T) {
	a := New(WebDAVConfig{}, nil)

	assert.Equal(t, 8080, a.Port())
	assert.Equal(t, "WebDAV", a.Protocol())
	assert.Equal(t, "/dav", a.config.Prefix)
	assert.Equal(t, 30*time.Second, a.config.ShutdownTimeout)
	assert.True(t, a.limiter.Unlimited())
}

func TestNew_InvalidConfigPanics(t *testing.T) {
	assert.Panics(t, func() {
		New(WebDAVConfig{MaxPropfindDepth: -1}, nil)
	})
}

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"/dav":    "/dav",
		"dav/":    "/dav",
		"/a/b/":   "/a/b",
		"/":       "",
		"":        "",
		"//dav//": "/dav",
	}
	for in, expected := range tests {
		assert.Equal(t, expected, normalizePrefix(in), "prefix %q", in)
	}
}

// ============================================================================
// Routing Tests
// ============================================================================

func TestRouting_MountRoot(t *testing.T) {
	a, _ := newTestAdapter(t, WebDAVConfig{}, "files")

	rec := serve(a, "PROPFIND", "/dav/files/", "", "Depth", "0")
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Contains(t, rec.Body.String(), "<D:href>/dav/files/</D:href>")

	// The mount root without its trailing slash resolves too
	rec = serve(a, "PROPFIND", "/dav/files", "", "Depth", "0")
	assert.Equal(t, http.StatusMultiStatus, rec.Code)
}

func TestRouting_UnknownMount(t *testing.T) {
	a, m := newTestAdapter(t, WebDAVConfig{}, "files")

	for _, target := range []string{"/dav/other/", "/dav/Files/a.txt", "/dav/", "/elsewhere/files/"} {
		rec := serve(a, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "target %s", target)
	}
	assert.Empty(t, m.requests)
}

func TestRouting_NoRegistry(t *testing.T) {
	a := New(WebDAVConfig{}, nil)

	rec := serve(a, http.MethodGet, "/dav/files/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouting_MountsAreIsolated(t *testing.T) {
	a, _ := newTestAdapter(t, WebDAVConfig{}, "alpha", "beta")

	rec := serve(a, http.MethodPut, "/dav/alpha/note.txt", "alpha")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(a, http.MethodGet, "/dav/alpha/note.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alpha", rec.Body.String())

	rec = serve(a, http.MethodGet, "/dav/beta/note.txt", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouting_RootPrefix(t *testing.T) {
	a, _ := newTestAdapter(t, WebDAVConfig{Prefix: "/"}, "files")

	rec := serve(a, http.MethodPut, "/files/a.txt", "data")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(a, "PROPFIND", "/files/", "", "Depth", "1")
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Contains(t, rec.Body.String(), "<D:href>/files/a.txt</D:href>")
}

func TestRouting_ExtensionMethods(t *testing.T) {
	a, _ := newTestAdapter(t, WebDAVConfig{}, "files")

	rec := serve(a, "MKCOL", "/dav/files/docs", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(a, "MOVE", "/dav/files/docs", "", "Destination", "http://example.com/dav/files/archive")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(a, "OPTIONS", "/dav/files/archive", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Allow"), "PROPFIND")
	assert.Contains(t, rec.Header().Get("DAV"), "2")
}

// ============================================================================
// Middleware Tests
// ============================================================================

func TestMiddleware_RecoversPanics(t *testing.T) {
	a, _ := newTestAdapter(t, WebDAVConfig{}, "files")

	mount, err := a.registry.GetMount("files")
	require.NoError(t, err)
	a.handlers.Store("files", &mountHandler{
		mount:   mount,
		handler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
	})

	rec := serve(a, http.MethodGet, "/dav/files/x", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMiddleware_RateLimit(t *testing.T) {
	a, m := newTestAdapter(t, WebDAVConfig{RateLimit: RateLimitConfig{RequestsPerSecond: 1, Burst: 1}}, "files")

	rec := serve(a, "OPTIONS", "/dav/files/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(a, "OPTIONS", "/dav/files/", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, m.rateLimited)
}

func TestMiddleware_Metrics(t *testing.T) {
	a, m := newTestAdapter(t, WebDAVConfig{}, "files")

	rec := serve(a, http.MethodPut, "/dav/files/a.txt", "hello")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(a, "LOCK", "/dav/files/a.txt",
		`<?xml version="1.0"?><D:lockinfo xmlns:D="DAV:"><D:lockscope><D:exclusive/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockinfo>`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(a, http.MethodGet, "/dav/files/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	m.mu.Lock()
	defer m.mu.Unlock()

	assert.Equal(t, []string{"PUT files", "LOCK files", "GET files"}, m.requests)
	assert.Equal(t, []int{http.StatusCreated, http.StatusOK, http.StatusNotFound}, m.statuses)
	assert.Equal(t, 0, m.inFlight)
	assert.Greater(t, m.written, int64(5))
	assert.Equal(t, 1, m.activeLocks["files"])
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestStop_BeforeServe(t *testing.T) {
	a := New(WebDAVConfig{}, nil)

	require.NoError(t, a.Stop(context.Background()))
	// Idempotent
	require.NoError(t, a.Stop(context.Background()))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	a, _ := newTestAdapter(t, WebDAVConfig{Port: freePort(t)}, "files")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/dav/files/", a.config.Port)
	require.Eventually(t, func() bool {
		req, _ := http.NewRequest("OPTIONS", url, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}
