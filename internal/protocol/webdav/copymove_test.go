package webdav

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dest(p string) string {
	return "http://example.com" + testPrefix + p
}

func TestMove_Subtree(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs", "")
	s.mustStatus(t, http.StatusCreated, "PUT", "/docs/a.txt", "a")
	parseMultistatus(t, s.do(t, "PROPPATCH", "/docs/a.txt", setAuthor))

	s.mustStatus(t, http.StatusCreated, "MOVE", "/docs", "", "Destination", dest("/archive"))
	s.mustStatus(t, http.StatusNotFound, "GET", "/docs/a.txt", "")

	get := s.mustStatus(t, http.StatusOK, "GET", "/archive/a.txt", "")
	assert.Equal(t, "a", get.Body.String())

	value, found := s.authorValue(t, "/archive/a.txt")
	require.True(t, found)
	assert.Equal(t, "Alice", value)
}

func TestMove_LockedDescendant(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs", "")
	s.mustStatus(t, http.StatusCreated, "PUT", "/docs/a.txt", "a")
	token := s.lockToken(t, "/docs/a.txt", "0")

	s.mustStatus(t, http.StatusLocked, "MOVE", "/docs", "", "Destination", dest("/archive"))
	s.mustStatus(t, http.StatusOK, "GET", "/docs/a.txt", "")
	s.mustStatus(t, http.StatusNotFound, "PROPFIND", "/archive", "", "Depth", "0")

	// With the token the move succeeds and the lock does not follow
	s.mustStatus(t, http.StatusCreated, "MOVE", "/docs", "", "Destination", dest("/archive"),
		"If", "<"+dest("/docs/a.txt")+"> (<"+token+">)")
	assert.Equal(t, 0, s.locks.Count())
}

func TestMove_Overwrite(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "a")
	s.mustStatus(t, http.StatusCreated, "PUT", "/b.txt", "b")

	s.mustStatus(t, http.StatusPreconditionFailed, "MOVE", "/a.txt", "", "Destination", dest("/b.txt"), "Overwrite", "F")
	s.mustStatus(t, http.StatusNoContent, "MOVE", "/a.txt", "", "Destination", dest("/b.txt"))

	get := s.mustStatus(t, http.StatusOK, "GET", "/b.txt", "")
	assert.Equal(t, "a", get.Body.String())
}

func TestMove_DepthMustBeInfinity(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs", "")
	s.mustStatus(t, http.StatusBadRequest, "MOVE", "/docs", "", "Destination", dest("/x"), "Depth", "0")
}

func TestCopyMove_Destination(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "a")

	tests := []struct {
		name        string
		destination string
		expected    int
	}{
		{"Missing", "", http.StatusBadRequest},
		{"OtherHost", "http://elsewhere.example.org" + testPrefix + "/b.txt", http.StatusBadGateway},
		{"OutsideMount", "/other/b.txt", http.StatusForbidden},
		{"Escape", testPrefix + "/../../b.txt", http.StatusForbidden},
		{"SamePath", dest("/a.txt"), http.StatusForbidden},
		{"RelativePath", testPrefix + "/b.txt", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.destination != "" {
				headers = []string{"Destination", tt.destination}
			}
			s.mustStatus(t, tt.expected, "COPY", "/a.txt", "", headers...)
		})
	}
}

func TestCopy_Subtree(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs", "")
	s.mustStatus(t, http.StatusCreated, "PUT", "/docs/a.txt", "a")
	parseMultistatus(t, s.do(t, "PROPPATCH", "/docs/a.txt", setAuthor))

	s.mustStatus(t, http.StatusCreated, "COPY", "/docs", "", "Destination", dest("/copy"))

	get := s.mustStatus(t, http.StatusOK, "GET", "/copy/a.txt", "")
	assert.Equal(t, "a", get.Body.String())
	s.mustStatus(t, http.StatusOK, "GET", "/docs/a.txt", "")

	_, found := s.authorValue(t, "/copy/a.txt")
	assert.True(t, found)
	_, found = s.authorValue(t, "/docs/a.txt")
	assert.True(t, found)
}

func TestCopy_DepthZero(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs", "")
	s.mustStatus(t, http.StatusCreated, "PUT", "/docs/a.txt", "a")

	s.mustStatus(t, http.StatusCreated, "COPY", "/docs", "", "Destination", dest("/shallow"), "Depth", "0")
	s.mustStatus(t, http.StatusNotFound, "GET", "/shallow/a.txt", "")
	s.mustStatus(t, http.StatusBadRequest, "COPY", "/docs", "", "Destination", dest("/x"), "Depth", "1")
}

func TestCopy_LockedDestination(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "a")
	s.mustStatus(t, http.StatusCreated, "PUT", "/b.txt", "b")
	s.lockToken(t, "/b.txt", "0")

	s.mustStatus(t, http.StatusLocked, "COPY", "/a.txt", "", "Destination", dest("/b.txt"))

	get := s.mustStatus(t, http.StatusOK, "GET", "/b.txt", "")
	assert.Equal(t, "b", get.Body.String())
}
