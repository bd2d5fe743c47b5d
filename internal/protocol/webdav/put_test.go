package webdav

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPut_CreateAndReplace(t *testing.T) {
	s := newTestServer(t)

	rec := s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "one")
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	s.mustStatus(t, http.StatusNoContent, "PUT", "/a.txt", "three")
	get := s.mustStatus(t, http.StatusOK, "GET", "/a.txt", "")
	assert.Equal(t, "three", get.Body.String())
}

func TestPut_StaleIfMatch(t *testing.T) {
	s := newTestServer(t)
	rec := s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "one")
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	s.mustStatus(t, http.StatusPreconditionFailed, "PUT", "/a.txt", "two", "If-Match", `"stale"`)
	get := s.mustStatus(t, http.StatusOK, "GET", "/a.txt", "")
	assert.Equal(t, "one", get.Body.String())

	s.mustStatus(t, http.StatusNoContent, "PUT", "/a.txt", "two", "If-Match", etag)
}

func TestPut_IfNoneMatchStar(t *testing.T) {
	s := newTestServer(t)

	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "one", "If-None-Match", "*")
	s.mustStatus(t, http.StatusPreconditionFailed, "PUT", "/a.txt", "two", "If-None-Match", "*")
}

func TestPut_Rejections(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/dir", "")

	s.mustStatus(t, http.StatusMethodNotAllowed, "PUT", "/dir", "x")
	s.mustStatus(t, http.StatusMethodNotAllowed, "PUT", "/", "x")
	s.mustStatus(t, http.StatusConflict, "PUT", "/missing/a.txt", "x")
	s.mustStatus(t, http.StatusBadRequest, "PUT", "/a.txt", "x", "Content-Range", "bytes 0-0/1")
}

func TestPut_IfHeaderEntityTag(t *testing.T) {
	s := newTestServer(t)
	rec := s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "one")
	etag := rec.Header().Get("ETag")

	s.mustStatus(t, http.StatusPreconditionFailed, "PUT", "/a.txt", "two", "If", `(["other"])`)
	s.mustStatus(t, http.StatusNoContent, "PUT", "/a.txt", "two", "If", "(["+etag+"])")
	s.mustStatus(t, http.StatusNoContent, "PUT", "/a.txt", "three", "If", `(Not ["other"])`)
}

func TestMkcol(t *testing.T) {
	s := newTestServer(t)

	s.mustStatus(t, http.StatusCreated, "MKCOL", "/dir", "")
	s.mustStatus(t, http.StatusMethodNotAllowed, "MKCOL", "/dir", "")
	s.mustStatus(t, http.StatusConflict, "MKCOL", "/a/b", "")
	s.mustStatus(t, http.StatusUnsupportedMediaType, "MKCOL", "/other", "<x/>")
}
