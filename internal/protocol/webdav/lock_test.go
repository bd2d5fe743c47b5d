package webdav

import (
	"encoding/xml"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_InfiniteExcludesDescendants(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/dir", "")
	s.mustStatus(t, http.StatusCreated, "PUT", "/dir/f.txt", "x")

	token := s.lockToken(t, "/dir", "infinity")

	s.mustStatus(t, http.StatusLocked, "LOCK", "/dir/f.txt", lockBody("exclusive"), "Depth", "0")
	s.mustStatus(t, http.StatusLocked, "LOCK", "/dir/new.txt", lockBody("shared"), "Depth", "0")

	rec := s.mustStatus(t, http.StatusLocked, "PUT", "/dir/f.txt", "y")
	assert.Contains(t, rec.Body.String(), "lock-token-submitted")
	assert.Contains(t, rec.Body.String(), testPrefix+"/dir")

	s.mustStatus(t, http.StatusNoContent, "PUT", "/dir/f.txt", "y", "If", "(<"+token+">)")

	s.mustStatus(t, http.StatusNoContent, "UNLOCK", "/dir", "", "Lock-Token", "<"+token+">")
	s.lockToken(t, "/dir/f.txt", "0")
}

func TestLock_SharedLocksCoexist(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/f.txt", "x")

	s.mustStatus(t, http.StatusOK, "LOCK", "/f.txt", lockBody("shared"), "Depth", "0")
	s.mustStatus(t, http.StatusOK, "LOCK", "/f.txt", lockBody("shared"), "Depth", "0")
	s.mustStatus(t, http.StatusLocked, "LOCK", "/f.txt", lockBody("exclusive"), "Depth", "0")
}

func TestLock_UnmappedCreatesEmptyFile(t *testing.T) {
	s := newTestServer(t)

	rec := s.mustStatus(t, http.StatusCreated, "LOCK", "/new.txt", lockBody("exclusive"), "Timeout", "Second-60")
	assert.Contains(t, rec.Header().Get("Lock-Token"), "urn:uuid:")

	body := rec.Body.String()
	assert.Contains(t, body, "<D:lockdiscovery>")
	assert.Contains(t, body, "Second-60")
	assert.Contains(t, body, "mailto:alice@example.com")
	assert.Contains(t, body, "<D:depth>infinity</D:depth>")

	get := s.mustStatus(t, http.StatusOK, "GET", "/new.txt", "")
	assert.Empty(t, get.Body.String())
}

func TestLock_MissingParent(t *testing.T) {
	s := newTestServer(t)

	s.mustStatus(t, http.StatusConflict, "LOCK", "/missing/new.txt", lockBody("exclusive"))
	assert.Equal(t, 0, s.locks.Count())
}

func TestLock_DepthOneRejected(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusBadRequest, "LOCK", "/", lockBody("exclusive"), "Depth", "1")
}

func TestLock_MalformedBody(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusBadRequest, "LOCK", "/", "<D:lockinfo xmlns:D=\"DAV:\">")
}

func TestLock_Refresh(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/f.txt", "x")
	token := s.lockToken(t, "/f.txt", "0")

	rec := s.mustStatus(t, http.StatusOK, "LOCK", "/f.txt", "", "If", "(<"+token+">)", "Timeout", "Second-120")
	assert.Contains(t, rec.Body.String(), "Second-120")
	assert.Contains(t, rec.Body.String(), token)

	s.mustStatus(t, http.StatusPreconditionFailed, "LOCK", "/f.txt", "", "If", "(<urn:uuid:unknown>)")
	s.mustStatus(t, http.StatusBadRequest, "LOCK", "/f.txt", "")
}

func TestUnlock(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "a")
	s.mustStatus(t, http.StatusCreated, "PUT", "/b.txt", "b")
	tokenA := s.lockToken(t, "/a.txt", "0")
	s.lockToken(t, "/b.txt", "0")

	rec := s.mustStatus(t, http.StatusConflict, "UNLOCK", "/b.txt", "", "Lock-Token", "<"+tokenA+">")
	assert.Contains(t, rec.Body.String(), "lock-token-matches-request-uri")

	s.mustStatus(t, http.StatusBadRequest, "UNLOCK", "/a.txt", "")
	s.mustStatus(t, http.StatusNoContent, "UNLOCK", "/a.txt", "", "Lock-Token", "<"+tokenA+">")
	assert.Equal(t, 1, s.locks.Count())
}

func TestLock_DiscoveredByPropfind(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/f.txt", "x")
	token := s.lockToken(t, "/f.txt", "0")

	body := `<?xml version="1.0"?><D:propfind xmlns:D="DAV:"><D:prop><D:lockdiscovery/></D:prop></D:propfind>`
	ms := parseMultistatus(t, s.do(t, "PROPFIND", "/f.txt", body, "Depth", "0"))
	require.Len(t, ms.Responses, 1)

	ok, found := ms.Responses[0].propstatFor("200")
	require.True(t, found)
	assert.Contains(t, ok.Prop.InnerXML, token)
	assert.Contains(t, ok.Prop.InnerXML, testPrefix+"/f.txt")
}

func TestLock_OwnerKeepsNamespace(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/f.txt", "x")

	body := `<?xml version="1.0" encoding="utf-8"?>
<a:lockinfo xmlns:a="DAV:">
  <a:lockscope><a:exclusive/></a:lockscope>
  <a:locktype><a:write/></a:locktype>
  <a:owner><a:href>mailto:bob@example.com</a:href></a:owner>
</a:lockinfo>`
	rec := s.mustStatus(t, http.StatusOK, "LOCK", "/f.txt", body, "Depth", "0")

	var prop struct {
		Href struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		} `xml:"DAV: lockdiscovery>activelock>owner>href"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &prop), rec.Body.String())
	assert.Equal(t, xml.Name{Space: "DAV:", Local: "href"}, prop.Href.XMLName)
	assert.Equal(t, "mailto:bob@example.com", prop.Href.Value)
}
