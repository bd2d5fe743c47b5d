package webdav

import (
	"encoding/xml"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const setAuthor = `<?xml version="1.0" encoding="utf-8"?>
<D:propertyupdate xmlns:D="DAV:" xmlns:Z="http://example.com/ns">
  <D:set><D:prop><Z:author>Alice</Z:author></D:prop></D:set>
</D:propertyupdate>`

const setAuthorAndETag = `<?xml version="1.0" encoding="utf-8"?>
<D:propertyupdate xmlns:D="DAV:" xmlns:Z="http://example.com/ns">
  <D:set><D:prop><Z:author>Alice</Z:author><D:getetag>"forged"</D:getetag></D:prop></D:set>
</D:propertyupdate>`

const removeAuthor = `<?xml version="1.0" encoding="utf-8"?>
<D:propertyupdate xmlns:D="DAV:" xmlns:Z="http://example.com/ns">
  <D:remove><D:prop><Z:author/></D:prop></D:remove>
</D:propertyupdate>`

// authorValue returns the author property of p as reported by PROPFIND, or
// false when it is missing.
func (s *testServer) authorValue(t *testing.T, p string) (string, bool) {
	t.Helper()
	ms := parseMultistatus(t, s.do(t, "PROPFIND", p, propfindAuthor, "Depth", "0"))
	require.Len(t, ms.Responses, 1)

	ok, found := ms.Responses[0].propstatFor("200")
	if !found {
		return "", false
	}
	for _, name := range []string{"Alice", "Bob"} {
		if strings.Contains(ok.Prop.InnerXML, ">"+name+"</author>") {
			return name, true
		}
	}
	return "", false
}

func TestProppatch_SetAndRemove(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "x")

	ms := parseMultistatus(t, s.do(t, "PROPPATCH", "/a.txt", setAuthor))
	require.Len(t, ms.Responses, 1)
	_, found := ms.Responses[0].propstatFor("200")
	assert.True(t, found)

	value, found := s.authorValue(t, "/a.txt")
	require.True(t, found)
	assert.Equal(t, "Alice", value)

	parseMultistatus(t, s.do(t, "PROPPATCH", "/a.txt", removeAuthor))
	_, found = s.authorValue(t, "/a.txt")
	assert.False(t, found)
}

func TestProppatch_ProtectedProperty(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "x")

	ms := parseMultistatus(t, s.do(t, "PROPPATCH", "/a.txt", setAuthorAndETag))
	require.Len(t, ms.Responses, 1)

	forbidden, found := ms.Responses[0].propstatFor("403")
	require.True(t, found)
	assert.Contains(t, forbidden.Prop.InnerXML, "getetag")
	assert.NotContains(t, forbidden.Prop.InnerXML, "author")

	ok, found := ms.Responses[0].propstatFor("200")
	require.True(t, found)
	assert.Contains(t, ok.Prop.InnerXML, "author")

	// The non-protected property was committed
	value, found := s.authorValue(t, "/a.txt")
	require.True(t, found)
	assert.Equal(t, "Alice", value)
}

func TestProppatch_NotFound(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusNotFound, "PROPPATCH", "/missing", setAuthor)
}

func TestProppatch_Locked(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "x")
	token := s.lockToken(t, "/a.txt", "0")

	s.mustStatus(t, http.StatusLocked, "PROPPATCH", "/a.txt", setAuthor)
	parseMultistatus(t, s.do(t, "PROPPATCH", "/a.txt", setAuthor, "If", "(<"+token+">)"))
}

func TestDeadProperty_DeleteAndRecreate(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "x")
	parseMultistatus(t, s.do(t, "PROPPATCH", "/a.txt", setAuthor))

	value, found := s.authorValue(t, "/a.txt")
	require.True(t, found)
	assert.Equal(t, "Alice", value)

	s.mustStatus(t, http.StatusNoContent, "DELETE", "/a.txt", "")
	s.mustStatus(t, http.StatusCreated, "PUT", "/a.txt", "y")

	_, found = s.authorValue(t, "/a.txt")
	assert.False(t, found)
}

func TestDeadProperty_NestedMarkupRoundTrip(t *testing.T) {
	s := newTestServer(t)
	s.mustStatus(t, http.StatusCreated, "MKCOL", "/docs", "")
	s.mustStatus(t, http.StatusCreated, "PUT", "/docs/a.txt", "x")

	set := `<?xml version="1.0" encoding="utf-8"?>
<D:propertyupdate xmlns:D="DAV:">
  <D:set><D:prop><Z:author xmlns:Z="custom"><Z:name>alice</Z:name></Z:author></D:prop></D:set>
</D:propertyupdate>`
	parseMultistatus(t, s.do(t, "PROPPATCH", "/docs/a.txt", set))

	find := `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:"><D:prop><Z:author xmlns:Z="custom"/></D:prop></D:propfind>`

	type authorProp struct {
		Author struct {
			Name struct {
				XMLName xml.Name
				Value   string `xml:",chardata"`
			} `xml:"name"`
		} `xml:"custom author"`
	}
	type result struct {
		Responses []struct {
			Href      string `xml:"DAV: href"`
			Propstats []struct {
				Prop   authorProp `xml:"DAV: prop"`
				Status string     `xml:"DAV: status"`
			} `xml:"DAV: propstat"`
		} `xml:"DAV: response"`
	}

	for _, depth := range []string{"0", "1"} {
		target := "/docs/a.txt"
		if depth == "1" {
			target = "/docs"
		}
		rec := s.mustStatus(t, http.StatusMultiStatus, "PROPFIND", target, find, "Depth", depth)

		var ms result
		require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &ms), rec.Body.String())

		found := false
		for _, r := range ms.Responses {
			if r.Href != testPrefix+"/docs/a.txt" {
				continue
			}
			for _, ps := range r.Propstats {
				if !strings.Contains(ps.Status, "200") {
					continue
				}
				found = true
				assert.Equal(t, xml.Name{Space: "custom", Local: "name"}, ps.Prop.Author.Name.XMLName)
				assert.Equal(t, "alice", ps.Prop.Author.Name.Value)
			}
		}
		assert.True(t, found, "depth %s: %s", depth, rec.Body.String())
	}
}
