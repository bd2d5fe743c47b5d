package webdav

import (
	"bytes"
	"encoding/xml"
	"net/http"
	"strings"
	"testing"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPropfind(t *testing.T) {
	t.Run("EmptyIsAllProp", func(t *testing.T) {
		req, err := readPropfind(strings.NewReader("  "))
		require.NoError(t, err)
		assert.Equal(t, modeAllProp, req.Mode)
	})

	t.Run("AllPropInclude", func(t *testing.T) {
		req, err := readPropfind(strings.NewReader(`<D:propfind xmlns:D="DAV:" xmlns:Z="urn:z">
			<D:allprop/><D:include><Z:color/></D:include></D:propfind>`))
		require.NoError(t, err)
		assert.Equal(t, modeAllProp, req.Mode)
		assert.Equal(t, []dav.PropName{{Space: "urn:z", Local: "color"}}, req.Include)
	})

	t.Run("Prop", func(t *testing.T) {
		req, err := readPropfind(strings.NewReader(`<propfind xmlns="DAV:"><prop><getetag/><x:a xmlns:x="urn:x"/></prop></propfind>`))
		require.NoError(t, err)
		assert.Equal(t, modeProp, req.Mode)
		assert.Equal(t, []dav.PropName{
			{Space: dav.Namespace, Local: "getetag"},
			{Space: "urn:x", Local: "a"},
		}, req.Names)
	})

	t.Run("TwoModes", func(t *testing.T) {
		_, err := readPropfind(strings.NewReader(`<D:propfind xmlns:D="DAV:"><D:allprop/><D:propname/></D:propfind>`))
		assert.Equal(t, dav.ErrBadRequest, dav.CodeOf(err))
	})

	t.Run("WrongRoot", func(t *testing.T) {
		_, err := readPropfind(strings.NewReader(`<D:lockinfo xmlns:D="DAV:"/>`))
		assert.Equal(t, dav.ErrBadRequest, dav.CodeOf(err))
	})
}

func TestReadProppatch(t *testing.T) {
	body := `<?xml version="1.0"?>
<D:propertyupdate xmlns:D="DAV:" xmlns:Z="urn:z">
  <D:set><D:prop><Z:color xml:lang="en">red</Z:color></D:prop></D:set>
  <D:remove><D:prop><Z:size/></D:prop></D:remove>
  <D:set><D:prop><Z:size><Z:w>10</Z:w></Z:size></D:prop></D:set>
</D:propertyupdate>`

	patches, err := readProppatch(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, patches, 3)

	assert.False(t, patches[0].Remove)
	assert.Equal(t, dav.PropName{Space: "urn:z", Local: "color"}, patches[0].Property.Name)
	assert.Equal(t, "en", patches[0].Property.Lang)
	assert.Equal(t, "red", string(patches[0].Property.InnerXML))

	assert.True(t, patches[1].Remove)
	assert.Equal(t, "size", patches[1].Property.Name.Local)

	assert.False(t, patches[2].Remove)
	assert.Equal(t, `<w xmlns="urn:z">10</w>`, string(patches[2].Property.InnerXML))
}

func TestXMLFragment_DeclaresNamespaces(t *testing.T) {
	body := `<D:propertyupdate xmlns:D="DAV:"><D:set><D:prop>
<Z:author xmlns:Z="custom" xmlns:Q="urn:q"><Z:name Q:kind="given" id="1">alice &amp; co</Z:name><plain/><Q:tag/></Z:author>
</D:prop></D:set></D:propertyupdate>`

	patches, err := readProppatch(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, patches, 1)

	value := string(patches[0].Property.InnerXML)
	assert.Equal(t, `<name xmlns="custom" xmlns:a0="urn:q" a0:kind="given" id="1">alice &amp; co</name>`+
		`<plain xmlns=""></plain><tag xmlns="urn:q"></tag>`, value)

	// The value parses on its own, with the names it had in the request
	var wrapped struct {
		Name struct {
			Kind  string `xml:"urn:q kind,attr"`
			Value string `xml:",chardata"`
		} `xml:"custom name"`
		Plain *struct {
			XMLName xml.Name
		} `xml:"plain"`
		Tag *struct{} `xml:"urn:q tag"`
	}
	require.NoError(t, xml.Unmarshal([]byte("<v>"+value+"</v>"), &wrapped))
	assert.Equal(t, "alice & co", wrapped.Name.Value)
	assert.Equal(t, "given", wrapped.Name.Kind)
	require.NotNil(t, wrapped.Plain)
	assert.Empty(t, wrapped.Plain.XMLName.Space)
	assert.NotNil(t, wrapped.Tag)
}

func TestReadProppatch_Malformed(t *testing.T) {
	inputs := []string{
		``,
		`<D:propfind xmlns:D="DAV:"/>`,
		`<D:propertyupdate xmlns:D="DAV:"></D:propertyupdate>`,
		`<D:propertyupdate xmlns:D="DAV:"><D:set><D:prop>`,
	}

	for _, input := range inputs {
		_, err := readProppatch(strings.NewReader(input))
		assert.Equal(t, dav.ErrBadRequest, dav.CodeOf(err), "input %q", input)
	}
}

func TestReadLockInfo(t *testing.T) {
	li, ok, err := readLockInfo(strings.NewReader(lockBody("shared")))
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, li.Shared)
	assert.Nil(t, li.Exclusive)
	assert.Equal(t, `<href xmlns="DAV:">mailto:alice@example.com</href>`, string(li.Owner))

	_, ok, err = readLockInfo(strings.NewReader(""))
	require.NoError(t, err)
	assert.False(t, ok)

	noScope := `<D:lockinfo xmlns:D="DAV:"><D:locktype><D:write/></D:locktype></D:lockinfo>`
	_, _, err = readLockInfo(strings.NewReader(noScope))
	assert.Equal(t, dav.ErrBadRequest, dav.CodeOf(err))
}

func TestReadBody_TooLarge(t *testing.T) {
	_, err := readBody(bytes.NewReader(make([]byte, maxBodySize+1)))
	assert.Equal(t, dav.ErrBadRequest, dav.CodeOf(err))
}

func TestMultistatusWriter(t *testing.T) {
	var buf bytes.Buffer
	mw := newMultistatusWriter(&buf)

	require.NoError(t, mw.writeResponse(response{
		Href: "/dav/a%20b",
		Propstats: []dav.Propstat{{
			Status: http.StatusOK,
			Props: []dav.Property{
				{Name: dav.PropDisplayName, InnerXML: []byte("a b")},
				{Name: dav.PropName{Space: "urn:z", Local: "color"}, Lang: "en", InnerXML: []byte("red")},
			},
		}},
	}))
	require.NoError(t, mw.writeResponse(response{Href: "/dav/c", Status: dav.StatusLocked, Error: []byte("<D:lock-token-submitted/>")}))
	require.NoError(t, mw.close())

	out := buf.String()
	assert.Contains(t, out, `<D:displayname>a b</D:displayname>`)
	assert.Contains(t, out, `<color xmlns="urn:z" xml:lang="en">red</color>`)
	assert.Contains(t, out, "HTTP/1.1 423 Locked")

	// The output is well formed
	var ms struct {
		Responses []struct {
			Href string `xml:"href"`
		} `xml:"response"`
	}
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &ms))
	require.Len(t, ms.Responses, 2)
	assert.Equal(t, "/dav/a%20b", ms.Responses[0].Href)
}

func TestMultistatusWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newMultistatusWriter(&buf).close())
	assert.Contains(t, buf.String(), `<D:multistatus xmlns:D="DAV:"></D:multistatus>`)
}
