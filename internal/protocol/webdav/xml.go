package webdav

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"

	"github.com/marmos91/dittodav/pkg/dav"
)

// maxBodySize bounds the XML bodies read from clients.
const maxBodySize = 1 << 20

const xmlHeader = xml.Header

// escapeString escapes s for use as XML character data.
func escapeString(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// ============================================================================
// Request Decoding
// ============================================================================

// readBody reads at most maxBodySize bytes of body.
func readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, maxBodySize+1))
	if err != nil {
		return nil, dav.WrapError(dav.ErrBadRequest, "failed to read request body", "", err)
	}
	if len(data) > maxBodySize {
		return nil, dav.NewBadRequestError("request body too large")
	}
	return data, nil
}

// propNames collects the names of an element's children.
type propNames []dav.PropName

func (p *propNames) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			*p = append(*p, dav.PropName{Space: t.Name.Space, Local: t.Name.Local})
			if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// xmlNamespaceURI is the namespace bound to the reserved xml prefix.
const xmlNamespaceURI = "http://www.w3.org/XML/1998/namespace"

// xmlFragment is the content of an element, re-serialized so that every
// element declares the namespace it lives in. The result does not depend on
// bindings made by its ancestors and can be embedded in any document.
//
// Text round-trips unchanged. Prefixed markup comes back with the same
// expanded names under default namespace declarations.
type xmlFragment []byte

func (f *xmlFragment) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b bytes.Buffer

	// scopes[i] is the default namespace in effect at depth i. The context
	// the fragment is embedded in is unknown, so top-level elements always
	// declare theirs.
	scopes := []string{"\x00"}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			writeFragmentStart(&b, t, scopes[len(scopes)-1])
			scopes = append(scopes, t.Name.Space)
		case xml.EndElement:
			if len(scopes) == 1 {
				*f = b.Bytes()
				return nil
			}
			scopes = scopes[:len(scopes)-1]
			b.WriteString("</" + t.Name.Local + ">")
		case xml.CharData:
			_ = xml.EscapeText(&b, t)
		case xml.Comment:
			b.WriteString("<!--")
			b.Write(t)
			b.WriteString("-->")
		}
	}
}

// writeFragmentStart writes a start tag, declaring its namespace when it
// differs from the inherited default. Namespaced attributes get a generated
// prefix declared on the same element.
func writeFragmentStart(b *bytes.Buffer, t xml.StartElement, inherited string) {
	b.WriteString("<" + t.Name.Local)
	if t.Name.Space != inherited {
		writeAttr(b, "xmlns", t.Name.Space)
	}

	generated := 0
	for _, a := range t.Attr {
		switch {
		case a.Name.Space == "xmlns", a.Name.Space == "" && a.Name.Local == "xmlns":
			// Declarations are rewritten above
		case a.Name.Space == "":
			writeAttr(b, a.Name.Local, a.Value)
		case a.Name.Space == xmlNamespaceURI:
			writeAttr(b, "xml:"+a.Name.Local, a.Value)
		default:
			prefix := "a" + strconv.Itoa(generated)
			generated++
			writeAttr(b, "xmlns:"+prefix, a.Name.Space)
			writeAttr(b, prefix+":"+a.Name.Local, a.Value)
		}
	}
	b.WriteString(">")
}

func writeAttr(b *bytes.Buffer, name, value string) {
	b.WriteString(" " + name + `="`)
	_ = xml.EscapeText(b, []byte(value))
	b.WriteString(`"`)
}

// propfindMode selects what a PROPFIND returns.
type propfindMode int

const (
	modeAllProp propfindMode = iota
	modePropName
	modeProp
)

// propfindRequest is a decoded PROPFIND body.
type propfindRequest struct {
	Mode    propfindMode
	Names   []dav.PropName
	Include []dav.PropName
}

type xmlPropfind struct {
	XMLName  xml.Name  `xml:"DAV: propfind"`
	AllProp  *struct{} `xml:"DAV: allprop"`
	PropName *struct{} `xml:"DAV: propname"`
	Prop     propNames `xml:"DAV: prop"`
	Include  propNames `xml:"DAV: include"`
}

// readPropfind decodes a PROPFIND body. An empty body means allprop.
func readPropfind(body io.Reader) (propfindRequest, error) {
	data, err := readBody(body)
	if err != nil {
		return propfindRequest{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return propfindRequest{Mode: modeAllProp}, nil
	}

	var pf xmlPropfind
	if err := xml.Unmarshal(data, &pf); err != nil {
		return propfindRequest{}, dav.WrapError(dav.ErrBadRequest, "malformed propfind body", "", err)
	}

	selected := 0
	req := propfindRequest{}
	if pf.AllProp != nil {
		selected++
		req.Mode = modeAllProp
		req.Include = pf.Include
	}
	if pf.PropName != nil {
		selected++
		req.Mode = modePropName
	}
	if pf.Prop != nil {
		selected++
		req.Mode = modeProp
		req.Names = pf.Prop
	}
	if selected != 1 {
		return propfindRequest{}, dav.NewBadRequestError("propfind must hold exactly one of allprop, propname or prop")
	}
	if req.Mode == modeProp && len(req.Names) == 0 {
		return propfindRequest{}, dav.NewBadRequestError("empty prop element")
	}
	return req, nil
}

// readProppatch decodes a PROPPATCH body into ordered instructions.
func readProppatch(body io.Reader) ([]dav.Patch, error) {
	data, err := readBody(body)
	if err != nil {
		return nil, err
	}

	d := xml.NewDecoder(bytes.NewReader(data))
	patches, err := decodePropertyUpdate(d)
	if err != nil {
		var davErr *dav.Error
		if errors.As(err, &davErr) {
			return nil, err
		}
		return nil, dav.WrapError(dav.ErrBadRequest, "malformed propertyupdate body", "", err)
	}
	if len(patches) == 0 {
		return nil, dav.NewBadRequestError("propertyupdate holds no instructions")
	}
	return patches, nil
}

func decodePropertyUpdate(d *xml.Decoder) ([]dav.Patch, error) {
	root, err := nextStart(d)
	if err != nil {
		return nil, err
	}
	if root.Name.Space != dav.Namespace || root.Name.Local != "propertyupdate" {
		return nil, dav.NewBadRequestError("expected propertyupdate element")
	}

	var patches []dav.Patch
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.EndElement:
			return patches, nil
		case xml.StartElement:
			if t.Name.Space != dav.Namespace || (t.Name.Local != "set" && t.Name.Local != "remove") {
				if err := d.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			instructions, err := decodeInstruction(d, t.Name.Local == "remove")
			if err != nil {
				return nil, err
			}
			patches = append(patches, instructions...)
		}
	}
}

// decodeInstruction reads the prop element of a set or remove instruction.
func decodeInstruction(d *xml.Decoder, remove bool) ([]dav.Patch, error) {
	var patches []dav.Patch
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.EndElement:
			return patches, nil
		case xml.StartElement:
			if t.Name.Space != dav.Namespace || t.Name.Local != "prop" {
				if err := d.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			props, err := decodeProps(d, remove)
			if err != nil {
				return nil, err
			}
			patches = append(patches, props...)
		}
	}
}

func decodeProps(d *xml.Decoder, remove bool) ([]dav.Patch, error) {
	var patches []dav.Patch
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.EndElement:
			return patches, nil
		case xml.StartElement:
			var value xmlFragment
			if err := d.DecodeElement(&value, &t); err != nil {
				return nil, err
			}
			prop := dav.Property{
				Name: dav.PropName{Space: t.Name.Space, Local: t.Name.Local},
				Lang: attrValue(t, xmlNamespaceURI, "lang"),
			}
			if !remove {
				prop.InnerXML = value
			}
			patches = append(patches, dav.Patch{Remove: remove, Property: prop})
		}
	}
}

func attrValue(t xml.StartElement, space, local string) string {
	for _, a := range t.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func nextStart(d *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

// lockInfo is a decoded LOCK body.
type lockInfo struct {
	XMLName   xml.Name  `xml:"DAV: lockinfo"`
	Exclusive *struct{} `xml:"DAV: lockscope>exclusive"`
	Shared    *struct{} `xml:"DAV: lockscope>shared"`
	Write     *struct{} `xml:"DAV: locktype>write"`
	Owner     xmlFragment `xml:"DAV: owner"`
}

// readLockInfo decodes a LOCK body. ok is false for an empty body, which
// requests a refresh.
func readLockInfo(body io.Reader) (lockInfo, bool, error) {
	data, err := readBody(body)
	if err != nil {
		return lockInfo{}, false, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return lockInfo{}, false, nil
	}

	var li lockInfo
	if err := xml.Unmarshal(data, &li); err != nil {
		return lockInfo{}, false, dav.WrapError(dav.ErrBadRequest, "malformed lockinfo body", "", err)
	}
	if (li.Exclusive == nil) == (li.Shared == nil) {
		return lockInfo{}, false, dav.NewBadRequestError("lockinfo must name exactly one lock scope")
	}
	if li.Write == nil {
		return lockInfo{}, false, dav.NewBadRequestError("only write locks are supported")
	}
	return li, true, nil
}

// ============================================================================
// Multi-Status Encoding
// ============================================================================

// response is one resource entry of a multi-status body.
type response struct {
	Href        string
	Status      int
	Propstats   []dav.Propstat
	Error       []byte
	Description string
}

// multistatusWriter writes a multi-status body. The root element is
// emitted lazily with the first response.
type multistatusWriter struct {
	w       io.Writer
	started bool
}

func newMultistatusWriter(w io.Writer) *multistatusWriter {
	return &multistatusWriter{w: w}
}

// writeResponse appends one response element.
func (m *multistatusWriter) writeResponse(r response) error {
	var b bytes.Buffer
	if !m.started {
		b.WriteString(xmlHeader)
		b.WriteString(`<D:multistatus xmlns:D="DAV:">`)
		m.started = true
	}

	b.WriteString("<D:response><D:href>")
	_ = xml.EscapeText(&b, []byte(r.Href))
	b.WriteString("</D:href>")

	if len(r.Propstats) == 0 {
		writeStatus(&b, r.Status)
	}
	for _, ps := range r.Propstats {
		b.WriteString("<D:propstat><D:prop>")
		for _, prop := range ps.Props {
			writeProperty(&b, prop)
		}
		b.WriteString("</D:prop>")
		writeStatus(&b, ps.Status)
		if len(ps.Error) > 0 {
			b.WriteString("<D:error>")
			b.Write(ps.Error)
			b.WriteString("</D:error>")
		}
		if ps.Description != "" {
			writeDescription(&b, ps.Description)
		}
		b.WriteString("</D:propstat>")
	}

	if len(r.Error) > 0 {
		b.WriteString("<D:error>")
		b.Write(r.Error)
		b.WriteString("</D:error>")
	}
	if r.Description != "" {
		writeDescription(&b, r.Description)
	}
	b.WriteString("</D:response>")

	_, err := m.w.Write(b.Bytes())
	return err
}

// close terminates the body. A writer without responses emits an empty
// multistatus element.
func (m *multistatusWriter) close() error {
	if !m.started {
		_, err := io.WriteString(m.w, xmlHeader+`<D:multistatus xmlns:D="DAV:"></D:multistatus>`)
		return err
	}
	_, err := io.WriteString(m.w, "</D:multistatus>")
	return err
}

func writeStatus(b *bytes.Buffer, status int) {
	b.WriteString("<D:status>HTTP/1.1 ")
	b.WriteString(strconv.Itoa(status))
	b.WriteString(" ")
	_ = xml.EscapeText(b, []byte(dav.StatusText(status)))
	b.WriteString("</D:status>")
}

func writeDescription(b *bytes.Buffer, desc string) {
	b.WriteString("<D:responsedescription>")
	_ = xml.EscapeText(b, []byte(desc))
	b.WriteString("</D:responsedescription>")
}

// writeProperty writes a property element with its raw content.
//
// DAV: properties use the D prefix bound on the root element; others carry
// a default namespace declaration.
func writeProperty(b *bytes.Buffer, prop dav.Property) {
	var open, closing string
	if prop.Name.Space == dav.Namespace {
		open = "<D:" + prop.Name.Local
		closing = "</D:" + prop.Name.Local + ">"
	} else {
		var ns bytes.Buffer
		_ = xml.EscapeText(&ns, []byte(prop.Name.Space))
		open = "<" + prop.Name.Local + ` xmlns="` + ns.String() + `"`
		closing = "</" + prop.Name.Local + ">"
	}

	b.WriteString(open)
	if prop.Lang != "" {
		b.WriteString(` xml:lang="`)
		_ = xml.EscapeText(b, []byte(prop.Lang))
		b.WriteString(`"`)
	}
	if len(prop.InnerXML) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")
	b.Write(prop.InnerXML)
	b.WriteString(closing)
}
