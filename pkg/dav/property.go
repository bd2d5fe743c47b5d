package dav

// Namespace is the XML namespace of the WebDAV vocabulary.
const Namespace = "DAV:"

// PropName is the qualified name of a property.
type PropName struct {
	Space string `json:"space"`
	Local string `json:"local"`
}

// String returns the name in Clark notation ("{space}local").
func (n PropName) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// Property is a (name, value) pair attached to a resource.
//
// InnerXML holds the raw XML content of the property element. Values of dead
// properties are stored and returned as-is, so namespace declarations needed
// by the content must be carried inside InnerXML.
type Property struct {
	Name PropName `json:"name"`

	// Lang is the xml:lang of the property element, if any
	Lang string `json:"lang,omitempty"`

	// InnerXML is the raw content of the property element
	InnerXML []byte `json:"value"`
}

// Patch is a single PROPPATCH instruction.
type Patch struct {
	// Remove is true for a remove instruction, false for a set
	Remove bool

	// Property is the property to set, or the name to remove
	Property Property
}

// Propstat groups properties sharing the same status in a multi-status
// response.
type Propstat struct {
	// Props holds the properties; for failure statuses only the names matter
	Props []Property

	// Status is the HTTP status code for the group
	Status int

	// Error is optional inner XML of a DAV:error element
	Error []byte

	// Description is an optional responsedescription
	Description string
}

// Names of the live properties computed from resource state.
var (
	PropResourceType  = PropName{Space: Namespace, Local: "resourcetype"}
	PropDisplayName   = PropName{Space: Namespace, Local: "displayname"}
	PropContentLength = PropName{Space: Namespace, Local: "getcontentlength"}
	PropLastModified  = PropName{Space: Namespace, Local: "getlastmodified"}
	PropCreationDate  = PropName{Space: Namespace, Local: "creationdate"}
	PropContentType   = PropName{Space: Namespace, Local: "getcontenttype"}
	PropETag          = PropName{Space: Namespace, Local: "getetag"}
	PropSupportedLock = PropName{Space: Namespace, Local: "supportedlock"}
	PropLockDiscovery = PropName{Space: Namespace, Local: "lockdiscovery"}
)
