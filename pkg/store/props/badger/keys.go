package badger

import (
	"bytes"
	"strings"

	"github.com/marmos91/dittodav/pkg/dav"
)

// Database Key Namespace Design
// ==============================
//
// Every dead property is one key-value pair:
//
// Data Type        Prefix   Key Format                          Value Type
// ==========================================================================
// Dead property    "p:"     p:<path>\x00<space>\x00<local>      Property (JSON)
//
// Paths never contain NUL, so "p:<path>\x00" selects exactly the properties of
// one resource and "p:<path>/" selects those of all its descendants. The root
// path "/" makes "p:/" the prefix of the whole namespace.

const (
	prefixProperty = "p:"
	separator      = "\x00"
)

// keyProperty builds the key of one property.
func keyProperty(path string, name dav.PropName) []byte {
	return []byte(prefixProperty + path + separator + name.Space + separator + name.Local)
}

// keyResource returns the prefix of every property of path.
func keyResource(path string) []byte {
	return []byte(prefixProperty + path + separator)
}

// keyDescendants returns the prefix of every property below path.
func keyDescendants(path string) []byte {
	if path == "/" {
		return []byte(prefixProperty + "/")
	}
	return []byte(prefixProperty + path + "/")
}

// parseKey splits a property key into its path and name.
func parseKey(key []byte) (string, dav.PropName, bool) {
	if !bytes.HasPrefix(key, []byte(prefixProperty)) {
		return "", dav.PropName{}, false
	}

	parts := strings.SplitN(string(key[len(prefixProperty):]), separator, 3)
	if len(parts) != 3 {
		return "", dav.PropName{}, false
	}
	return parts[0], dav.PropName{Space: parts[1], Local: parts[2]}, true
}
