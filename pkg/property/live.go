package property

import (
	"context"
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/lock"
)

// Live property values use the "D:" prefix, which the multi-status writer
// binds to the DAV: namespace on its root element.

var liveProps = map[dav.PropName]bool{
	dav.PropResourceType:  true,
	dav.PropDisplayName:   true,
	dav.PropContentLength: true,
	dav.PropLastModified:  true,
	dav.PropCreationDate:  true,
	dav.PropContentType:   true,
	dav.PropETag:          true,
	dav.PropSupportedLock: true,
	dav.PropLockDiscovery: true,
}

// IsLive reports whether name is a computed, protected property.
func IsLive(name dav.PropName) bool {
	return liveProps[name]
}

// liveNames lists the live properties applicable to res.
func liveNames(res *dav.Resource) []dav.PropName {
	names := []dav.PropName{
		dav.PropResourceType,
		dav.PropDisplayName,
	}
	if !res.IsCollection {
		names = append(names, dav.PropContentLength, dav.PropContentType, dav.PropETag)
	}
	return append(names,
		dav.PropLastModified,
		dav.PropCreationDate,
		dav.PropSupportedLock,
		dav.PropLockDiscovery,
	)
}

const supportedLockXML = `<D:lockentry><D:lockscope><D:exclusive/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockentry>` +
	`<D:lockentry><D:lockscope><D:shared/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockentry>`

// live computes one live property. ok is false when the property does not
// apply to res (e.g. getcontentlength on a collection).
func (s *Service) live(ctx context.Context, res *dav.Resource, name dav.PropName) (dav.Property, bool, error) {
	prop := dav.Property{Name: name}

	switch name {
	case dav.PropResourceType:
		if res.IsCollection {
			prop.InnerXML = []byte("<D:collection/>")
		}

	case dav.PropDisplayName:
		prop.InnerXML = escape(res.DisplayName())

	case dav.PropContentLength:
		if res.IsCollection {
			return prop, false, nil
		}
		prop.InnerXML = []byte(strconv.FormatInt(res.ContentLength, 10))

	case dav.PropLastModified:
		prop.InnerXML = []byte(res.LastModified.UTC().Format(http.TimeFormat))

	case dav.PropCreationDate:
		prop.InnerXML = []byte(res.LastModified.UTC().Format(time.RFC3339))

	case dav.PropContentType:
		if res.IsCollection {
			return prop, false, nil
		}
		ctype := res.ContentType
		if ctype == "" {
			var err error
			ctype, err = s.tree.ContentType(ctx, res.Path)
			if err != nil {
				return prop, false, err
			}
		}
		prop.InnerXML = escape(ctype)

	case dav.PropETag:
		if res.IsCollection {
			return prop, false, nil
		}
		prop.InnerXML = escape(res.ETag())

	case dav.PropSupportedLock:
		prop.InnerXML = []byte(supportedLockXML)

	case dav.PropLockDiscovery:
		var locks []lock.Lock
		if s.locks != nil {
			locks = s.locks.Discover(ctx, res.Path)
		}
		prop.InnerXML = LockDiscoveryXML(locks, s.now(), s.href)

	default:
		return prop, false, nil
	}

	return prop, true, nil
}

// LockDiscoveryXML renders locks as the content of a lockdiscovery element.
//
// href turns a lock root into the client-visible URL reported in lockroot.
func LockDiscoveryXML(locks []lock.Lock, now time.Time, href func(string) string) []byte {
	var b strings.Builder
	for _, l := range locks {
		b.WriteString("<D:activelock><D:locktype><D:write/></D:locktype>")
		b.WriteString("<D:lockscope><D:" + l.Scope.String() + "/></D:lockscope>")
		b.WriteString("<D:depth>" + l.Depth.String() + "</D:depth>")
		if len(l.Owner) > 0 {
			b.WriteString("<D:owner>")
			b.Write(l.Owner)
			b.WriteString("</D:owner>")
		}
		b.WriteString("<D:timeout>" + l.TimeoutHeader(now) + "</D:timeout>")
		b.WriteString("<D:locktoken><D:href>")
		b.Write(escape(l.Token))
		b.WriteString("</D:href></D:locktoken>")
		b.WriteString("<D:lockroot><D:href>")
		b.Write(escape(href(l.Root)))
		b.WriteString("</D:href></D:lockroot>")
		b.WriteString("</D:activelock>")
	}
	return []byte(b.String())
}

func escape(s string) []byte {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return []byte(b.String())
}
