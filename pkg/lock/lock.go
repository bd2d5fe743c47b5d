// Package lock implements WebDAV write locks.
//
// A Manager tracks the locks of one mount by tree path. Locks are advisory
// for the Manager itself: the protocol layer asks Check before every
// modifying operation and passes the tokens the client presented in its If
// header.
//
// Expiry is lazy. Expired locks are swept at the start of every call; there
// is no background goroutine.
package lock

import (
	"fmt"
	"time"

	"github.com/marmos91/dittodav/pkg/dav"
)

// Scope is the sharing mode of a lock.
type Scope int

const (
	// Exclusive locks conflict with every other lock on the same resources
	Exclusive Scope = iota

	// Shared locks coexist with other shared locks
	Shared
)

// String returns the XML element name of the scope.
func (s Scope) String() string {
	if s == Shared {
		return "shared"
	}
	return "exclusive"
}

// Infinite requests a lock that never expires.
const Infinite time.Duration = -1

// Details describes a lock request.
type Details struct {
	// Root is the tree path the lock is taken on
	Root string

	// Scope is exclusive or shared
	Scope Scope

	// Depth is dav.DepthZero or dav.DepthInfinity
	Depth dav.Depth

	// Owner is the raw inner XML of the owner element, echoed back verbatim
	Owner []byte

	// Timeout is the requested duration: 0 selects the configured default,
	// Infinite asks for a lock that never expires
	Timeout time.Duration
}

// Lock is a granted lock.
type Lock struct {
	Details

	// Token identifies the lock ("urn:uuid:<uuid>")
	Token string

	// Expires is zero for infinite locks
	Expires time.Time
}

// Covers reports whether the lock applies to p.
func (l Lock) Covers(p string) bool {
	if l.Root == p {
		return true
	}
	return l.Depth == dav.DepthInfinity && dav.IsAncestor(l.Root, p)
}

// TimeoutHeader renders the remaining lifetime as a Timeout header value.
func (l Lock) TimeoutHeader(now time.Time) string {
	if l.Expires.IsZero() {
		return "Infinite"
	}
	remaining := l.Expires.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("Second-%d", int64((remaining+time.Second-1)/time.Second))
}

func (l Lock) expired(now time.Time) bool {
	return !l.Expires.IsZero() && !now.Before(l.Expires)
}

// conflictsWith reports whether a new lock described by d cannot coexist
// with l.
func (l Lock) conflictsWith(d Details) bool {
	if l.Scope == Shared && d.Scope == Shared {
		return false
	}
	if l.Covers(d.Root) {
		return true
	}
	return d.Depth == dav.DepthInfinity && dav.IsAncestor(d.Root, l.Root)
}
