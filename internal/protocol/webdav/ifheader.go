package webdav

import (
	"strings"
	"unicode"

	"github.com/marmos91/dittodav/pkg/dav"
)

// The If header (RFC 4918 section 10.4):
//
//	If = "If" ":" ( 1*No-tag-list | 1*Tagged-list )
//	No-tag-list = List
//	Tagged-list = Resource-Tag 1*List
//	List = "(" 1*Condition ")"
//	Condition = ["Not"] (State-token | "[" entity-tag "]")

// noLock is the state token no lock ever carries.
const noLock = "DAV:no-lock"

// ifCondition is one condition of a list.
type ifCondition struct {
	Not   bool
	Token string
	ETag  string
}

// ifList is a parenthesized list of conditions, all of which must hold.
type ifList struct {
	// ResourceTag is the tagged resource URL, empty for untagged lists
	ResourceTag string
	Conditions  []ifCondition
}

// ifHeader is a parsed If header. It holds when at least one list holds.
type ifHeader struct {
	Lists []ifList
}

// tokens returns every state token named positively in the header.
func (h ifHeader) tokens() []string {
	var tokens []string
	for _, l := range h.Lists {
		for _, c := range l.Conditions {
			if c.Token != "" && !c.Not && c.Token != noLock {
				tokens = append(tokens, c.Token)
			}
		}
	}
	return tokens
}

// parseIfHeader parses the value of an If header.
func parseIfHeader(s string) (ifHeader, error) {
	var h ifHeader
	s = strings.TrimSpace(s)
	if s == "" {
		return h, dav.NewBadRequestError("empty If header")
	}

	tagged := s[0] == '<'
	tag := ""
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if s == "" {
			break
		}

		switch s[0] {
		case '<':
			if !tagged {
				return h, dav.NewBadRequestError("If header mixes tagged and untagged lists")
			}
			end := strings.IndexByte(s, '>')
			if end < 0 {
				return h, dav.NewBadRequestError("unterminated resource tag in If header")
			}
			tag = s[1:end]
			s = s[end+1:]

		case '(':
			if tagged && tag == "" {
				return h, dav.NewBadRequestError("If header list without resource tag")
			}
			list, rest, err := parseIfList(s[1:])
			if err != nil {
				return h, err
			}
			list.ResourceTag = tag
			h.Lists = append(h.Lists, list)
			s = rest

		default:
			return h, dav.NewBadRequestError("malformed If header")
		}
	}

	if len(h.Lists) == 0 {
		return h, dav.NewBadRequestError("If header has no lists")
	}
	return h, nil
}

// parseIfList parses conditions up to and including the closing parenthesis.
func parseIfList(s string) (ifList, string, error) {
	var list ifList
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if s == "" {
			return list, "", dav.NewBadRequestError("unterminated list in If header")
		}

		if s[0] == ')' {
			if len(list.Conditions) == 0 {
				return list, "", dav.NewBadRequestError("empty list in If header")
			}
			return list, s[1:], nil
		}

		var cond ifCondition
		if len(s) >= 3 && strings.EqualFold(s[:3], "not") {
			cond.Not = true
			s = strings.TrimLeftFunc(s[3:], unicode.IsSpace)
			if s == "" {
				return list, "", dav.NewBadRequestError("dangling Not in If header")
			}
		}

		switch s[0] {
		case '<':
			end := strings.IndexByte(s, '>')
			if end < 0 {
				return list, "", dav.NewBadRequestError("unterminated state token in If header")
			}
			cond.Token = s[1:end]
			s = s[end+1:]
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return list, "", dav.NewBadRequestError("unterminated entity tag in If header")
			}
			cond.ETag = s[1:end]
			s = s[end+1:]
		default:
			return list, "", dav.NewBadRequestError("malformed condition in If header")
		}

		list.Conditions = append(list.Conditions, cond)
	}
}

// etagMatches compares entity tags, ignoring weakness.
func etagMatches(a, b string) bool {
	return strings.TrimPrefix(a, "W/") == strings.TrimPrefix(b, "W/")
}
