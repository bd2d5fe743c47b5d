package webdav

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/lock"
)

// parseDepth parses a Depth header. An absent header yields def.
func parseDepth(r *http.Request, def dav.Depth) (dav.Depth, error) {
	switch strings.ToLower(strings.TrimSpace(r.Header.Get("Depth"))) {
	case "":
		return def, nil
	case "0":
		return dav.DepthZero, nil
	case "1":
		return dav.DepthOne, nil
	case "infinity":
		return dav.DepthInfinity, nil
	}
	return def, dav.NewBadRequestError("invalid Depth header")
}

// parseOverwrite parses an Overwrite header; absent means true.
func parseOverwrite(r *http.Request) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(r.Header.Get("Overwrite"))) {
	case "", "T":
		return true, nil
	case "F":
		return false, nil
	}
	return false, dav.NewBadRequestError("invalid Overwrite header")
}

// parseTimeout parses a Timeout header ("Second-N" or "Infinite", possibly
// a comma separated list of preferences). The first understood value wins;
// none yields 0, selecting the configured default.
func parseTimeout(r *http.Request) time.Duration {
	for _, part := range strings.Split(r.Header.Get("Timeout"), ",") {
		part = strings.TrimSpace(part)
		if strings.EqualFold(part, "Infinite") {
			return lock.Infinite
		}
		if len(part) > 7 && strings.EqualFold(part[:7], "Second-") {
			seconds, err := strconv.ParseInt(part[7:], 10, 64)
			if err == nil && seconds > 0 && seconds < int64(1<<31) {
				return time.Duration(seconds) * time.Second
			}
		}
	}
	return 0
}

// parseLockToken extracts the token of a Lock-Token header ("<token>").
func parseLockToken(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.Header.Get("Lock-Token"))
	if len(v) < 3 || v[0] != '<' || v[len(v)-1] != '>' {
		return "", dav.NewBadRequestError("missing or malformed Lock-Token header")
	}
	return v[1 : len(v)-1], nil
}

// hasBody reports whether the request carries a body.
func hasBody(r *http.Request) bool {
	return r.ContentLength > 0 || (r.ContentLength < 0 && r.Body != nil && r.Body != http.NoBody)
}
