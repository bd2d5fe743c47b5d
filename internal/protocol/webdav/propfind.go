package webdav

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/marmos91/dittodav/pkg/dav"
)

// errDepthExceeded stops a walk that went past the configured depth cap.
var errDepthExceeded = errors.New("propfind depth limit exceeded")

// handlePropfind lists properties of p and, per Depth, its descendants.
//
// The multi-status body is buffered and only sent once the walk completes,
// so a failure half-way through still yields a clean error response.
func handlePropfind(h *Handler, w http.ResponseWriter, r *http.Request, p string) (int, error) {
	ctx := r.Context()

	if _, err := h.tree.Resolve(ctx, p); err != nil {
		return 0, err
	}

	depth, err := parseDepth(r, dav.DepthInfinity)
	if err != nil {
		return 0, err
	}

	req, err := readPropfind(r.Body)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	mw := newMultistatusWriter(&buf)

	err = h.tree.Walk(ctx, p, depth, func(res *dav.Resource, level int) error {
		if h.maxDepth > 0 && level > h.maxDepth {
			return errDepthExceeded
		}

		stats, err := h.propstats(r, res, req)
		if err != nil {
			return err
		}
		return mw.writeResponse(response{
			Href:      h.href(res.Path, res.IsCollection),
			Propstats: stats,
		})
	})
	if errors.Is(err, errDepthExceeded) {
		writeConditionError(w, http.StatusForbidden, "propfind-finite-depth")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := mw.close(); err != nil {
		return 0, err
	}

	writeXML(w, dav.StatusMulti, buf.Bytes())
	return 0, nil
}

// propstats computes the propstats of one resource for a PROPFIND.
func (h *Handler) propstats(r *http.Request, res *dav.Resource, req propfindRequest) ([]dav.Propstat, error) {
	ctx := r.Context()

	switch req.Mode {
	case modePropName:
		names, err := h.props.PropNames(ctx, res)
		if err != nil {
			return nil, err
		}
		ps := dav.Propstat{Status: http.StatusOK}
		for _, name := range names {
			ps.Props = append(ps.Props, dav.Property{Name: name})
		}
		return []dav.Propstat{ps}, nil

	case modeProp:
		return h.props.Find(ctx, res, req.Names)

	default:
		return h.props.AllProp(ctx, res, req.Include)
	}
}
