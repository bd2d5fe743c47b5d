// Package property answers PROPFIND and PROPPATCH for one mount.
//
// Live properties are computed from the resource tree and the lock manager;
// dead properties come from a props.Store. The Service merges both and
// groups results into propstats ready for a multi-status response.
package property

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/props"
)

// LockLister lists the locks covering a path. *lock.Manager implements it.
type LockLister interface {
	Discover(ctx context.Context, path string) []lock.Lock
}

// Option customizes a Service.
type Option func(*Service)

// WithHref sets the function turning tree paths into client-visible hrefs,
// used for lock roots in lockdiscovery.
func WithHref(href func(path string) string) Option {
	return func(s *Service) {
		s.href = href
	}
}

// WithClock replaces the time source used to render lock timeouts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service computes and patches the properties of one mount's resources.
//
// Thread Safety:
// Service holds no mutable state; concurrency is delegated to the tree,
// the store and the lock manager.
type Service struct {
	tree  content.Tree
	store props.Store
	locks LockLister
	href  func(string) string
	now   func() time.Time
}

// NewService creates a property service.
//
// Parameters:
//   - tree: Resource tree supplying live property values
//   - store: Dead property backend
//   - locks: Source of lockdiscovery; may be nil for an empty discovery
func NewService(tree content.Tree, store props.Store, locks LockLister, opts ...Option) *Service {
	s := &Service{
		tree:  tree,
		store: store,
		locks: locks,
		href:  func(p string) string { return p },
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Find returns the requested properties of res, grouped into a 200 propstat
// for the found ones and a 404 propstat for the missing ones.
func (s *Service) Find(ctx context.Context, res *dav.Resource, names []dav.PropName) ([]dav.Propstat, error) {
	dead, err := s.store.Get(ctx, res.Path)
	if err != nil {
		return nil, err
	}

	found := dav.Propstat{Status: http.StatusOK}
	missing := dav.Propstat{Status: http.StatusNotFound}

	for _, name := range names {
		if IsLive(name) {
			prop, ok, err := s.live(ctx, res, name)
			if err != nil {
				return nil, err
			}
			if ok {
				found.Props = append(found.Props, prop)
				continue
			}
			missing.Props = append(missing.Props, dav.Property{Name: name})
			continue
		}

		if prop, ok := dead[name]; ok {
			found.Props = append(found.Props, prop)
			continue
		}
		missing.Props = append(missing.Props, dav.Property{Name: name})
	}

	return nonEmpty(found, missing), nil
}

// AllProp returns every live and dead property of res, followed by the
// include names that allprop does not already cover.
func (s *Service) AllProp(ctx context.Context, res *dav.Resource, include []dav.PropName) ([]dav.Propstat, error) {
	names, err := s.PropNames(ctx, res)
	if err != nil {
		return nil, err
	}

	seen := make(map[dav.PropName]bool, len(names))
	for _, name := range names {
		seen[name] = true
	}
	for _, name := range include {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	return s.Find(ctx, res, names)
}

// PropNames returns the names of every property res has: its applicable
// live properties, then its dead properties sorted in Clark notation.
func (s *Service) PropNames(ctx context.Context, res *dav.Resource) ([]dav.PropName, error) {
	dead, err := s.store.Get(ctx, res.Path)
	if err != nil {
		return nil, err
	}

	names := liveNames(res)

	deadNames := make([]dav.PropName, 0, len(dead))
	for name := range dead {
		if !IsLive(name) {
			deadNames = append(deadNames, name)
		}
	}
	sort.Slice(deadNames, func(i, j int) bool {
		return deadNames[i].String() < deadNames[j].String()
	})

	return append(names, deadNames...), nil
}

// Patch applies PROPPATCH instructions to res.
//
// Instructions naming a live property are refused with 403 and
// cannot-modify-protected-property; the remaining instructions are committed
// together. When the commit fails, the property blamed by the backend (or,
// if none is, the first one) reports 500 and the others 424. Each name is
// reported once; the last instruction for a name wins.
func (s *Service) Patch(ctx context.Context, res *dav.Resource, patches []dav.Patch) ([]dav.Propstat, error) {
	var (
		order     []dav.PropName
		seen      = make(map[dav.PropName]bool)
		protected []dav.PropName
		apply     []dav.Patch
	)

	for _, patch := range patches {
		name := patch.Property.Name
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
			if IsLive(name) {
				protected = append(protected, name)
			}
		}
		if !IsLive(name) {
			apply = append(apply, patch)
		}
	}

	forbidden := dav.Propstat{
		Status: http.StatusForbidden,
		Error:  []byte("<D:cannot-modify-protected-property/>"),
	}
	for _, name := range protected {
		forbidden.Props = append(forbidden.Props, dav.Property{Name: name})
	}

	if len(apply) == 0 {
		return nonEmpty(forbidden), nil
	}

	ok := dav.Propstat{Status: http.StatusOK}
	commitErr := s.store.Patch(ctx, res.Path, apply)
	if commitErr == nil {
		for _, name := range order {
			if !IsLive(name) {
				ok.Props = append(ok.Props, dav.Property{Name: name})
			}
		}
		return nonEmpty(ok, forbidden), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	var blamed dav.PropName
	var propErr *props.PropertyError
	if errors.As(commitErr, &propErr) {
		blamed = propErr.Name
	} else {
		blamed = apply[0].Property.Name
	}

	failed := dav.Propstat{Status: http.StatusInternalServerError}
	dependent := dav.Propstat{Status: dav.StatusFailedDependency}
	for _, name := range order {
		switch {
		case IsLive(name):
		case name == blamed:
			failed.Props = append(failed.Props, dav.Property{Name: name})
		default:
			dependent.Props = append(dependent.Props, dav.Property{Name: name})
		}
	}
	return nonEmpty(failed, dependent, forbidden), nil
}

// nonEmpty drops propstats without properties.
func nonEmpty(stats ...dav.Propstat) []dav.Propstat {
	result := make([]dav.Propstat, 0, len(stats))
	for _, ps := range stats {
		if len(ps.Props) > 0 {
			result = append(result, ps)
		}
	}
	return result
}
