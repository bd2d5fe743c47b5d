package props

import (
	"context"
	"path"

	"github.com/marmos91/dittodav/pkg/dav"
)

// Prefixed scopes a shared Store to one mount.
//
// Every path is stored under "/<name>", so mounts sharing a single badger
// database never see each other's properties. Close is a no-op: the shared
// store is owned and closed by whoever created it.
type Prefixed struct {
	store Store
	name  string
}

var _ Store = (*Prefixed)(nil)

// NewPrefixed returns a view of store scoped to the mount called name.
func NewPrefixed(store Store, name string) *Prefixed {
	return &Prefixed{store: store, name: name}
}

func (p *Prefixed) key(treePath string) string {
	return path.Join("/", p.name, treePath)
}

func (p *Prefixed) Get(ctx context.Context, treePath string) (map[dav.PropName]dav.Property, error) {
	return p.store.Get(ctx, p.key(treePath))
}

func (p *Prefixed) Patch(ctx context.Context, treePath string, patches []dav.Patch) error {
	return p.store.Patch(ctx, p.key(treePath), patches)
}

func (p *Prefixed) Delete(ctx context.Context, treePath string) error {
	return p.store.Delete(ctx, p.key(treePath))
}

func (p *Prefixed) Move(ctx context.Context, src, dst string) error {
	return p.store.Move(ctx, p.key(src), p.key(dst))
}

func (p *Prefixed) Copy(ctx context.Context, src, dst string, recursive bool) error {
	return p.store.Copy(ctx, p.key(src), p.key(dst), recursive)
}

func (p *Prefixed) Close() error {
	return nil
}
