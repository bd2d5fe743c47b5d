// Package memory provides a volatile resource tree.
//
// The tree is an fs.Tree backed by an afero.MemMapFs. It's designed for:
//   - Testing and development
//   - Scratch mounts whose content does not need to survive a restart
package memory

import (
	"context"

	"github.com/marmos91/dittodav/pkg/store/content/fs"
	"github.com/spf13/afero"
)

// NewMemoryTree creates an empty in-memory resource tree.
//
// Parameters:
//   - ctx: Context for cancellation (checked before initialization)
//
// Returns:
//   - *fs.Tree: Tree holding only the root collection
//   - error: Only returns error if context is cancelled
func NewMemoryTree(ctx context.Context) (*fs.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mem := afero.NewMemMapFs()
	if err := mem.MkdirAll("/", 0755); err != nil {
		return nil, err
	}
	return fs.New(mem), nil
}
