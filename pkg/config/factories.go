package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dittodav/pkg/store/content"
	contentfs "github.com/marmos91/dittodav/pkg/store/content/fs"
	contentmemory "github.com/marmos91/dittodav/pkg/store/content/memory"
)

// CreateTree creates the resource tree of one folder.
//
// Supported content types:
//   - "filesystem": The folder's directory on disk, created if missing
//   - "memory": An empty in-memory tree
func CreateTree(ctx context.Context, cfg *Config, folder FolderConfig) (content.Tree, error) {
	switch folder.Content {
	case "filesystem":
		root := cfg.ResolvePath(folder.Path)
		tree, err := contentfs.NewFSTree(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem tree at %s: %w", root, err)
		}
		return tree, nil
	case "memory":
		tree, err := contentmemory.NewMemoryTree(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory tree: %w", err)
		}
		return tree, nil
	default:
		return nil, fmt.Errorf("unknown content type: %q", folder.Content)
	}
}
