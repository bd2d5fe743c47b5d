// Package badger provides a persistent dead property store on BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/store/props"
)

// BadgerPropertyStore implements props.Store using BadgerDB for persistence.
//
// It is suitable for deployments where dead properties must survive a
// restart. Each resource's properties live under a common key prefix (see
// keys.go), so lookups are prefix scans and subtree operations are range
// scans.
//
// Thread Safety:
// BadgerDB transactions are serializable. Every operation runs in a single
// transaction, so concurrent patches of the same resource never interleave.
type BadgerPropertyStore struct {
	db *badger.DB
}

var _ props.Store = (*BadgerPropertyStore)(nil)

// BadgerPropertyStoreConfig contains configuration for creating a BadgerDB
// property store.
type BadgerPropertyStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching the disk (tests only)
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// NewBadgerPropertyStore opens (or creates) a property database.
//
// Parameters:
//   - ctx: Context for cancellation
//   - config: Database location and cache sizes
//
// Returns:
//   - *BadgerPropertyStore: Store ready for use
//   - error: If the database cannot be opened or the context is cancelled
func NewBadgerPropertyStore(ctx context.Context, config BadgerPropertyStoreConfig) (*BadgerPropertyStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(config.DBPath)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	// Property values are small XML fragments
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &BadgerPropertyStore{db: db}, nil
}

func encodeProperty(prop dav.Property) ([]byte, error) {
	data, err := json.Marshal(prop)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal property %s: %w", prop.Name, err)
	}
	return data, nil
}

func decodeProperty(data []byte) (dav.Property, error) {
	var prop dav.Property
	if err := json.Unmarshal(data, &prop); err != nil {
		return dav.Property{}, fmt.Errorf("failed to unmarshal property: %w", err)
	}
	return prop, nil
}

// scan calls fn for every key with the given prefix.
func scan(txn *badger.Txn, prefix []byte, fn func(item *badger.Item) error) error {
	iterOpts := badger.DefaultIteratorOptions
	iterOpts.Prefix = prefix
	it := txn.NewIterator(iterOpts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := fn(it.Item()); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the dead properties of path.
func (s *BadgerPropertyStore) Get(ctx context.Context, path string) (map[dav.PropName]dav.Property, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make(map[dav.PropName]dav.Property)
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, keyResource(path), func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				prop, err := decodeProperty(val)
				if err != nil {
					return err
				}
				result[prop.Name] = prop
				return nil
			})
		})
	})
	if err != nil {
		return nil, dav.WrapError(dav.ErrInternal, "failed to read properties", path, err)
	}
	return result, nil
}

// maxUpdateAttempts bounds the retries of a transaction that lost an
// optimistic conflict.
const maxUpdateAttempts = 3

// update runs fn in a read-write transaction, retrying on badger.ErrConflict.
func (s *BadgerPropertyStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// Patch applies every instruction in one transaction.
func (s *BadgerPropertyStore) Patch(ctx context.Context, path string, patches []dav.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		for _, patch := range patches {
			key := keyProperty(path, patch.Property.Name)
			if patch.Remove {
				if err := txn.Delete(key); err != nil {
					return &props.PropertyError{Name: patch.Property.Name, Err: err}
				}
				continue
			}

			data, err := encodeProperty(patch.Property)
			if err != nil {
				return &props.PropertyError{Name: patch.Property.Name, Err: err}
			}
			if err := txn.Set(key, data); err != nil {
				return &props.PropertyError{Name: patch.Property.Name, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return dav.WrapError(dav.ErrInternal, "failed to store properties", path, err)
	}
	return nil
}

// collectKeys returns copies of every key at or below path.
func collectKeys(txn *badger.Txn, path string) ([][]byte, error) {
	var keys [][]byte
	collect := func(item *badger.Item) error {
		keys = append(keys, item.KeyCopy(nil))
		return nil
	}

	if err := scan(txn, keyResource(path), collect); err != nil {
		return nil, err
	}
	if err := scan(txn, keyDescendants(path), collect); err != nil {
		return nil, err
	}
	return keys, nil
}

func deleteSubtree(txn *badger.Txn, path string) error {
	keys, err := collectKeys(txn, path)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Delete drops path and its descendants.
func (s *BadgerPropertyStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		return deleteSubtree(txn, path)
	})
	if err != nil {
		return dav.WrapError(dav.ErrInternal, "failed to delete properties", path, err)
	}
	return nil
}

// entry is a property read out of a transaction.
type entry struct {
	key  []byte
	path string
	prop dav.Property
}

// readEntries loads the properties at src and, if recursive, below it.
func readEntries(txn *badger.Txn, src string, recursive bool) ([]entry, error) {
	var entries []entry
	read := func(item *badger.Item) error {
		key := item.KeyCopy(nil)
		p, _, ok := parseKey(key)
		if !ok {
			return nil
		}
		return item.Value(func(val []byte) error {
			prop, err := decodeProperty(val)
			if err != nil {
				return err
			}
			entries = append(entries, entry{key: key, path: p, prop: prop})
			return nil
		})
	}

	if err := scan(txn, keyResource(src), read); err != nil {
		return nil, err
	}
	if recursive {
		if err := scan(txn, keyDescendants(src), read); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// transfer rewrites the properties of src under dst, optionally deleting the
// originals.
func (s *BadgerPropertyStore) transfer(ctx context.Context, src, dst string, recursive, removeSource bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if src == dst {
		return nil
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		entries, err := readEntries(txn, src, recursive)
		if err != nil {
			return err
		}

		if removeSource {
			for _, e := range entries {
				if err := txn.Delete(e.key); err != nil {
					return err
				}
			}
		}

		if err := deleteSubtree(txn, dst); err != nil {
			return err
		}

		for _, e := range entries {
			data, err := encodeProperty(e.prop)
			if err != nil {
				return err
			}
			if err := txn.Set(keyProperty(dav.Rebase(e.path, src, dst), e.prop.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Move re-keys src and its descendants under dst.
func (s *BadgerPropertyStore) Move(ctx context.Context, src, dst string) error {
	if err := s.transfer(ctx, src, dst, true, true); err != nil {
		return dav.WrapError(dav.ErrInternal, "failed to move properties", src, err)
	}
	return nil
}

// Copy duplicates src (and its descendants when recursive) under dst.
func (s *BadgerPropertyStore) Copy(ctx context.Context, src, dst string, recursive bool) error {
	if err := s.transfer(ctx, src, dst, recursive, false); err != nil {
		return dav.WrapError(dav.ErrInternal, "failed to copy properties", src, err)
	}
	return nil
}

// Close closes the database.
func (s *BadgerPropertyStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
