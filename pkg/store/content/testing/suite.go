// Package testing provides a conformance suite for content.Tree
// implementations.
package testing

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/stretchr/testify/require"
)

// TreeTestSuite tests the content.Tree contract, not implementation details,
// so it can be reused across implementations (filesystem, memory).
//
// Usage:
//
//	func TestMyTree(t *testing.T) {
//	    suite := &testing.TreeTestSuite{
//	        NewTree: func(t *testing.T) content.Tree {
//	            return mytree.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type TreeTestSuite struct {
	// NewTree creates a fresh, empty tree for each test.
	NewTree func(t *testing.T) content.Tree
}

// Run executes all tests in the suite.
func (suite *TreeTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("WriteOperations", suite.RunWriteTests)
	t.Run("TreeOperations", suite.RunTreeTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

// countdownContext reports cancellation once Err has been called more than
// a fixed number of times, so a test can stop a long operation part-way.
type countdownContext struct {
	context.Context
	remaining atomic.Int64
}

func (c *countdownContext) Err() error {
	if c.remaining.Add(-1) < 0 {
		return context.Canceled
	}
	return c.Context.Err()
}

// cancelAfter returns a context whose first n Err calls succeed.
func cancelAfter(parent context.Context, n int64) context.Context {
	c := &countdownContext{Context: parent}
	c.remaining.Store(n)
	return c
}

// mustWrite stores data at p, failing the test on error.
func mustWrite(t *testing.T, tree content.Tree, p string, data []byte) *dav.Resource {
	t.Helper()
	res, _, err := tree.Write(testContext(), p, bytes.NewReader(data), true)
	require.NoError(t, err, "failed to write %s", p)
	return res
}

// mustMkcol creates a collection at p, failing the test on error.
func mustMkcol(t *testing.T, tree content.Tree, p string) {
	t.Helper()
	_, err := tree.CreateCollection(testContext(), p)
	require.NoError(t, err, "failed to create collection %s", p)
}

// mustRead returns the full content at p.
func mustRead(t *testing.T, tree content.Tree, p string) []byte {
	t.Helper()
	r, _, err := tree.Read(testContext(), p)
	require.NoError(t, err, "failed to open %s", p)
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

// exists reports whether p resolves.
func exists(tree content.Tree, p string) bool {
	_, err := tree.Resolve(testContext(), p)
	return err == nil
}

// AssertCode fails the test unless err carries the expected dav error code.
func AssertCode(t *testing.T, expected dav.ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, expected, dav.CodeOf(err), "unexpected error: %v", err)
}
