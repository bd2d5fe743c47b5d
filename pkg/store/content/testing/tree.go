package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTreeTests executes Delete, Move, Copy and Walk tests.
func (suite *TreeTestSuite) RunTreeTests(t *testing.T) {
	t.Run("Delete_Recursive", suite.testDeleteRecursive)
	t.Run("Delete_Root", suite.testDeleteRoot)
	t.Run("Delete_NotFound", suite.testDeleteNotFound)
	t.Run("Delete_KeepHook", suite.testDeleteKeepHook)
	t.Run("Delete_Cancelled", suite.testDeleteCancelled)
	t.Run("Move_Subtree", suite.testMoveSubtree)
	t.Run("Move_NoOverwrite", suite.testMoveNoOverwrite)
	t.Run("Move_Overwrite", suite.testMoveOverwrite)
	t.Run("Move_IntoItself", suite.testMoveIntoItself)
	t.Run("Move_MissingParent", suite.testMoveMissingParent)
	t.Run("Copy_DepthInfinity", suite.testCopyDepthInfinity)
	t.Run("Copy_DepthZero", suite.testCopyDepthZero)
	t.Run("Copy_PreservesETag", suite.testCopyPreservesETag)
	t.Run("Copy_Cancelled", suite.testCopyCancelled)
	t.Run("Walk_Depths", suite.testWalkDepths)
	t.Run("Walk_Cancelled", suite.testWalkCancelled)
}

// buildSample creates /docs/{a.txt, sub/b.txt}.
func buildSample(t *testing.T, tree content.Tree) {
	t.Helper()
	mustMkcol(t, tree, "/docs")
	mustMkcol(t, tree, "/docs/sub")
	mustWrite(t, tree, "/docs/a.txt", []byte("a"))
	mustWrite(t, tree, "/docs/sub/b.txt", []byte("b"))
}

// ============================================================================
// Delete Tests
// ============================================================================

func (suite *TreeTestSuite) testDeleteRecursive(t *testing.T) {
	tree := suite.NewTree(t)
	buildSample(t, tree)

	failures, err := tree.Delete(testContext(), "/docs", content.DeleteOptions{})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.False(t, exists(tree, "/docs"))
}

func (suite *TreeTestSuite) testDeleteRoot(t *testing.T) {
	tree := suite.NewTree(t)

	_, err := tree.Delete(testContext(), "/", content.DeleteOptions{})
	AssertCode(t, dav.ErrForbidden, err)
}

func (suite *TreeTestSuite) testDeleteNotFound(t *testing.T) {
	tree := suite.NewTree(t)

	_, err := tree.Delete(testContext(), "/nothing", content.DeleteOptions{})
	AssertCode(t, dav.ErrNotFound, err)
}

func (suite *TreeTestSuite) testDeleteKeepHook(t *testing.T) {
	tree := suite.NewTree(t)
	buildSample(t, tree)

	opts := content.DeleteOptions{
		Keep: func(p string) error {
			if p == "/docs/sub/b.txt" {
				return dav.NewLockedError(p)
			}
			return nil
		},
	}

	var removed []string
	opts.Removed = func(p string) { removed = append(removed, p) }

	failures, err := tree.Delete(testContext(), "/docs", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/a.txt"}, removed)
	require.Len(t, failures, 1)
	assert.Equal(t, "/docs/sub/b.txt", failures[0].Path)
	assert.True(t, dav.IsLocked(failures[0].Err))

	// The kept entry and its ancestors survive, siblings are gone
	assert.True(t, exists(tree, "/docs/sub/b.txt"))
	assert.True(t, exists(tree, "/docs/sub"))
	assert.True(t, exists(tree, "/docs"))
	assert.False(t, exists(tree, "/docs/a.txt"))
}

// testDeleteCancelled checks that entries removed before cancellation stay
// removed and the rest is left untouched.
func (suite *TreeTestSuite) testDeleteCancelled(t *testing.T) {
	tree := suite.NewTree(t)
	buildSample(t, tree)

	ctx, cancel := context.WithCancel(testContext())
	defer cancel()

	var removed []string
	opts := content.DeleteOptions{
		Removed: func(p string) {
			removed = append(removed, p)
			cancel()
		},
	}

	_, err := tree.Delete(ctx, "/docs", opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, []string{"/docs/a.txt"}, removed)
	assert.False(t, exists(tree, "/docs/a.txt"))
	assert.True(t, exists(tree, "/docs/sub/b.txt"))
	assert.True(t, exists(tree, "/docs"))
}

// ============================================================================
// Move Tests
// ============================================================================

func (suite *TreeTestSuite) testMoveSubtree(t *testing.T) {
	tree := suite.NewTree(t)
	buildSample(t, tree)

	created, err := tree.Move(testContext(), "/docs", "/archive", false)
	require.NoError(t, err)
	assert.True(t, created)

	assert.False(t, exists(tree, "/docs"))
	assert.Equal(t, []byte("b"), mustRead(t, tree, "/archive/sub/b.txt"))
}

func (suite *TreeTestSuite) testMoveNoOverwrite(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/a.txt", []byte("a"))
	mustWrite(t, tree, "/b.txt", []byte("b"))

	_, err := tree.Move(testContext(), "/a.txt", "/b.txt", false)
	AssertCode(t, dav.ErrPreconditionFailed, err)
	assert.True(t, exists(tree, "/a.txt"))
	assert.Equal(t, []byte("b"), mustRead(t, tree, "/b.txt"))
}

func (suite *TreeTestSuite) testMoveOverwrite(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/a.txt", []byte("a"))
	buildSample(t, tree)

	created, err := tree.Move(testContext(), "/a.txt", "/docs", true)
	require.NoError(t, err)
	assert.False(t, created)

	res, err := tree.Resolve(testContext(), "/docs")
	require.NoError(t, err)
	assert.False(t, res.IsCollection)
	assert.Equal(t, []byte("a"), mustRead(t, tree, "/docs"))
}

func (suite *TreeTestSuite) testMoveIntoItself(t *testing.T) {
	tree := suite.NewTree(t)
	buildSample(t, tree)

	_, err := tree.Move(testContext(), "/docs", "/docs/sub/docs", false)
	AssertCode(t, dav.ErrForbidden, err)

	_, err = tree.Move(testContext(), "/docs", "/docs", true)
	AssertCode(t, dav.ErrForbidden, err)
}

func (suite *TreeTestSuite) testMoveMissingParent(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/a.txt", []byte("a"))

	_, err := tree.Move(testContext(), "/a.txt", "/nowhere/a.txt", false)
	AssertCode(t, dav.ErrConflict, err)
}

// ============================================================================
// Copy Tests
// ============================================================================

func (suite *TreeTestSuite) testCopyDepthInfinity(t *testing.T) {
	tree := suite.NewTree(t)
	buildSample(t, tree)

	created, failures, err := tree.Copy(testContext(), "/docs", "/copy", false, dav.DepthInfinity)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, failures)

	assert.Equal(t, []byte("a"), mustRead(t, tree, "/copy/a.txt"))
	assert.Equal(t, []byte("b"), mustRead(t, tree, "/copy/sub/b.txt"))
	assert.True(t, exists(tree, "/docs/sub/b.txt"))
}

func (suite *TreeTestSuite) testCopyDepthZero(t *testing.T) {
	tree := suite.NewTree(t)
	buildSample(t, tree)

	_, _, err := tree.Copy(testContext(), "/docs", "/shallow", false, dav.DepthZero)
	require.NoError(t, err)

	children, err := tree.List(testContext(), "/shallow")
	require.NoError(t, err)
	assert.Empty(t, children)
}

func (suite *TreeTestSuite) testCopyPreservesETag(t *testing.T) {
	tree := suite.NewTree(t)
	src := mustWrite(t, tree, "/a.txt", []byte("content"))

	_, _, err := tree.Copy(testContext(), "/a.txt", "/b.txt", false, dav.DepthInfinity)
	require.NoError(t, err)

	dst, err := tree.Resolve(testContext(), "/b.txt")
	require.NoError(t, err)
	assert.Equal(t, src.ContentLength, dst.ContentLength)
	assert.Equal(t, src.LastModified.Unix(), dst.LastModified.Unix())
}

// testCopyCancelled cancels after the first child is copied: that child is
// kept at the destination, later siblings are never attempted.
func (suite *TreeTestSuite) testCopyCancelled(t *testing.T) {
	tree := suite.NewTree(t)
	buildSample(t, tree)

	// Copy, the source collection and its first child each check once
	ctx := cancelAfter(testContext(), 3)

	_, _, err := tree.Copy(ctx, "/docs", "/copy", false, dav.DepthInfinity)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, []byte("a"), mustRead(t, tree, "/copy/a.txt"))
	assert.False(t, exists(tree, "/copy/sub"))
	assert.True(t, exists(tree, "/docs/sub/b.txt"))
}

// ============================================================================
// Walk Tests
// ============================================================================

func (suite *TreeTestSuite) testWalkDepths(t *testing.T) {
	tree := suite.NewTree(t)
	buildSample(t, tree)

	collect := func(depth dav.Depth) map[string]int {
		seen := make(map[string]int)
		err := tree.Walk(testContext(), "/docs", depth, func(res *dav.Resource, level int) error {
			seen[res.Path] = level
			return nil
		})
		require.NoError(t, err)
		return seen
	}

	assert.Equal(t, map[string]int{"/docs": 0}, collect(dav.DepthZero))
	assert.Equal(t, map[string]int{"/docs": 0, "/docs/a.txt": 1, "/docs/sub": 1}, collect(dav.DepthOne))
	assert.Equal(t, map[string]int{
		"/docs":           0,
		"/docs/a.txt":     1,
		"/docs/sub":       1,
		"/docs/sub/b.txt": 2,
	}, collect(dav.DepthInfinity))
}

func (suite *TreeTestSuite) testWalkCancelled(t *testing.T) {
	tree := suite.NewTree(t)
	buildSample(t, tree)

	ctx, cancel := context.WithCancel(testContext())
	defer cancel()

	var seen []string
	err := tree.Walk(ctx, "/docs", dav.DepthInfinity, func(res *dav.Resource, level int) error {
		seen = append(seen, res.Path)
		cancel()
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"/docs"}, seen)
}
