package testing

import (
	"strings"
	"testing"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes lookup and listing tests.
func (suite *TreeTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Resolve_Root", suite.testResolveRoot)
	t.Run("Resolve_NotFound", suite.testResolveNotFound)
	t.Run("Resolve_Escape", suite.testResolveEscape)
	t.Run("Resolve_BelowFile", suite.testResolveBelowFile)
	t.Run("List_Sorted", suite.testListSorted)
	t.Run("List_NotCollection", suite.testListNotCollection)
	t.Run("Read_Collection", suite.testReadCollection)
	t.Run("CreateCollection_Exists", suite.testCreateCollectionExists)
	t.Run("CreateCollection_MissingParent", suite.testCreateCollectionMissingParent)
	t.Run("ContentType_Extension", suite.testContentTypeExtension)
	t.Run("ContentType_Sniffed", suite.testContentTypeSniffed)
}

// ============================================================================
// Resolve Tests
// ============================================================================

func (suite *TreeTestSuite) testResolveRoot(t *testing.T) {
	tree := suite.NewTree(t)

	res, err := tree.Resolve(testContext(), "/")
	require.NoError(t, err)
	assert.True(t, res.IsCollection)
	assert.Equal(t, "/", res.Path)
}

func (suite *TreeTestSuite) testResolveNotFound(t *testing.T) {
	tree := suite.NewTree(t)

	_, err := tree.Resolve(testContext(), "/missing.txt")
	AssertCode(t, dav.ErrNotFound, err)
}

func (suite *TreeTestSuite) testResolveEscape(t *testing.T) {
	tree := suite.NewTree(t)

	_, err := tree.Resolve(testContext(), "/../etc/passwd")
	AssertCode(t, dav.ErrForbidden, err)
}

func (suite *TreeTestSuite) testResolveBelowFile(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/a.txt", []byte("a"))

	_, err := tree.Resolve(testContext(), "/a.txt/child")
	AssertCode(t, dav.ErrNotFound, err)

	_, _, err = tree.Read(testContext(), "/a.txt/child")
	AssertCode(t, dav.ErrNotFound, err)

	_, err = tree.Delete(testContext(), "/a.txt/child", content.DeleteOptions{})
	AssertCode(t, dav.ErrNotFound, err)

	// Creating below a file is still a conflict on the parent
	_, err = tree.CreateCollection(testContext(), "/a.txt/child")
	AssertCode(t, dav.ErrConflict, err)

	_, _, err = tree.Write(testContext(), "/a.txt/x/y", strings.NewReader("y"), true)
	AssertCode(t, dav.ErrConflict, err)
}

// ============================================================================
// List Tests
// ============================================================================

func (suite *TreeTestSuite) testListSorted(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/b.txt", []byte("b"))
	mustWrite(t, tree, "/a.txt", []byte("a"))
	mustMkcol(t, tree, "/c")

	children, err := tree.List(testContext(), "/")
	require.NoError(t, err)
	require.Len(t, children, 3)

	assert.Equal(t, "/a.txt", children[0].Path)
	assert.Equal(t, "/b.txt", children[1].Path)
	assert.Equal(t, "/c", children[2].Path)
	assert.True(t, children[2].IsCollection)
	assert.Equal(t, int64(1), children[0].ContentLength)
}

func (suite *TreeTestSuite) testListNotCollection(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/file.txt", []byte("x"))

	_, err := tree.List(testContext(), "/file.txt")
	AssertCode(t, dav.ErrConflict, err)
}

func (suite *TreeTestSuite) testReadCollection(t *testing.T) {
	tree := suite.NewTree(t)
	mustMkcol(t, tree, "/dir")

	_, _, err := tree.Read(testContext(), "/dir")
	AssertCode(t, dav.ErrConflict, err)
}

// ============================================================================
// CreateCollection Tests
// ============================================================================

func (suite *TreeTestSuite) testCreateCollectionExists(t *testing.T) {
	tree := suite.NewTree(t)
	mustMkcol(t, tree, "/dir")

	_, err := tree.CreateCollection(testContext(), "/dir")
	AssertCode(t, dav.ErrMethodNotAllowed, err)
}

func (suite *TreeTestSuite) testCreateCollectionMissingParent(t *testing.T) {
	tree := suite.NewTree(t)

	_, err := tree.CreateCollection(testContext(), "/a/b")
	AssertCode(t, dav.ErrConflict, err)
}

// ============================================================================
// ContentType Tests
// ============================================================================

func (suite *TreeTestSuite) testContentTypeExtension(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/notes.txt", []byte("plain"))

	ctype, err := tree.ContentType(testContext(), "/notes.txt")
	require.NoError(t, err)
	assert.Contains(t, ctype, "text/plain")
}

func (suite *TreeTestSuite) testContentTypeSniffed(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/blob", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"))

	ctype, err := tree.ContentType(testContext(), "/blob")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ctype)
}
