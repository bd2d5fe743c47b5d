package testing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWriteTests executes Write tests.
func (suite *TreeTestSuite) RunWriteTests(t *testing.T) {
	t.Run("Write_Created", suite.testWriteCreated)
	t.Run("Write_Overwrite", suite.testWriteOverwrite)
	t.Run("Write_NoOverwrite", suite.testWriteNoOverwrite)
	t.Run("Write_MissingParent", suite.testWriteMissingParent)
	t.Run("Write_Collection", suite.testWriteCollection)
	t.Run("Write_Empty", suite.testWriteEmpty)
	t.Run("Write_Cancelled", suite.testWriteCancelled)
	t.Run("Write_ETagChanges", suite.testWriteETagChanges)
}

func (suite *TreeTestSuite) testWriteCreated(t *testing.T) {
	tree := suite.NewTree(t)

	res, created, err := tree.Write(testContext(), "/hello.txt", strings.NewReader("Hello, World!"), true)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(13), res.ContentLength)
	assert.Equal(t, []byte("Hello, World!"), mustRead(t, tree, "/hello.txt"))
}

func (suite *TreeTestSuite) testWriteOverwrite(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/file.txt", []byte("first version"))

	res, created, err := tree.Write(testContext(), "/file.txt", strings.NewReader("second"), true)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(6), res.ContentLength)
	assert.Equal(t, []byte("second"), mustRead(t, tree, "/file.txt"))
}

func (suite *TreeTestSuite) testWriteNoOverwrite(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/file.txt", []byte("keep"))

	_, _, err := tree.Write(testContext(), "/file.txt", strings.NewReader("lose"), false)
	AssertCode(t, dav.ErrPreconditionFailed, err)
	assert.Equal(t, []byte("keep"), mustRead(t, tree, "/file.txt"))
}

func (suite *TreeTestSuite) testWriteMissingParent(t *testing.T) {
	tree := suite.NewTree(t)

	_, _, err := tree.Write(testContext(), "/missing/file.txt", strings.NewReader("x"), true)
	AssertCode(t, dav.ErrConflict, err)
}

func (suite *TreeTestSuite) testWriteCollection(t *testing.T) {
	tree := suite.NewTree(t)
	mustMkcol(t, tree, "/dir")

	_, _, err := tree.Write(testContext(), "/dir", strings.NewReader("x"), true)
	AssertCode(t, dav.ErrMethodNotAllowed, err)
}

func (suite *TreeTestSuite) testWriteEmpty(t *testing.T) {
	tree := suite.NewTree(t)

	res, _, err := tree.Write(testContext(), "/empty", bytes.NewReader(nil), true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.ContentLength)
	assert.Empty(t, mustRead(t, tree, "/empty"))
}

func (suite *TreeTestSuite) testWriteCancelled(t *testing.T) {
	tree := suite.NewTree(t)
	mustWrite(t, tree, "/file.txt", []byte("original"))

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	_, _, err := tree.Write(ctx, "/file.txt", strings.NewReader("replacement"), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []byte("original"), mustRead(t, tree, "/file.txt"))

	// No temporary upload files are left behind
	children, err := tree.List(testContext(), "/")
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func (suite *TreeTestSuite) testWriteETagChanges(t *testing.T) {
	tree := suite.NewTree(t)
	first := mustWrite(t, tree, "/file.txt", []byte("one"))
	second := mustWrite(t, tree, "/file.txt", []byte("three"))

	assert.NotEqual(t, first.ETag(), second.ETag())
}
