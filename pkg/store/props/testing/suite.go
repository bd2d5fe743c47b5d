// Package testing provides a conformance suite for props.Store
// implementations.
package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/store/props"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the props.Store contract and is shared by every
// backend (memory, badger, prefixed views).
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test. The suite closes
	// the store when the test ends.
	NewStore func(t *testing.T) props.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Patch", suite.RunPatchTests)
	t.Run("Tree", suite.RunTreeTests)
}

func (suite *StoreTestSuite) newStore(t *testing.T) props.Store {
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testContext() context.Context {
	return context.Background()
}

func name(local string) dav.PropName {
	return dav.PropName{Space: "urn:example:", Local: local}
}

func set(local, value string) dav.Patch {
	return dav.Patch{Property: dav.Property{Name: name(local), InnerXML: []byte(value)}}
}

func remove(local string) dav.Patch {
	return dav.Patch{Remove: true, Property: dav.Property{Name: name(local)}}
}

func mustPatch(t *testing.T, store props.Store, p string, patches ...dav.Patch) {
	t.Helper()
	require.NoError(t, store.Patch(testContext(), p, patches))
}

// values returns the stored values of path keyed by local name.
func values(t *testing.T, store props.Store, p string) map[string]string {
	t.Helper()
	got, err := store.Get(testContext(), p)
	require.NoError(t, err)

	result := make(map[string]string, len(got))
	for n, prop := range got {
		assert.Equal(t, n, prop.Name)
		result[n.Local] = string(prop.InnerXML)
	}
	return result
}

// ============================================================================
// Patch Tests
// ============================================================================

// RunPatchTests executes Get and Patch tests.
func (suite *StoreTestSuite) RunPatchTests(t *testing.T) {
	t.Run("Get_Empty", suite.testGetEmpty)
	t.Run("Patch_SetAndGet", suite.testPatchSetAndGet)
	t.Run("Patch_Remove", suite.testPatchRemove)
	t.Run("Patch_LastWins", suite.testPatchLastWins)
	t.Run("Patch_RemoveAbsent", suite.testPatchRemoveAbsent)
	t.Run("Patch_KeepsLang", suite.testPatchKeepsLang)
}

func (suite *StoreTestSuite) testGetEmpty(t *testing.T) {
	store := suite.newStore(t)

	got, err := store.Get(testContext(), "/nothing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func (suite *StoreTestSuite) testPatchSetAndGet(t *testing.T) {
	store := suite.newStore(t)
	mustPatch(t, store, "/file.txt", set("author", "Ada"), set("rating", "5"))

	assert.Equal(t, map[string]string{"author": "Ada", "rating": "5"}, values(t, store, "/file.txt"))
	assert.Empty(t, values(t, store, "/file.txt/child"))
	assert.Empty(t, values(t, store, "/file"))
}

func (suite *StoreTestSuite) testPatchRemove(t *testing.T) {
	store := suite.newStore(t)
	mustPatch(t, store, "/file.txt", set("author", "Ada"), set("rating", "5"))
	mustPatch(t, store, "/file.txt", remove("rating"))

	assert.Equal(t, map[string]string{"author": "Ada"}, values(t, store, "/file.txt"))
}

func (suite *StoreTestSuite) testPatchLastWins(t *testing.T) {
	store := suite.newStore(t)
	mustPatch(t, store, "/file.txt", set("author", "Ada"), remove("author"), set("author", "Grace"))

	assert.Equal(t, map[string]string{"author": "Grace"}, values(t, store, "/file.txt"))

	mustPatch(t, store, "/file.txt", set("title", "x"), remove("title"))
	assert.Equal(t, map[string]string{"author": "Grace"}, values(t, store, "/file.txt"))
}

func (suite *StoreTestSuite) testPatchRemoveAbsent(t *testing.T) {
	store := suite.newStore(t)

	mustPatch(t, store, "/file.txt", remove("missing"))
	assert.Empty(t, values(t, store, "/file.txt"))
}

func (suite *StoreTestSuite) testPatchKeepsLang(t *testing.T) {
	store := suite.newStore(t)
	patch := set("title", "Bonjour")
	patch.Property.Lang = "fr"
	mustPatch(t, store, "/file.txt", patch)

	got, err := store.Get(testContext(), "/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "fr", got[name("title")].Lang)
}

// ============================================================================
// Tree Tests
// ============================================================================

// RunTreeTests executes Delete, Move and Copy tests.
func (suite *StoreTestSuite) RunTreeTests(t *testing.T) {
	t.Run("Delete_Subtree", suite.testDeleteSubtree)
	t.Run("Delete_SiblingPrefix", suite.testDeleteSiblingPrefix)
	t.Run("Move_Subtree", suite.testMoveSubtree)
	t.Run("Move_ReplacesDestination", suite.testMoveReplacesDestination)
	t.Run("Copy_Recursive", suite.testCopyRecursive)
	t.Run("Copy_Shallow", suite.testCopyShallow)
}

func seed(t *testing.T, store props.Store) {
	t.Helper()
	mustPatch(t, store, "/docs", set("kind", "folder"))
	mustPatch(t, store, "/docs/a.txt", set("author", "Ada"))
	mustPatch(t, store, "/docs/sub/b.txt", set("author", "Bob"))
	mustPatch(t, store, "/docs2", set("kind", "other"))
}

func (suite *StoreTestSuite) testDeleteSubtree(t *testing.T) {
	store := suite.newStore(t)
	seed(t, store)

	require.NoError(t, store.Delete(testContext(), "/docs"))

	assert.Empty(t, values(t, store, "/docs"))
	assert.Empty(t, values(t, store, "/docs/a.txt"))
	assert.Empty(t, values(t, store, "/docs/sub/b.txt"))
}

func (suite *StoreTestSuite) testDeleteSiblingPrefix(t *testing.T) {
	store := suite.newStore(t)
	seed(t, store)

	require.NoError(t, store.Delete(testContext(), "/docs"))
	assert.Equal(t, map[string]string{"kind": "other"}, values(t, store, "/docs2"))
}

func (suite *StoreTestSuite) testMoveSubtree(t *testing.T) {
	store := suite.newStore(t)
	seed(t, store)

	require.NoError(t, store.Move(testContext(), "/docs", "/archive"))

	assert.Empty(t, values(t, store, "/docs"))
	assert.Empty(t, values(t, store, "/docs/a.txt"))
	assert.Equal(t, map[string]string{"kind": "folder"}, values(t, store, "/archive"))
	assert.Equal(t, map[string]string{"author": "Bob"}, values(t, store, "/archive/sub/b.txt"))
	assert.Equal(t, map[string]string{"kind": "other"}, values(t, store, "/docs2"))
}

func (suite *StoreTestSuite) testMoveReplacesDestination(t *testing.T) {
	store := suite.newStore(t)
	mustPatch(t, store, "/a.txt", set("author", "Ada"))
	mustPatch(t, store, "/b", set("kind", "folder"))
	mustPatch(t, store, "/b/inner.txt", set("author", "Old"))

	require.NoError(t, store.Move(testContext(), "/a.txt", "/b"))

	assert.Equal(t, map[string]string{"author": "Ada"}, values(t, store, "/b"))
	assert.Empty(t, values(t, store, "/b/inner.txt"))
	assert.Empty(t, values(t, store, "/a.txt"))
}

func (suite *StoreTestSuite) testCopyRecursive(t *testing.T) {
	store := suite.newStore(t)
	seed(t, store)

	require.NoError(t, store.Copy(testContext(), "/docs", "/copy", true))

	assert.Equal(t, map[string]string{"kind": "folder"}, values(t, store, "/copy"))
	assert.Equal(t, map[string]string{"author": "Bob"}, values(t, store, "/copy/sub/b.txt"))
	assert.Equal(t, map[string]string{"author": "Bob"}, values(t, store, "/docs/sub/b.txt"))

	// Copies are independent of the source
	mustPatch(t, store, "/copy/a.txt", set("author", "Changed"))
	assert.Equal(t, map[string]string{"author": "Ada"}, values(t, store, "/docs/a.txt"))
}

func (suite *StoreTestSuite) testCopyShallow(t *testing.T) {
	store := suite.newStore(t)
	seed(t, store)

	require.NoError(t, store.Copy(testContext(), "/docs", "/shallow", false))

	assert.Equal(t, map[string]string{"kind": "folder"}, values(t, store, "/shallow"))
	assert.Empty(t, values(t, store, "/shallow/a.txt"))
}
