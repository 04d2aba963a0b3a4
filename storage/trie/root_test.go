package trie

import (
	"testing"

	"github.com/stretchr/testify/require"

	"atomicescrow/storage"
)

func TestRootOfEmptyPrefix(t *testing.T) {
	db := storage.NewMemDB()
	require.NoError(t, db.Put([]byte("other:aa"), []byte("x")))

	root, err := Root(db, []byte("acct:"))
	require.NoError(t, err)
	require.Equal(t, EmptyRoot, root)
}

func TestRootIgnoresPrefixAndTracksContent(t *testing.T) {
	a := storage.NewMemDB()
	b := storage.NewMemDB()
	require.NoError(t, a.Put([]byte("p:k1"), []byte("v1")))
	require.NoError(t, a.Put([]byte("p:k2"), []byte("v2")))
	require.NoError(t, b.Put([]byte("q:k2"), []byte("v2")))
	require.NoError(t, b.Put([]byte("q:k1"), []byte("v1")))

	ra, err := Root(a, []byte("p:"))
	require.NoError(t, err)
	rb, err := Root(b, []byte("q:"))
	require.NoError(t, err)
	require.Equal(t, ra, rb)
	require.NotEqual(t, EmptyRoot, ra)

	require.NoError(t, b.Put([]byte("q:k2"), []byte("v3")))
	rc, err := Root(b, []byte("q:"))
	require.NoError(t, err)
	require.NotEqual(t, ra, rc)
}

func TestRootPersistsAcrossLevelDBReopen(t *testing.T) {
	dir := t.TempDir()
	db1, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, db1.Put([]byte("p:k1"), []byte("value")))
	before, err := Root(db1, []byte("p:"))
	require.NoError(t, err)
	db1.Close()

	db2, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()
	after, err := Root(db2, []byte("p:"))
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRootRejectsMixedKeyWidths(t *testing.T) {
	db := storage.NewMemDB()
	require.NoError(t, db.Put([]byte("p:a"), []byte("1")))
	require.NoError(t, db.Put([]byte("p:ab"), []byte("2")))

	_, err := Root(db, []byte("p:"))
	require.Error(t, err)
}
