package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]ArtifactStore {
	t.Helper()
	fsStore, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return map[string]ArtifactStore{
		"fs":  fsStore,
		"mem": NewMemStore(),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			hash, err := store.Put(ctx, &Artifact{Path: "guide/index.html", Data: []byte("<h1>hi</h1>")})
			require.NoError(t, err)
			require.NotEmpty(t, hash)

			art, err := store.Get(ctx, "guide/index.html")
			require.NoError(t, err)
			assert.Equal(t, []byte("<h1>hi</h1>"), art.Data)
			assert.Equal(t, hash, art.Hash)
		})
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "nope.html")
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestDeleteAndExists(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Put(ctx, &Artifact{Path: "a.html", Data: []byte("a")})
			require.NoError(t, err)

			ok, err := store.Exists(ctx, "a.html")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, store.Delete(ctx, "a.html"))
			ok, err = store.Exists(ctx, "a.html")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.True(t, IsNotFound(store.Delete(ctx, "a.html")))
		})
	}
}

func TestListSorted(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, p := range []string{"b/index.html", "a/index.html", "c.html"} {
				_, err := store.Put(ctx, &Artifact{Path: p, Data: []byte(p)})
				require.NoError(t, err)
			}
			paths, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a/index.html", "b/index.html", "c.html"}, paths)
		})
	}
}

func TestFSPutWritesThroughRename(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Put(ctx, &Artifact{Path: "deep/nested/index.html", Data: []byte("x")})
	require.NoError(t, err)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "deep", "nested"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.html", entries[0].Name())
}

func TestFSPutIdenticalContentLeavesFileAlone(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Put(ctx, &Artifact{Path: "page.html", Data: []byte("same")})
	require.NoError(t, err)

	dest := filepath.Join(dir, "page.html")
	before, err := os.Stat(dest)
	require.NoError(t, err)

	_, err = store.Put(ctx, &Artifact{Path: "page.html", Data: []byte("same")})
	require.NoError(t, err)

	after, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestMemStoreCountsSkippedPuts(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.Put(ctx, &Artifact{Path: "p.html", Data: []byte("v1")})
	require.NoError(t, err)
	_, err = store.Put(ctx, &Artifact{Path: "p.html", Data: []byte("v1")})
	require.NoError(t, err)
	_, err = store.Put(ctx, &Artifact{Path: "p.html", Data: []byte("v2")})
	require.NoError(t, err)

	calls := store.Calls()
	assert.Equal(t, 3, calls.Put)
	assert.Equal(t, 1, calls.Skipped)
}

func TestPutHonorsContextCancellation(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := store.Put(ctx, &Artifact{Path: "x.html", Data: []byte("x")})
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}
