package objectstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	content := []byte("hello, local disk")
	_, err = store.Put(ctx, "docs/a.txt", bytes.NewReader(content), PutOptions{})
	require.NoError(t, err)

	r, attrs, err := store.Get(ctx, "docs/a.txt")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, "docs/a.txt", attrs.Key)
	assert.Equal(t, int64(len(content)), attrs.Size)

	exists, err := store.Exists(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "docs/a.txt"))
	exists, err = store.Exists(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStore_GetNotFound(t *testing.T) {
	t.Parallel()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_RejectsPathTraversalKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	traversalKeys := []string{
		"../outside.txt",
		"../../etc/passwd",
		"a/../../b/outside.txt",
	}

	for _, key := range traversalKeys {
		_, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), PutOptions{})
		assert.ErrorIs(t, err, errPathEscape, "key %q should be rejected", key)

		_, _, err = store.Get(ctx, key)
		assert.ErrorIs(t, err, errPathEscape, "key %q should be rejected", key)

		err = store.Delete(ctx, key)
		assert.ErrorIs(t, err, errPathEscape, "key %q should be rejected", key)

		_, err = store.Exists(ctx, key)
		assert.ErrorIs(t, err, errPathEscape, "key %q should be rejected", key)

		err = store.Copy(ctx, key, "dst.txt")
		assert.ErrorIs(t, err, errPathEscape, "key %q should be rejected as copy source", key)

		err = store.Copy(ctx, "src.txt", key)
		assert.ErrorIs(t, err, errPathEscape, "key %q should be rejected as copy destination", key)
	}
}

func TestLocalStore_CopyAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(ctx, "src.txt", bytes.NewReader([]byte("data")), PutOptions{})
	require.NoError(t, err)

	require.NoError(t, store.Copy(ctx, "src.txt", "dst.txt"))

	result, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	var keys []string
	for _, o := range result.Objects {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{"src.txt", "dst.txt"}, keys)
}

func TestLocalStore_Ping(t *testing.T) {
	t.Parallel()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
}
