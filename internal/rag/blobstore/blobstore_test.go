package blobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"ragforge/internal/objectstore"
	"ragforge/internal/ragdomain"
)

func TestObjectStoreBlob_PutFetchDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewFromObjectStore(objectstore.NewMemoryStore())

	if err := store.Put(ctx, "a.txt", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := store.Fetch(ctx, "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected data: %q", data)
	}

	if err := store.Delete(ctx, "a.txt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Fetch(ctx, "a.txt"); ragdomain.KindOf(err) != ragdomain.KindNotFound {
		t.Fatalf("expected KindNotFound after delete, got %v", err)
	}
}

func TestObjectStoreBlob_FetchMissingIsNotFound(t *testing.T) {
	t.Parallel()
	store := NewFromObjectStore(objectstore.NewMemoryStore())
	_, err := store.Fetch(context.Background(), "missing.txt")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if ragdomain.KindOf(err) != ragdomain.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", ragdomain.KindOf(err))
	}
	if !errors.Is(err, ragdomain.ErrNotFound) {
		t.Fatalf("expected errors.Is to match ErrNotFound")
	}
}

// nonPresigningStore wraps MemoryStore without implementing presigner, to
// exercise the ("", nil) fallback.
type nonPresigningStore struct{ objectstore.ObjectStore }

func TestObjectStoreBlob_PresignGetURL_FallsBackWhenUnsupported(t *testing.T) {
	t.Parallel()
	store := NewFromObjectStore(nonPresigningStore{objectstore.NewMemoryStore()})
	url, err := store.PresignGetURL(context.Background(), "key", 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "" {
		t.Fatalf("expected empty URL when backend cannot presign, got %q", url)
	}
}
