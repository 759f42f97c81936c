// Package blobstore is the BlobStore adapter from C4: fetch(key) -> bytes
// over a local filesystem or an S3-compatible object store. One backend is
// chosen for the whole process from BlobStoreConfig.Kind; a DocumentRecord's
// storage_type is not consulted when fetching.
package blobstore

import (
	"bytes"
	"context"
	"io"
	"time"

	"ragforge/internal/objectstore"
	"ragforge/internal/ragdomain"
)

// BlobStore is the narrow fetch/store/delete contract used by the ingest
// and download paths. NotFound is distinct from transport errors so the
// pipeline can classify it per §4.4.
type BlobStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// PresignGetURL returns a time-limited download URL, or ("", nil) when
	// the backend has no presigning concept (e.g. local disk).
	PresignGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// objectStoreBlob adapts any objectstore.ObjectStore (memory, local-disk, or
// S3) to the BlobStore contract.
type objectStoreBlob struct {
	store objectstore.ObjectStore
}

func NewFromObjectStore(store objectstore.ObjectStore) BlobStore {
	return &objectStoreBlob{store: store}
}

func (b *objectStoreBlob) Fetch(ctx context.Context, key string) ([]byte, error) {
	r, _, err := b.store.Get(ctx, key)
	if err != nil {
		if err == objectstore.ErrNotFound {
			return nil, ragdomain.New(ragdomain.KindNotFound, "Fetch", "blob not found", err)
		}
		return nil, ragdomain.New(ragdomain.KindTransportError, "Fetch", "blob store read failed", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindTransportError, "Fetch", "blob store read failed", err)
	}
	return data, nil
}

func (b *objectStoreBlob) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.store.Put(ctx, key, bytes.NewReader(data), objectstore.PutOptions{ContentType: contentType})
	if err != nil {
		return ragdomain.New(ragdomain.KindTransportError, "Put", "blob store write failed", err)
	}
	return nil
}

func (b *objectStoreBlob) Delete(ctx context.Context, key string) error {
	if err := b.store.Delete(ctx, key); err != nil {
		return ragdomain.New(ragdomain.KindTransportError, "Delete", "blob store delete failed", err)
	}
	return nil
}

// presigner is implemented by backends that can mint a direct download URL
// (currently S3); others fall back to a no-op empty result.
type presigner interface {
	PresignGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func (b *objectStoreBlob) PresignGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if p, ok := b.store.(presigner); ok {
		return p.PresignGetURL(ctx, key, ttl)
	}
	return "", nil
}
