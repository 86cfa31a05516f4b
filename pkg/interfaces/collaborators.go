package interfaces

import (
	"context"

	"github.com/google/uuid"
)

// BlobStore uploads binary assets discovered in rendered HTML and returns a
// public URL the published markup can reference. Implementations live outside
// this module (object storage adapters).
type BlobStore interface {
	Upload(ctx context.Context, workspaceID uuid.UUID, relativePath string, data []byte, contentType string) (string, error)
}

// BlockCacheKey addresses one rendered block's HTML in the fast cache.
type BlockCacheKey struct {
	WorkspaceID uuid.UUID
	BlockID     uuid.UUID
}

// BlockCache is the fast key-value cache used to serve rendered block HTML.
// Reads and writes are batched so page views issue one round trip per level
// of the block tree instead of one per block.
type BlockCache interface {
	GetMany(ctx context.Context, keys []BlockCacheKey) (map[BlockCacheKey]string, error)
	SetMany(ctx context.Context, entries map[BlockCacheKey]string) error
}
