// Package vector provides durable vector record storage and cosine similarity
// search, scoped to one named collection.
package vector

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidBatch reports an add batch whose texts, embeddings, and
	// metadata do not have equal non-zero length.
	ErrInvalidBatch = errors.New("invalid batch: texts, embeddings, and metadata must have equal non-zero length")
	// ErrInvalidTopK reports a search with top_k below 1.
	ErrInvalidTopK = errors.New("top_k must be at least 1")
	// ErrDimensionMismatch reports an embedding whose dimensionality differs
	// from the collection's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrStorage reports a durable-store I/O failure. The failed operation
	// leaves the collection unchanged.
	ErrStorage = errors.New("vector storage failure")
)

// RecordMeta is the provenance metadata persisted with every record.
type RecordMeta struct {
	// Source is the originating document's name.
	Source string
	// ChunkID is the chunk's 0-based position within its source document.
	ChunkID int
	// UploadedAt is the ingestion timestamp (UTC).
	UploadedAt time.Time
}

// Result is a single search hit.
type Result struct {
	Content string
	Meta    RecordMeta
	// Distance is the cosine distance (1 - cosine similarity) to the query.
	// Smaller is more similar.
	Distance float64
}

// Stats reports the collection name and record count as of call time.
type Stats struct {
	Name         string
	TotalRecords int
}

// Index defines vector record storage and similarity search for one
// collection. Add is atomic per batch; Clear is exclusive with all other
// operations; Search calls may run in parallel.
type Index interface {
	Add(ctx context.Context, texts []string, embeddings [][]float32, metas []RecordMeta) ([]string, error)
	Search(ctx context.Context, query []float32, topK int) ([]Result, error)
	Stats() Stats
	Clear(ctx context.Context) error
	Size() int
	Close() error
}
