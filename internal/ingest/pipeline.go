// Package ingest turns extracted document text into stored, searchable
// chunk records: split into overlapping chunks, embed, then add to the
// vector collection in one all-or-nothing batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/splitter"
	"github.com/hyperjump/kotaeru/internal/vector"
	"go.uber.org/zap"
)

// ErrEmptyDocument reports a document whose text produced no chunks.
var ErrEmptyDocument = errors.New("document produced no chunks")

// ErrDuplicateDocument reports a source name that already has stored
// records, under the skip duplicate policy.
var ErrDuplicateDocument = errors.New("source already ingested")

// DuplicatePolicy decides what happens when a source name that already
// has records is ingested again.
type DuplicatePolicy string

const (
	// PolicyAppend stores the new records alongside the old ones.
	PolicyAppend DuplicatePolicy = "append"
	// PolicySkip rejects the ingest with ErrDuplicateDocument.
	PolicySkip DuplicatePolicy = "skip"
)

// ParsePolicy maps a configuration string to a DuplicatePolicy. The empty
// string means PolicyAppend; unknown values fail.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", string(PolicyAppend):
		return PolicyAppend, nil
	case string(PolicySkip):
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// Store is the slice of the vector collection the pipeline writes to.
type Store interface {
	Add(ctx context.Context, texts []string, embeddings [][]float32, metas []vector.RecordMeta) ([]string, error)
	HasSource(source string) bool
}

// ChunkIndexer is an optional secondary keyword index fed after records
// are durably stored.
type ChunkIndexer interface {
	Add(ctx context.Context, ids []string, source string, chunks []string) error
}

// Pipeline ingests documents: split, embed, store, keyword-index.
type Pipeline struct {
	splitter *splitter.RecursiveSplitter
	embedder embedding.Embedder
	store    Store
	keywords ChunkIndexer
	policy   DuplicatePolicy
	logger   *zap.Logger // optional; when set, logs debug events
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for debug output (document ingested, keyword
// index warnings).
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithKeywordIndex adds a secondary keyword index. Keyword indexing is
// best-effort: a failure after the records are stored is logged and does
// not fail the ingest.
func WithKeywordIndex(ix ChunkIndexer) Option {
	return func(p *Pipeline) { p.keywords = ix }
}

// WithPolicy sets the duplicate-source policy. Default is PolicyAppend.
func WithPolicy(policy DuplicatePolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// NewPipeline creates a pipeline over the given splitter, embedder, and
// store. Options (e.g. WithKeywordIndex) add optional behavior.
func NewPipeline(sp *splitter.RecursiveSplitter, embedder embedding.Embedder, store Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		splitter: sp,
		embedder: embedder,
		store:    store,
		policy:   PolicyAppend,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest splits text into chunks, embeds them in one batch, and stores
// them under source. Every chunk carries provenance metadata: the source
// name, its 0-based position, and a shared upload timestamp. Returns the
// stored record ids in chunk order.
//
// Storage is all-or-nothing: on any error no records are stored. Records
// are searchable as soon as Ingest returns.
func (p *Pipeline) Ingest(ctx context.Context, source, text string) ([]string, error) {
	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
	}
	if p.policy == PolicySkip && p.store.HasSource(source) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDocument, source)
	}

	now := time.Now().UTC()
	metas := make([]vector.RecordMeta, len(chunks))
	for i := range chunks {
		metas[i] = vector.RecordMeta{Source: source, ChunkID: i, UploadedAt: now}
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	ids, err := p.store.Add(ctx, chunks, embeddings, metas)
	if err != nil {
		return nil, err
	}

	if p.keywords != nil {
		if kwErr := p.keywords.Add(ctx, ids, source, chunks); kwErr != nil {
			if p.logger != nil {
				p.logger.Warn("keyword indexing failed",
					zap.String("source", source),
					zap.Error(kwErr))
			}
		}
	}
	if p.logger != nil {
		p.logger.Debug("document ingested",
			zap.String("source", source),
			zap.Int("chunks", len(chunks)))
	}
	return ids, nil
}
