// Package answer implements retrieval-augmented answering: embed the
// question, retrieve the closest stored chunks, and generate an answer
// grounded only in those chunks.
package answer

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/vector"
	"go.uber.org/zap"
)

// Fallback is the answer returned when retrieval finds no chunks. The
// model is not invoked in that case.
const Fallback = "No relevant documents found. Please upload documents first."

// DefaultTopK is the number of chunks retrieved when neither the caller
// nor the configuration asks for a specific count.
const DefaultTopK = 3

// ErrGeneration reports a model failure while generating the answer.
var ErrGeneration = errors.New("answer generation failed")

// Searcher is the slice of the vector collection the engine reads.
type Searcher interface {
	Search(ctx context.Context, query []float32, topK int) ([]vector.Result, error)
}

// Engine answers questions over the ingested chunks.
type Engine struct {
	embedder  embedding.Embedder
	index     Searcher
	generator llm.Generator
	topK      int
	logger    *zap.Logger // optional; when set, logs debug events
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine with the given dependencies. defaultTopK of
// 0 or less selects DefaultTopK.
func NewEngine(embedder embedding.Embedder, index Searcher, generator llm.Generator, defaultTopK int, opts ...Option) *Engine {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	e := &Engine{
		embedder:  embedder,
		index:     index,
		generator: generator,
		topK:      defaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer retrieves the topK chunks closest to question and generates an
// answer from them. topK of 0 or less selects the engine default. When
// nothing is retrieved the Fallback answer is returned with no sources
// and the model is not invoked. Source chunks preserve retrieval order;
// each carries similarity = 1 - cosine distance to the question.
func (e *Engine) Answer(ctx context.Context, question string, topK int) (*models.QueryResult, error) {
	if topK <= 0 {
		topK = e.topK
	}

	query, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	results, err := e.index.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		if e.logger != nil {
			e.logger.Debug("no chunks retrieved", zap.String("question", question))
		}
		return &models.QueryResult{Answer: Fallback, SourceChunks: []models.SourceChunk{}}, nil
	}

	contexts := make([]string, len(results))
	sources := make([]models.SourceChunk, len(results))
	for i, r := range results {
		contexts[i] = r.Content
		sources[i] = models.SourceChunk{
			Content:         r.Content,
			Source:          r.Meta.Source,
			ChunkID:         r.Meta.ChunkID,
			SimilarityScore: 1 - r.Distance,
		}
	}

	text, err := e.generator.GenerateAnswer(ctx, question, contexts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: model returned an empty answer", ErrGeneration)
	}

	if e.logger != nil {
		e.logger.Debug("answer generated",
			zap.String("question", question),
			zap.Int("chunks", len(results)))
	}
	return &models.QueryResult{Answer: text, SourceChunks: sources}, nil
}
