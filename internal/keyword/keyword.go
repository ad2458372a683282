// Package keyword provides a Bleve lexical index over stored chunks.
//
// The index is a secondary structure: answering stays pure vector
// retrieval, while this index serves the documents search endpoint.
// It persists alongside the SQLite records and is rebuilt from scratch
// when the collection is cleared.
package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/hyperjump/kotaeru/internal/models"
)

// Hit is a single keyword search match for one stored chunk.
type Hit struct {
	ID     string
	Source string
	Score  float64
}

// GroupBySource folds chunk-level hits into one entry per source document,
// keeping the best score per source, ordered best first.
func GroupBySource(hits []Hit) []models.SourceMatch {
	bySource := make(map[string]*models.SourceMatch)
	order := make([]string, 0)
	for _, hit := range hits {
		m, ok := bySource[hit.Source]
		if !ok {
			m = &models.SourceMatch{Source: hit.Source}
			bySource[hit.Source] = m
			order = append(order, hit.Source)
		}
		m.Chunks++
		if hit.Score > m.Score {
			m.Score = hit.Score
		}
	}
	out := make([]models.SourceMatch, 0, len(bySource))
	for _, source := range order {
		out = append(out, *bySource[source])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// chunkDoc is the shape indexed per chunk. SourceText carries the source
// name with underscores replaced by spaces so multi-word queries match
// names like "paris_travel_guide.pdf" (the standard analyzer does not
// split on underscore).
type chunkDoc struct {
	Source     string `json:"source"`
	SourceText string `json:"source_text"`
	Content    string `json:"content"`
}

// Index is a Bleve-backed lexical index over chunk content and source
// names. Safe for concurrent use; Clear recreates the index in place.
type Index struct {
	path string

	mu  sync.RWMutex
	idx bleve.Index
}

// Open creates or opens a Bleve index at path. An existing index is
// opened and reused so keyword search works across restarts without
// re-ingesting. If the mapping in code changes, remove the index
// directory to force a rebuild.
func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("keyword index path is empty")
	}
	idx, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &Index{path: path, idx: idx}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open keyword index: %w", openErr)
		}
		return idx, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match
	// the exact words that appear in chunks; stemming analyzers fold distinct
	// terms together and make short queries behave unpredictably.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("source_text", textFieldMapping)
	sourceFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("source", sourceFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return idx, nil
}

// Add indexes chunks under their record ids in a single Bleve batch.
// ids and chunks must be the same length; all chunks belong to source.
func (ix *Index) Add(ctx context.Context, ids []string, source string, chunks []string) error {
	if len(ids) != len(chunks) {
		return fmt.Errorf("ids and chunks length mismatch: %d != %d", len(ids), len(chunks))
	}
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sourceText := strings.ReplaceAll(source, "_", " ")

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	batch := ix.idx.NewBatch()
	for i, id := range ids {
		doc := chunkDoc{Source: source, SourceText: sourceText, Content: chunks[i]}
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("failed to stage chunk %s: %w", id, err)
		}
	}
	if err := ix.idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	return nil
}

// Search runs a match query over chunk content and source names and
// returns up to limit hits, best first.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	req.Fields = []string{"source"}
	results, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	out := make([]Hit, len(results.Hits))
	for i, hit := range results.Hits {
		h := Hit{ID: hit.ID, Score: hit.Score}
		if src, ok := hit.Fields["source"].(string); ok {
			h.Source = src
		}
		out[i] = h
	}
	return out, nil
}

// DocCount returns the number of indexed chunks.
func (ix *Index) DocCount() (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.idx.DocCount()
}

// Clear removes every indexed chunk by recreating the index directory.
func (ix *Index) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.idx.Close(); err != nil {
		return fmt.Errorf("failed to close keyword index: %w", err)
	}
	if err := os.RemoveAll(ix.path); err != nil {
		return fmt.Errorf("failed to remove keyword index: %w", err)
	}
	idx, err := openOrCreate(ix.path)
	if err != nil {
		return err
	}
	ix.idx = idx
	return nil
}

// Close closes the underlying Bleve index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.idx.Close()
}
