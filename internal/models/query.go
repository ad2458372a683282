package models

import "fmt"

// QueryRequest is a question posed to the retrieval pipeline.
type QueryRequest struct {
	Question string `json:"question"`
	// TopK is the number of chunks to retrieve. Zero means the configured
	// default (normally 3).
	TopK int `json:"top_k,omitempty"`
}

// Validate checks the request and normalizes TopK.
func (q *QueryRequest) Validate() error {
	if q.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if q.TopK < 0 {
		return fmt.Errorf("top_k cannot be negative")
	}
	if q.TopK > 100 {
		q.TopK = 100
	}
	return nil
}

// SourceChunk is one retrieved chunk cited in an answer.
type SourceChunk struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	// ChunkID is the chunk's 0-based position within its source document,
	// not a global identifier.
	ChunkID int `json:"chunk_id"`
	// SimilarityScore is 1 minus the cosine distance to the query. 1.0 means
	// identical direction; negative values are possible.
	SimilarityScore float64 `json:"similarity_score"`
}

// QueryResult is the answer to a query with its cited sources, ordered
// most-similar first.
type QueryResult struct {
	Answer       string        `json:"answer"`
	SourceChunks []SourceChunk `json:"source_chunks"`
}
