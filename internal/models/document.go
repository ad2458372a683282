// Package models defines core data structures for ingestion, queries, and answers.
package models

import "time"

// UploadResult describes the outcome of one document upload.
type UploadResult struct {
	FileName      string `json:"file_name"`
	ChunksCreated int    `json:"chunks_created"`
	DocumentID    string `json:"document_id"`
	Message       string `json:"message"`
}

// SourceInfo summarizes all records ingested under one source name.
type SourceInfo struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
	// LastUploadedAt is the most recent ingestion time among the source's
	// records. Re-ingesting under the same name advances it.
	LastUploadedAt time.Time `json:"last_uploaded_at"`
}

// SourceMatch is a keyword-search hit over ingested sources.
type SourceMatch struct {
	Source string  `json:"source"`
	Chunks int     `json:"chunks"`
	Score  float64 `json:"score"`
}

// HealthStatus is the response of the health endpoint.
type HealthStatus struct {
	Status         string `json:"status"`
	IndexStatus    string `json:"index_status"`
	TotalDocuments int    `json:"total_documents"`
}

// StatusConfig echoes the effective configuration in a status report.
type StatusConfig struct {
	CollectionName      string `json:"collection_name"`
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingDimensions int    `json:"embedding_dimensions,omitempty"`
	LLMProvider         string `json:"llm_provider"`
	LLMModel            string `json:"llm_model,omitempty"`
	ChunkSize           int    `json:"chunk_size,omitempty"`
	ChunkOverlap        int    `json:"chunk_overlap,omitempty"`
	TopK                int    `json:"top_k,omitempty"`
	DatabasePath        string `json:"database_path,omitempty"`
	KeywordIndexPath    string `json:"keyword_index_path,omitempty"`
}

// Status is the response of the status endpoint.
type Status struct {
	Records        int           `json:"records"`
	Sources        int           `json:"sources"`
	DiskUsageBytes *int64        `json:"disk_usage_bytes,omitempty"`
	Config         *StatusConfig `json:"config,omitempty"`
}
