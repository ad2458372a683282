package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotaeru/internal/answer"
	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/keyword"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/splitter"
	"github.com/hyperjump/kotaeru/internal/vector"
	"github.com/hyperjump/kotaeru/pkg/utils"
	"go.uber.org/zap"
)

// keywordSearchLimit caps how many chunk hits one ?q= lookup collects
// before grouping them by source.
const keywordSearchLimit = 100

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "kotaeru RAG API",
		"version": apiVersion,
		"endpoints": map[string]string{
			"health":    "/health",
			"upload":    "/api/v1/documents/upload",
			"query":     "/api/v1/query",
			"documents": "/api/v1/documents",
			"status":    "/api/v1/status",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.index.Stats()
	s.respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:         "healthy",
		IndexStatus:    "connected",
		TotalDocuments: stats.TotalRecords,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	// Base strips any client-supplied directory components so the source
	// name can never escape the documents directory.
	name := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !extract.IsSupported(ext) {
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Unsupported file type: %s. Allowed types are: %s", ext, strings.Join(extract.Supported(), ", ")))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read uploaded file: %v", err))
		return
	}
	s.logger.Debug("upload request", zap.String("file", name), zap.Int("bytes", len(content)))

	if dir := s.documentsDir(); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save uploaded file: %v", err))
			return
		}
		if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
			s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save uploaded file: %v", err))
			return
		}
	}

	text, err := s.extractor.ExtractBytes(content, ext)
	if err != nil {
		s.logger.Error("extraction failed", zap.String("file", name), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process document: %v", err))
		return
	}

	ids, err := s.pipeline.Ingest(r.Context(), name, text)
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("ingestion failed", zap.String("file", name), zap.Error(err))
		}
		s.respondError(w, status, fmt.Sprintf("Failed to process document: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, models.UploadResult{
		FileName:      name,
		ChunksCreated: len(ids),
		DocumentID:    name,
		Message:       "Document uploaded and processed successfully.",
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request", zap.String("question", req.Question), zap.Int("top_k", req.TopK))

	result, err := s.engine.Answer(r.Context(), req.Question, req.TopK)
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("query failed", zap.Error(err))
		}
		s.respondError(w, status, fmt.Sprintf("Failed to process query: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		sources := s.index.Sources()
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"documents": sources,
			"total":     len(sources),
		})
		return
	}

	if s.keywords == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword search not enabled")
		return
	}
	hits, err := s.keywords.Search(r.Context(), q, keywordSearchLimit)
	if err != nil {
		s.logger.Error("keyword search failed", zap.String("q", q), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	matches := keyword.GroupBySource(hits)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": matches,
		"total":     len(matches),
		"query":     q,
	})
}

func (s *Server) handleClearDocuments(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("clear documents request")
	if err := s.index.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to clear documents: %v", err))
		return
	}
	if s.keywords != nil {
		if err := s.keywords.Clear(r.Context()); err != nil {
			// The vector collection is already empty; a stale keyword index
			// only affects the documents listing, so report success anyway.
			s.logger.Warn("keyword index clear failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "All documents cleared successfully."})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.index.Stats()
	resp := models.Status{
		Records: stats.TotalRecords,
		Sources: len(s.index.Sources()),
	}
	if s.appConfig != nil {
		resp.Config = &models.StatusConfig{
			CollectionName:      s.appConfig.Collection.Name,
			EmbeddingProvider:   s.appConfig.Embedding.Provider,
			EmbeddingDimensions: s.index.Dimensions(),
			LLMProvider:         s.appConfig.LLM.Provider,
			LLMModel:            s.appConfig.LLM.Model,
			ChunkSize:           s.appConfig.Chunking.Size,
			ChunkOverlap:        s.appConfig.Chunking.Overlap,
			TopK:                s.appConfig.Retrieval.TopK,
			DatabasePath:        s.appConfig.Storage.DatabasePath,
			KeywordIndexPath:    s.appConfig.Storage.KeywordIndexPath,
		}
		diskBytes, err := utils.DiskUsageBytes(
			s.appConfig.Storage.DatabasePath,
			s.appConfig.Storage.KeywordIndexPath,
			s.appConfig.Storage.DocumentsDir,
		)
		if err == nil {
			resp.DiskUsageBytes = &diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	dirs := s.watch.Directories()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": dirs})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current watch roots back to the
// config file so they survive a restart. Failures are logged, not fatal.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.appConfig == nil {
		return
	}
	s.configMu.Lock()
	s.appConfig.Watch.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.appConfig)
	s.configMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// documentsDir returns where uploads are stored, or "" to skip storing.
func (s *Server) documentsDir() string {
	if s.appConfig == nil {
		return ""
	}
	return s.appConfig.Storage.DocumentsDir
}

// errorStatus maps pipeline errors to HTTP status codes: caller mistakes
// to 400, duplicate sources to 409, generator failures to 502, and
// everything else to 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ingest.ErrDuplicateDocument):
		return http.StatusConflict
	case errors.Is(err, ingest.ErrEmptyDocument),
		errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, splitter.ErrInvalidParams),
		errors.Is(err, vector.ErrInvalidBatch),
		errors.Is(err, vector.ErrInvalidTopK),
		errors.Is(err, vector.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, answer.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
