package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotaeru/internal/answer"
	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/keyword"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/splitter"
	"github.com/hyperjump/kotaeru/internal/vector"
	"go.uber.org/zap"
)

var errTestGenerator = errors.New("model unavailable")

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

// testStack bundles the components every handler test builds the same way.
type testStack struct {
	col      *vector.Collection
	keywords *keyword.Index
	pipeline *ingest.Pipeline
	engine   *answer.Engine
	gen      *llm.MockGenerator
}

func newTestStack(t *testing.T, opts ...ingest.Option) *testStack {
	t.Helper()
	dir := t.TempDir()
	col, err := vector.Open(filepath.Join(dir, "kotaeru.db"), "documents", 8)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { col.Close() })
	kw, err := keyword.Open(filepath.Join(dir, "keyword.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kw.Close() })
	embedder := embedding.NewHashingEmbedder(8)
	t.Cleanup(func() { embedder.Close() })
	sp, err := splitter.New(200, 40)
	if err != nil {
		t.Fatal(err)
	}
	gen := &llm.MockGenerator{Response: "Paris is the capital of France."}
	pipelineOpts := append([]ingest.Option{ingest.WithKeywordIndex(kw)}, opts...)
	return &testStack{
		col:      col,
		keywords: kw,
		pipeline: ingest.NewPipeline(sp, embedder, col, pipelineOpts...),
		engine:   answer.NewEngine(embedder, col, gen, 3),
		gen:      gen,
	}
}

func (ts *testStack) server() *Server {
	return NewServer(ts.engine, ts.pipeline, ts.col, ts.keywords, extract.NewExtractor(),
		&config.ServerConfig{Port: 8080}, zap.NewNop(), nil, "", nil)
}

func multipartFile(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleRoot(t *testing.T) {
	srv := newTestStack(t).server()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.handleRoot(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Version   string            `json:"version"`
		Endpoints map[string]string `json:"endpoints"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Version != "1.0.0" {
		t.Errorf("version: got %q, want 1.0.0", out.Version)
	}
	if out.Endpoints["query"] != "/api/v1/query" {
		t.Errorf("endpoints: got %v", out.Endpoints)
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestStack(t)
	ids, err := ts.pipeline.Ingest(context.Background(), "paris.txt",
		"Paris is the capital of France. The Eiffel Tower stands in Paris.")
	if err != nil {
		t.Fatal(err)
	}
	srv := ts.server()

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out models.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "healthy" {
		t.Errorf("status field: got %q", out.Status)
	}
	if out.IndexStatus != "connected" {
		t.Errorf("index_status: got %q", out.IndexStatus)
	}
	if out.TotalDocuments != len(ids) {
		t.Errorf("total_documents: got %d, want %d", out.TotalDocuments, len(ids))
	}
}

func TestHandleUpload(t *testing.T) {
	ts := newTestStack(t)
	srv := ts.server()

	body, contentType := multipartFile(t, "notes.txt", []byte("Tokyo is the capital of Japan."))
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.handleUpload(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.UploadResult
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.FileName != "notes.txt" {
		t.Errorf("file_name: got %q", out.FileName)
	}
	if out.ChunksCreated < 1 {
		t.Errorf("chunks_created: got %d, want >= 1", out.ChunksCreated)
	}
	if out.Message != "Document uploaded and processed successfully." {
		t.Errorf("message: got %q", out.Message)
	}
	if !ts.col.HasSource("notes.txt") {
		t.Error("expected notes.txt in the collection after upload")
	}
}

func TestHandleUpload_SavesToDocumentsDir(t *testing.T) {
	ts := newTestStack(t)
	docsDir := filepath.Join(t.TempDir(), "documents")
	appCfg := config.Default()
	appCfg.Storage.DocumentsDir = docsDir
	srv := NewServer(ts.engine, ts.pipeline, ts.col, ts.keywords, extract.NewExtractor(),
		&config.ServerConfig{Port: 8080}, zap.NewNop(), nil, "", appCfg)

	body, contentType := multipartFile(t, "saved.txt", []byte("Berlin is the capital of Germany."))
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.handleUpload(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(docsDir, "saved.txt")); err != nil {
		t.Errorf("expected uploaded file on disk: %v", err)
	}
}

func TestHandleUpload_UnsupportedType(t *testing.T) {
	srv := newTestStack(t).server()

	body, contentType := multipartFile(t, "payload.exe", []byte{0x4d, 0x5a})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.handleUpload(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.Error, "Unsupported file type: .exe.") {
		t.Errorf("error: got %q", out.Error)
	}
}

func TestHandleUpload_MissingFile(t *testing.T) {
	srv := newTestStack(t).server()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", strings.NewReader("not multipart"))
	w := httptest.NewRecorder()
	srv.handleUpload(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleUpload_DuplicateWithSkipPolicy(t *testing.T) {
	ts := newTestStack(t, ingest.WithPolicy(ingest.PolicySkip))
	srv := ts.server()

	upload := func() *httptest.ResponseRecorder {
		body, contentType := multipartFile(t, "dup.txt", []byte("Madrid is the capital of Spain."))
		r := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
		r.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		srv.handleUpload(w, r)
		return w
	}

	if w := upload(); w.Code != http.StatusOK {
		t.Fatalf("first upload: got %d, body: %s", w.Code, w.Body.String())
	}
	if w := upload(); w.Code != http.StatusConflict {
		t.Errorf("second upload: got %d, want 409", w.Code)
	}
}

func TestHandleQuery(t *testing.T) {
	ts := newTestStack(t)
	if _, err := ts.pipeline.Ingest(context.Background(), "paris.txt",
		"Paris is the capital of France. The Eiffel Tower stands in Paris."); err != nil {
		t.Fatal(err)
	}
	srv := ts.server()

	body, _ := json.Marshal(models.QueryRequest{Question: "What is the capital of France?", TopK: 2})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.handleQuery(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.QueryResult
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "Paris is the capital of France." {
		t.Errorf("answer: got %q", out.Answer)
	}
	if len(out.SourceChunks) == 0 {
		t.Fatal("expected source chunks")
	}
	if out.SourceChunks[0].Source != "paris.txt" {
		t.Errorf("source: got %q", out.SourceChunks[0].Source)
	}
	if ts.gen.Calls() != 1 {
		t.Errorf("generator calls: got %d, want 1", ts.gen.Calls())
	}
}

func TestHandleQuery_InvalidBody(t *testing.T) {
	srv := newTestStack(t).server()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.handleQuery(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleQuery_EmptyQuestion(t *testing.T) {
	srv := newTestStack(t).server()
	body, _ := json.Marshal(models.QueryRequest{Question: ""})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleQuery(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleQuery_EmptyIndexFallback(t *testing.T) {
	ts := newTestStack(t)
	srv := ts.server()

	body, _ := json.Marshal(models.QueryRequest{Question: "Anything at all?"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleQuery(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.QueryResult
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != answer.Fallback {
		t.Errorf("answer: got %q, want fallback", out.Answer)
	}
	if len(out.SourceChunks) != 0 {
		t.Errorf("source_chunks: got %d, want 0", len(out.SourceChunks))
	}
	if ts.gen.Calls() != 0 {
		t.Errorf("generator calls: got %d, want 0", ts.gen.Calls())
	}
}

func TestHandleQuery_GeneratorError(t *testing.T) {
	ts := newTestStack(t)
	if _, err := ts.pipeline.Ingest(context.Background(), "paris.txt",
		"Paris is the capital of France."); err != nil {
		t.Fatal(err)
	}
	ts.gen.Err = errTestGenerator
	srv := ts.server()

	body, _ := json.Marshal(models.QueryRequest{Question: "What is the capital of France?"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleQuery(w, r)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", w.Code)
	}
}

func TestHandleListDocuments(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	if _, err := ts.pipeline.Ingest(ctx, "a.txt", "Paris is the capital of France."); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.pipeline.Ingest(ctx, "b.txt", "Tokyo is the capital of Japan."); err != nil {
		t.Fatal(err)
	}
	srv := ts.server()

	r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	w := httptest.NewRecorder()
	srv.handleListDocuments(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Documents []models.SourceInfo `json:"documents"`
		Total     int                 `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 2 || len(out.Documents) != 2 {
		t.Errorf("total: got %d with %d documents", out.Total, len(out.Documents))
	}
}

func TestHandleListDocuments_KeywordSearch(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	if _, err := ts.pipeline.Ingest(ctx, "paris.txt", "The Eiffel Tower stands in Paris."); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.pipeline.Ingest(ctx, "tokyo.txt", "Tokyo Tower lights up at night."); err != nil {
		t.Fatal(err)
	}
	srv := ts.server()

	r := httptest.NewRequest(http.MethodGet, "/api/v1/documents?q=eiffel", nil)
	w := httptest.NewRecorder()
	srv.handleListDocuments(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Documents []models.SourceMatch `json:"documents"`
		Total     int                  `json:"total"`
		Query     string               `json:"query"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Query != "eiffel" {
		t.Errorf("query: got %q", out.Query)
	}
	if out.Total < 1 {
		t.Fatal("expected at least one match")
	}
	if out.Documents[0].Source != "paris.txt" {
		t.Errorf("top match: got %q, want paris.txt", out.Documents[0].Source)
	}
}

func TestHandleListDocuments_KeywordSearchNotEnabled(t *testing.T) {
	ts := newTestStack(t)
	srv := NewServer(ts.engine, ts.pipeline, ts.col, nil, extract.NewExtractor(),
		&config.ServerConfig{Port: 8080}, zap.NewNop(), nil, "", nil)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/documents?q=anything", nil)
	w := httptest.NewRecorder()
	srv.handleListDocuments(w, r)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleClearDocuments(t *testing.T) {
	ts := newTestStack(t)
	if _, err := ts.pipeline.Ingest(context.Background(), "a.txt", "Paris is the capital of France."); err != nil {
		t.Fatal(err)
	}
	srv := ts.server()

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/documents", nil)
	w := httptest.NewRecorder()
	srv.handleClearDocuments(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Message != "All documents cleared successfully." {
		t.Errorf("message: got %q", out.Message)
	}
	if ts.col.Size() != 0 {
		t.Errorf("collection size after clear: got %d, want 0", ts.col.Size())
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestStack(t)
	ids, err := ts.pipeline.Ingest(context.Background(), "a.txt", "Paris is the capital of France.")
	if err != nil {
		t.Fatal(err)
	}
	srv := ts.server()

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.Status
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Records != len(ids) {
		t.Errorf("records: got %d, want %d", out.Records, len(ids))
	}
	if out.Sources != 1 {
		t.Errorf("sources: got %d, want 1", out.Sources)
	}
	if out.Config != nil {
		t.Error("expected no config echo without app config")
	}
}

func TestHandleStatus_WithConfig(t *testing.T) {
	ts := newTestStack(t)
	if _, err := ts.pipeline.Ingest(context.Background(), "a.txt", "Paris is the capital of France."); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	appCfg := config.Default()
	appCfg.Storage.DatabasePath = filepath.Join(dir, "status.db")
	appCfg.Storage.KeywordIndexPath = filepath.Join(dir, "status.bleve")
	appCfg.Storage.DocumentsDir = dir
	if err := os.WriteFile(appCfg.Storage.DatabasePath, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	srv := NewServer(ts.engine, ts.pipeline, ts.col, ts.keywords, extract.NewExtractor(),
		&config.ServerConfig{Port: 8080}, zap.NewNop(), nil, "", appCfg)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.Status
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Config == nil {
		t.Fatal("expected config echo")
	}
	if out.Config.CollectionName != appCfg.Collection.Name {
		t.Errorf("collection_name: got %q", out.Config.CollectionName)
	}
	if out.Config.EmbeddingDimensions != 8 {
		t.Errorf("embedding_dimensions: got %d, want 8", out.Config.EmbeddingDimensions)
	}
	if out.DiskUsageBytes == nil {
		t.Fatal("expected disk_usage_bytes")
	}
	if *out.DiskUsageBytes < 1 {
		t.Errorf("disk_usage_bytes: got %d, want >= 1", *out.DiskUsageBytes)
	}
}

func TestHandleWatchDirectoriesList(t *testing.T) {
	ts := newTestStack(t)
	mock := &mockWatchService{dirs: []string{"/tmp/docs"}}
	srv := NewServer(ts.engine, ts.pipeline, ts.col, ts.keywords, extract.NewExtractor(),
		&config.ServerConfig{Port: 8080}, zap.NewNop(), mock, "", nil)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil)
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesList(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/docs" {
		t.Errorf("directories: got %v", out.Directories)
	}
}

func TestHandleWatchDirectoriesList_NotEnabled(t *testing.T) {
	srv := newTestStack(t).server()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil)
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesList(w, r)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleWatchDirectoriesAdd(t *testing.T) {
	ts := newTestStack(t)
	mock := &mockWatchService{}
	srv := NewServer(ts.engine, ts.pipeline, ts.col, ts.keywords, extract.NewExtractor(),
		&config.ServerConfig{Port: 8080}, zap.NewNop(), mock, "", nil)

	dir := t.TempDir()
	body, _ := json.Marshal(map[string]string{"path": dir})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesAdd(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if len(mock.Directories()) != 1 {
		t.Errorf("expected 1 directory, got %v", mock.Directories())
	}
}

func TestHandleWatchDirectoriesAdd_NotFound(t *testing.T) {
	ts := newTestStack(t)
	mock := &mockWatchService{}
	srv := NewServer(ts.engine, ts.pipeline, ts.col, ts.keywords, extract.NewExtractor(),
		&config.ServerConfig{Port: 8080}, zap.NewNop(), mock, "", nil)

	body, _ := json.Marshal(map[string]string{"path": filepath.Join(t.TempDir(), "nonexistent")})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesAdd(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleWatchDirectoriesRemove(t *testing.T) {
	ts := newTestStack(t)
	dir := t.TempDir()
	mock := &mockWatchService{dirs: []string{dir}}
	srv := NewServer(ts.engine, ts.pipeline, ts.col, ts.keywords, extract.NewExtractor(),
		&config.ServerConfig{Port: 8080}, zap.NewNop(), mock, "", nil)

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesRemove(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if len(mock.Directories()) != 0 {
		t.Errorf("expected 0 directories, got %v", mock.Directories())
	}
}

func TestHandleWatchDirectoriesAdd_PersistsConfig(t *testing.T) {
	ts := newTestStack(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	appCfg := config.Default()
	mock := &mockWatchService{}
	srv := NewServer(ts.engine, ts.pipeline, ts.col, ts.keywords, extract.NewExtractor(),
		&config.ServerConfig{Port: 8080}, zap.NewNop(), mock, configPath, appCfg)

	body, _ := json.Marshal(map[string]string{"path": dir})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.handleWatchDirectoriesAdd(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != dir {
		t.Errorf("persisted directories: got %v", saved.Watch.Directories)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate", ingest.ErrDuplicateDocument, http.StatusConflict},
		{"empty document", ingest.ErrEmptyDocument, http.StatusBadRequest},
		{"unsupported format", extract.ErrUnsupportedFormat, http.StatusBadRequest},
		{"invalid top_k", vector.ErrInvalidTopK, http.StatusBadRequest},
		{"dimension mismatch", vector.ErrDimensionMismatch, http.StatusBadRequest},
		{"generation", answer.ErrGeneration, http.StatusBadGateway},
		{"storage", vector.ErrStorage, http.StatusInternalServerError},
		{"unknown", errTestGenerator, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus(%v): got %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
