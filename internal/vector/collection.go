package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotaeru/internal/models"
)

// record is the in-memory mirror of one stored row. The L2 norm is computed
// once at load/add time so search only pays for dot products.
type record struct {
	id      string
	content string
	meta    RecordMeta
	vec     []float32
	norm    float64
}

// Collection is a durable vector index backed by SQLite with an in-memory
// mirror for search. Every add batch is committed in a single transaction
// before it becomes visible to searches, so readers never observe a partial
// batch. Reopening the same database restores all records in insertion order.
type Collection struct {
	name       string
	dimensions int
	db         *sql.DB

	mu   sync.RWMutex
	recs []record
}

var _ Index = (*Collection)(nil)

// Open opens or creates the collection database at dbPath. Parent directories
// are created if they do not exist. The collection's dimensionality is fixed
// on first open; reopening with a different value fails.
func Open(dbPath, name string, dimensions int) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	c := &Collection{name: name, dimensions: dimensions, db: db}
	if err := c.ensureCollection(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := c.loadRecords(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimensions INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		chunk_id INTEGER NOT NULL,
		uploaded_at TIMESTAMP NOT NULL,
		embedding BLOB NOT NULL,
		FOREIGN KEY (collection) REFERENCES collections(name)
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);
	CREATE INDEX IF NOT EXISTS idx_records_source ON records(collection, source);
	`
	_, err := db.Exec(schema)
	return err
}

// ensureCollection registers the collection row, or verifies the stored
// dimensionality when the collection already exists.
func (c *Collection) ensureCollection() error {
	var stored int
	err := c.db.QueryRow(`SELECT dimensions FROM collections WHERE name = ?`, c.name).Scan(&stored)
	if err == sql.ErrNoRows {
		_, err = c.db.Exec(`INSERT INTO collections (name, dimensions) VALUES (?, ?)`, c.name, c.dimensions)
		if err != nil {
			return fmt.Errorf("failed to register collection: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read collection: %w", err)
	}
	if stored != c.dimensions {
		return fmt.Errorf("collection %q has dimensions %d, requested %d", c.name, stored, c.dimensions)
	}
	return nil
}

// loadRecords fills the in-memory mirror from the database in insertion
// order, which search tie-breaking depends on.
func (c *Collection) loadRecords() error {
	rows, err := c.db.Query(
		`SELECT id, content, source, chunk_id, uploaded_at, embedding
		 FROM records WHERE collection = ? ORDER BY rowid`, c.name)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	var recs []record
	for rows.Next() {
		var rec record
		var blob []byte
		if err := rows.Scan(&rec.id, &rec.content, &rec.meta.Source, &rec.meta.ChunkID, &rec.meta.UploadedAt, &blob); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		rec.vec = decodeEmbedding(blob)
		if len(rec.vec) != c.dimensions {
			return fmt.Errorf("record %s has embedding dimension %d, collection expects %d", rec.id, len(rec.vec), c.dimensions)
		}
		rec.norm = l2norm(rec.vec)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	c.recs = recs
	return nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Dimensions returns the fixed embedding dimensionality.
func (c *Collection) Dimensions() int {
	return c.dimensions
}

// Add stores a batch of texts with their embeddings and metadata, returning
// the generated record IDs in input order. The whole batch is committed in
// one transaction; on any failure nothing is stored. A zero UploadedAt is
// stamped with the current time.
func (c *Collection) Add(ctx context.Context, texts []string, embeddings [][]float32, metas []RecordMeta) ([]string, error) {
	if len(texts) == 0 || len(texts) != len(embeddings) || len(texts) != len(metas) {
		return nil, fmt.Errorf("%w: got %d texts, %d embeddings, %d metadata entries",
			ErrInvalidBatch, len(texts), len(embeddings), len(metas))
	}
	for i, emb := range embeddings {
		if len(emb) != c.dimensions {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, collection expects %d",
				ErrDimensionMismatch, i, len(emb), c.dimensions)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	ids := make([]string, len(texts))
	staged := make([]record, len(texts))
	for i := range texts {
		meta := metas[i]
		if meta.UploadedAt.IsZero() {
			meta.UploadedAt = now
		}
		vec := make([]float32, c.dimensions)
		copy(vec, embeddings[i])
		ids[i] = uuid.New().String()
		staged[i] = record{
			id:      ids[i],
			content: texts[i],
			meta:    meta,
			vec:     vec,
			norm:    l2norm(vec),
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (id, collection, content, source, chunk_id, uploaded_at, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to prepare insert: %v", ErrStorage, err)
	}
	defer stmt.Close()

	for _, rec := range staged {
		if _, err := stmt.ExecContext(ctx, rec.id, c.name, rec.content, rec.meta.Source,
			rec.meta.ChunkID, rec.meta.UploadedAt, encodeEmbedding(rec.vec)); err != nil {
			return nil, fmt.Errorf("%w: failed to insert record: %v", ErrStorage, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit batch: %v", ErrStorage, err)
	}

	c.recs = append(c.recs, staged...)
	return ids, nil
}

// Search returns the topK records nearest to query by cosine distance,
// ascending. Ties keep insertion order. An empty collection returns no
// results and no error; topK larger than the record count returns everything.
func (c *Collection) Search(ctx context.Context, query []float32, topK int) ([]Result, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if len(query) != c.dimensions {
		return nil, fmt.Errorf("%w: query has dimension %d, collection expects %d",
			ErrDimensionMismatch, len(query), c.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.recs) == 0 {
		return nil, nil
	}

	qnorm := l2norm(query)
	type scored struct {
		idx  int
		dist float64
	}
	scores := make([]scored, len(c.recs))
	for i := range c.recs {
		var sim float64
		if qnorm != 0 && c.recs[i].norm != 0 {
			sim = dot(query, c.recs[i].vec) / (qnorm * c.recs[i].norm)
		}
		scores[i] = scored{idx: i, dist: 1 - sim}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].dist < scores[j].dist })

	if topK > len(scores) {
		topK = len(scores)
	}
	results := make([]Result, topK)
	for i := 0; i < topK; i++ {
		rec := c.recs[scores[i].idx]
		results[i] = Result{Content: rec.content, Meta: rec.meta, Distance: scores[i].dist}
	}
	return results, nil
}

// Stats returns the collection name and current record count.
func (c *Collection) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Name: c.name, TotalRecords: len(c.recs)}
}

// Size returns the number of stored records.
func (c *Collection) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.recs)
}

// Sources aggregates stored records per source document, sorted by source
// name. LastUploadedAt is the most recent ingestion time for that source.
func (c *Collection) Sources() []models.SourceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bySource := make(map[string]*models.SourceInfo)
	for i := range c.recs {
		meta := c.recs[i].meta
		info, ok := bySource[meta.Source]
		if !ok {
			info = &models.SourceInfo{Source: meta.Source}
			bySource[meta.Source] = info
		}
		info.Chunks++
		if meta.UploadedAt.After(info.LastUploadedAt) {
			info.LastUploadedAt = meta.UploadedAt
		}
	}

	out := make([]models.SourceInfo, 0, len(bySource))
	for _, info := range bySource {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// HasSource reports whether any stored record came from the given source.
func (c *Collection) HasSource(source string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.recs {
		if c.recs[i].meta.Source == source {
			return true
		}
	}
	return false
}

// Clear removes every record while keeping the collection's name and
// dimensionality. No other operation runs concurrently with Clear.
func (c *Collection) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, c.name); err != nil {
		return fmt.Errorf("%w: failed to clear records: %v", ErrStorage, err)
	}
	c.recs = nil
	return nil
}

// Close closes the underlying database.
func (c *Collection) Close() error {
	return c.db.Close()
}

func encodeEmbedding(vec []float32) []byte {
	const size = 4
	out := make([]byte, len(vec)*size)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func decodeEmbedding(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
