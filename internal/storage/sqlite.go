package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dshills/docrag-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidField is returned for an unknown substring search field
	ErrInvalidField = errors.New("invalid search field")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) CreateDocument(ctx context.Context, doc *types.Document) error {
	return createDocumentWithQuerier(ctx, t.tx, doc)
}

func (t *sqliteTx) DeleteDocument(ctx context.Context, id int64) error {
	return deleteDocumentWithQuerier(ctx, t.tx, id)
}

func (t *sqliteTx) InsertChunk(ctx context.Context, chunk *types.Chunk) error {
	return insertChunkWithQuerier(ctx, t.tx, chunk)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbeddingWithQuerier(ctx, t.tx, embedding)
}

// Document operations

func createDocumentWithQuerier(ctx context.Context, q querier, doc *types.Document) error {
	if strings.TrimSpace(doc.Filename) == "" {
		return fmt.Errorf("%w: filename is required", types.ErrInvalidInput)
	}
	if doc.DocType == "" {
		doc.DocType = types.DocKnowledge
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	doc.UploadedAt = doc.UploadedAt.UTC()

	query := `
		INSERT INTO documents (filename, doc_type, upload_date, analysis_mode, model_used)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		doc.Filename, string(doc.DocType), doc.UploadedAt, doc.AnalysisMode, doc.ModelUsed)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	doc.ID = id
	return nil
}

func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *types.Document) error {
	return createDocumentWithQuerier(ctx, s.db, doc)
}

func deleteDocumentWithQuerier(ctx context.Context, q querier, id int64) error {
	result, err := q.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document; its chunks and embeddings cascade
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) error {
	return deleteDocumentWithQuerier(ctx, s.db, id)
}

const documentColumns = `d.id, d.filename, d.doc_type, d.upload_date, d.analysis_mode, d.model_used`

func scanDocument(scan func(dest ...interface{}) error) (*types.Document, error) {
	var doc types.Document
	var docType string
	if err := scan(&doc.ID, &doc.Filename, &docType, &doc.UploadedAt, &doc.AnalysisMode, &doc.ModelUsed); err != nil {
		return nil, err
	}
	doc.DocType = types.DocType(docType)
	return &doc, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*types.Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents d WHERE d.id = ?", id)
	doc, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocuments resolves ids in one query. Missing ids are absent from the map.
func (s *SQLiteStorage) GetDocuments(ctx context.Context, ids []int64) (map[int64]*types.Document, error) {
	docs := make(map[int64]*types.Document, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	query := "SELECT " + documentColumns + " FROM documents d WHERE d.id IN (" + placeholders(len(ids)) + ")"
	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs[doc.ID] = doc
	}
	return docs, rows.Err()
}

// ListDocuments returns documents newest first
func (s *SQLiteStorage) ListDocuments(ctx context.Context, filter *types.Filter) ([]*types.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents d WHERE 1=1"
	query, args := applyDocumentFilter(query, nil, filter)
	query += " ORDER BY d.upload_date DESC, d.id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*types.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Chunk operations

func insertChunkWithQuerier(ctx context.Context, q querier, chunk *types.Chunk) error {
	if err := chunk.ValidateContent(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	if chunk.SourceType == "" {
		chunk.SourceType = types.SourceSection
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	chunk.CreatedAt = chunk.CreatedAt.UTC()

	query := `
		INSERT INTO chunks (doc_id, source_type, source_title, text_content, keywords, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		chunk.DocumentID, string(chunk.SourceType), chunk.SourceTitle, chunk.Content, chunk.Keywords, chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	chunk.ID = id

	if len(chunk.Embedding) > 0 {
		return upsertEmbeddingWithQuerier(ctx, q, &Embedding{
			ChunkID:  id,
			Vector:   chunk.Embedding,
			Provider: "inline",
			Model:    "inline",
		})
	}
	return nil
}

// InsertChunk stores a chunk and, when present, its embedding
func (s *SQLiteStorage) InsertChunk(ctx context.Context, chunk *types.Chunk) error {
	return insertChunkWithQuerier(ctx, s.db, chunk)
}

const chunkColumns = `c.id, c.doc_id, c.source_type, c.source_title, c.text_content, c.keywords, c.created_at`

func scanChunk(scan func(dest ...interface{}) error) (*types.Chunk, error) {
	var chunk types.Chunk
	var sourceType string
	if err := scan(&chunk.ID, &chunk.DocumentID, &sourceType, &chunk.SourceTitle,
		&chunk.Content, &chunk.Keywords, &chunk.CreatedAt); err != nil {
		return nil, err
	}
	chunk.SourceType = types.SourceType(sourceType)
	return &chunk, nil
}

// GetChunk returns a chunk with its embedding, if any
func (s *SQLiteStorage) GetChunk(ctx context.Context, id int64) (*types.Chunk, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks c WHERE c.id = ?", id)
	chunk, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var blob []byte
	err = s.db.QueryRowContext(ctx, "SELECT vector FROM embeddings WHERE chunk_id = ?", id).Scan(&blob)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if len(blob) > 0 {
		chunk.Embedding = deserializeVector(blob)
	}
	return chunk, nil
}

// GetChunks resolves ids in one query without embeddings. Missing ids are absent from the map.
func (s *SQLiteStorage) GetChunks(ctx context.Context, ids []int64) (map[int64]*types.Chunk, error) {
	chunks := make(map[int64]*types.Chunk, len(ids))
	if len(ids) == 0 {
		return chunks, nil
	}

	query := "SELECT " + chunkColumns + " FROM chunks c WHERE c.id IN (" + placeholders(len(ids)) + ")"
	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks[chunk.ID] = chunk
	}
	return chunks, rows.Err()
}

// ChunkIDsByDocument returns up to perDocument chunk ids per document in
// ascending id order. perDocument <= 0 returns every chunk.
func (s *SQLiteStorage) ChunkIDsByDocument(ctx context.Context, docIDs []int64, perDocument int, filter *types.Filter) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(docIDs))
	if len(docIDs) == 0 {
		return out, nil
	}

	inner := "SELECT c.doc_id, c.id, ROW_NUMBER() OVER (PARTITION BY c.doc_id ORDER BY c.id) AS rn FROM chunks c WHERE c.doc_id IN (" + placeholders(len(docIDs)) + ")"
	args := int64Args(docIDs)
	inner, args = applyChunkFilter(inner, args, filter)

	query := "SELECT doc_id, id FROM (" + inner + ")"
	if perDocument > 0 {
		query += " WHERE rn <= ?"
		args = append(args, perDocument)
	}
	query += " ORDER BY doc_id, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var docID, chunkID int64
		if err := rows.Scan(&docID, &chunkID); err != nil {
			return nil, err
		}
		out[docID] = append(out[docID], chunkID)
	}
	return out, rows.Err()
}

// ChunksMissingEmbeddings returns chunks that have no stored vector, oldest first
func (s *SQLiteStorage) ChunksMissingEmbeddings(ctx context.Context, limit int) ([]*types.Chunk, error) {
	query := "SELECT " + chunkColumns + ` FROM chunks c
		LEFT JOIN embeddings e ON e.chunk_id = c.id
		WHERE e.chunk_id IS NULL
		ORDER BY c.id`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks without embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []*types.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// Embedding operations

func upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", types.ErrInvalidInput)
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at
	`
	_, err := q.ExecContext(ctx, query,
		embedding.ChunkID, serializeVector(embedding.Vector), len(embedding.Vector),
		embedding.Provider, embedding.Model, now)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbeddingWithQuerier(ctx, s.db, embedding)
}

// Search operations

// FindBySubstring returns rows where any pattern is a case-insensitive
// substring of the field. Rows are ranked by the number of distinct patterns
// they contain, then newest upload, then id, and only then capped at limit,
// so a row matching more patterns is never cut in favour of a newer one.
func (s *SQLiteStorage) FindBySubstring(ctx context.Context, field types.Field, patterns []string, filter *types.Filter, limit int) ([]types.SubstringMatch, error) {
	likes := foldPatterns(patterns)
	if len(likes) == 0 {
		return []types.SubstringMatch{}, nil
	}

	var (
		selectCols string
		from       string
		order      string
		columns    []string
	)
	switch field {
	case types.FieldFilename:
		selectCols = "d.id, d.filename, d.upload_date"
		from = " FROM documents d WHERE "
		order = " ORDER BY hits DESC, d.upload_date DESC, d.id ASC"
		columns = []string{"d.filename"}
	case types.FieldContent:
		selectCols = "c.id, c.doc_id, c.source_title, c.text_content, c.keywords, d.upload_date"
		from = " FROM chunks c INNER JOIN documents d ON d.id = c.doc_id WHERE "
		order = " ORDER BY hits DESC, d.upload_date DESC, c.id ASC"
		columns = []string{"c.source_title", "c.text_content", "c.keywords"}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}

	hits, args := hitCount(columns, likes)
	predicate, predicateArgs := likeAny(columns, likes)
	query := "SELECT " + selectCols + ", " + hits + " AS hits" + from + predicate
	args = append(args, predicateArgs...)

	query, args = applyDocumentFilter(query, args, filter)
	if field == types.FieldContent {
		query, args = applyChunkFilter(query, args, filter)
	} else {
		query, args = applySourceExists(query, args, filter)
	}
	query += order
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute substring search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]types.SubstringMatch, 0)
	for rows.Next() {
		var m types.SubstringMatch
		if field == types.FieldFilename {
			if err := rows.Scan(&m.DocumentID, &m.Text, &m.UploadedAt, &m.Hits); err != nil {
				return nil, err
			}
		} else {
			chunk := types.Chunk{}
			if err := rows.Scan(&m.ChunkID, &m.DocumentID, &chunk.SourceTitle, &chunk.Content, &chunk.Keywords, &m.UploadedAt, &m.Hits); err != nil {
				return nil, err
			}
			m.Text = chunk.SearchableText()
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Nearest returns the chunks most similar to vector
func (s *SQLiteStorage) Nearest(ctx context.Context, vector []float32, limit int, filter *types.Filter) ([]types.VectorMatch, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", types.ErrInvalidInput)
	}
	return searchVector(ctx, s.db, vector, limit, filter)
}

// ListKeywords returns the keyword vocabulary with occurrence counts, most frequent first
func (s *SQLiteStorage) ListKeywords(ctx context.Context, filter *types.Filter) ([]KeywordCount, error) {
	query := `SELECT c.keywords FROM chunks c INNER JOIN documents d ON d.id = c.doc_id WHERE c.keywords != ''`
	query, args := applyDocumentFilter(query, nil, filter)
	query, args = applyChunkFilter(query, args, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var annotation string
		if err := rows.Scan(&annotation); err != nil {
			return nil, err
		}
		for _, kw := range types.SplitKeywords(annotation) {
			counts[kw]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]KeywordCount, 0, len(counts))
	for kw, n := range counts {
		out = append(out, KeywordCount{Keyword: kw, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out, nil
}

// History operations

// RecordSearch appends a query to the history table
func (s *SQLiteStorage) RecordSearch(ctx context.Context, record *SearchRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC()

	query := `
		INSERT INTO search_history (id, query_text, tokens, intent, strategy, status, result_count, confidence, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.Query, strings.Join(record.Tokens, " "),
		string(record.Intent), string(record.Strategy), string(record.Status),
		record.ResultCount, record.Confidence, record.Duration.Milliseconds(), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// ListSearches returns the most recent searches first
func (s *SQLiteStorage) ListSearches(ctx context.Context, limit int) ([]*SearchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, query_text, tokens, intent, strategy, status, result_count, confidence, duration_ms, created_at
		FROM search_history
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*SearchRecord
	for rows.Next() {
		var r SearchRecord
		var tokens, intent, strategy, status string
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.Query, &tokens, &intent, &strategy, &status,
			&r.ResultCount, &r.Confidence, &durationMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Tokens = strings.Fields(tokens)
		r.Intent = types.Intent(intent)
		r.Strategy = types.Strategy(strategy)
		r.Status = types.Status(status)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &r)
	}
	return records, rows.Err()
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{
		BuildMode:          BuildMode,
		DocumentsByType:    make(map[types.DocType]int),
		ChunksBySourceType: make(map[types.SourceType]int),
	}

	version, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &status.Documents},
		{"SELECT COUNT(*) FROM chunks", &status.Chunks},
		{"SELECT COUNT(*) FROM embeddings", &status.Embeddings},
		{"SELECT COUNT(*) FROM search_history", &status.Searches},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	if err := s.groupCounts(ctx, "SELECT doc_type, COUNT(*) FROM documents GROUP BY doc_type", func(k string, n int) {
		status.DocumentsByType[types.DocType(k)] = n
	}); err != nil {
		return nil, err
	}
	if err := s.groupCounts(ctx, "SELECT source_type, COUNT(*) FROM chunks GROUP BY source_type", func(k string, n int) {
		status.ChunksBySourceType[types.SourceType(k)] = n
	}); err != nil {
		return nil, err
	}

	if status.Documents > 0 {
		var latest time.Time
		err := s.db.QueryRowContext(ctx, "SELECT upload_date FROM documents ORDER BY upload_date DESC LIMIT 1").Scan(&latest)
		if err != nil {
			return nil, err
		}
		status.LastUploadAt = latest
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.Embeddings > 0,
		VectorExtension:     VectorExtensionAvailable,
	}

	return status, nil
}

func (s *SQLiteStorage) groupCounts(ctx context.Context, query string, fn func(key string, n int)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		fn(key, n)
	}
	return rows.Err()
}
