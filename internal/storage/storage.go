package storage

import (
	"context"
	"time"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying documents and chunks
type Storage interface {
	Reader
	Writer

	// History operations
	RecordSearch(ctx context.Context, record *SearchRecord) error
	ListSearches(ctx context.Context, limit int) ([]*SearchRecord, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Reader is the read contract retrieval depends on
type Reader interface {
	// Document operations
	GetDocument(ctx context.Context, id int64) (*types.Document, error)
	GetDocuments(ctx context.Context, ids []int64) (map[int64]*types.Document, error)
	ListDocuments(ctx context.Context, filter *types.Filter) ([]*types.Document, error)

	// Chunk operations
	GetChunk(ctx context.Context, id int64) (*types.Chunk, error)
	GetChunks(ctx context.Context, ids []int64) (map[int64]*types.Chunk, error)
	ChunkIDsByDocument(ctx context.Context, docIDs []int64, perDocument int, filter *types.Filter) (map[int64][]int64, error)
	ChunksMissingEmbeddings(ctx context.Context, limit int) ([]*types.Chunk, error)

	// Search operations
	FindBySubstring(ctx context.Context, field types.Field, patterns []string, filter *types.Filter, limit int) ([]types.SubstringMatch, error)
	Nearest(ctx context.Context, vector []float32, limit int, filter *types.Filter) ([]types.VectorMatch, error)
	ListKeywords(ctx context.Context, filter *types.Filter) ([]KeywordCount, error)
}

// Writer is the minimal write API used by ingestion tooling and tests
type Writer interface {
	CreateDocument(ctx context.Context, doc *types.Document) error
	DeleteDocument(ctx context.Context, id int64) error
	InsertChunk(ctx context.Context, chunk *types.Chunk) error
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Writer
}

// Embedding represents a stored vector for a chunk
type Embedding struct {
	ChunkID   int64
	Vector    []float32
	Provider  string
	Model     string
	CreatedAt time.Time
}

// KeywordCount is one entry of the keyword vocabulary
type KeywordCount struct {
	Keyword string
	Count   int
}

// SearchRecord is one row of the query history
type SearchRecord struct {
	ID          string // Request id
	Query       string
	Tokens      []string
	Intent      types.Intent
	Strategy    types.Strategy
	Status      types.Status
	ResultCount int
	Confidence  float64
	Duration    time.Duration
	CreatedAt   time.Time
}

// Status contains statistics about the store
type Status struct {
	SchemaVersion      string
	BuildMode          string
	Documents          int
	Chunks             int
	Embeddings         int
	Searches           int
	DocumentsByType    map[types.DocType]int
	ChunksBySourceType map[types.SourceType]int
	LastUploadAt       time.Time
	SizeMB             float64
	Health             HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	VectorExtension     bool
}
