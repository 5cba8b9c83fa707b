package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, limit int, filter *types.Filter) ([]types.VectorMatch, error) {
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, queryVector, limit, filter)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, db, queryVector, limit, filter)
}

// searchVectorOptimized uses sqlite-vec extension for SQL-based vector similarity search
func searchVectorOptimized(ctx context.Context, db *sql.DB, queryVector []float32, limit int, filter *types.Filter) ([]types.VectorMatch, error) {
	if limit <= 0 {
		return []types.VectorMatch{}, nil
	}

	// vec_distance_cosine returns 1-cos; similarity is mapped to [0,1] as (1+cos)/2
	query := `
		SELECT
			c.id,
			c.doc_id,
			(2.0 - vec_distance_cosine(e.vector, ?)) / 2.0 AS similarity,
			d.upload_date
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		INNER JOIN documents d ON d.id = c.doc_id
		WHERE e.dimension = ?
	`
	args := []interface{}{serializeVector(queryVector), len(queryVector)}

	query, args = applyDocumentFilter(query, args, filter)
	query, args = applyChunkFilter(query, args, filter)

	query += " ORDER BY similarity DESC, d.upload_date DESC, c.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.VectorMatch, 0, limit)
	for rows.Next() {
		var m types.VectorMatch
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Similarity, &m.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		m.Similarity = clampUnit(m.Similarity)
		results = append(results, m)
	}

	return results, rows.Err()
}

// searchVectorFallback performs vector search using Go-based cosine similarity computation
// This is used when sqlite-vec extension is not available (purego builds)
func searchVectorFallback(ctx context.Context, db *sql.DB, queryVector []float32, limit int, filter *types.Filter) ([]types.VectorMatch, error) {
	query := `
		SELECT
			c.id,
			c.doc_id,
			e.vector,
			d.upload_date
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		INNER JOIN documents d ON d.id = c.doc_id
		WHERE e.dimension = ?
	`
	args := []interface{}{len(queryVector)}

	query, args = applyDocumentFilter(query, args, filter)
	query, args = applyChunkFilter(query, args, filter)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	return buildVectorResults(candidates, limit), nil
}

// candidate represents a chunk with its similarity score
type candidate struct {
	chunkID    int64
	docID      int64
	score      float64
	uploadedAt time.Time
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32) ([]candidate, error) {
	candidates := make([]candidate, 0, 1000)

	for rows.Next() {
		var c candidate
		var vectorBlob []byte
		if err := rows.Scan(&c.chunkID, &c.docID, &vectorBlob, &c.uploadedAt); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		c.score = unitSimilarity(cosineSimilarity(queryVector, vector))
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// sortCandidates orders by score desc, newest upload, then chunk id
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.uploadedAt.Equal(b.uploadedAt) {
			return a.uploadedAt.After(b.uploadedAt)
		}
		return a.chunkID < b.chunkID
	})
}

// buildVectorResults creates VectorMatch slice from candidates
func buildVectorResults(candidates []candidate, limit int) []types.VectorMatch {
	if limit <= 0 {
		return []types.VectorMatch{}
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]types.VectorMatch, limit)
	for i := 0; i < limit; i++ {
		results[i] = types.VectorMatch{
			ChunkID:    candidates[i].chunkID,
			DocumentID: candidates[i].docID,
			Similarity: candidates[i].score,
			UploadedAt: candidates[i].uploadedAt,
		}
	}
	return results
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// unitSimilarity maps cosine in [-1,1] to [0,1]
func unitSimilarity(cos float64) float64 {
	return clampUnit((1 + cos) / 2)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
