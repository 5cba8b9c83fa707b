package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// MaxInputChars caps the text sent to a provider, in runes. Chunks
// longer than this are embedded by their leading part.
const MaxInputChars = 8000

const defaultCacheEntries = 10000

// Embedding is the vector for one prepared text.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // cache key, see CacheKey
}

// EmbeddingRequest asks for the vector of a single query or chunk.
// Model overrides the provider default when set.
type EmbeddingRequest struct {
	Text  string
	Model string
}

// Validate rejects blank text.
func (r EmbeddingRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

type BatchEmbeddingRequest struct {
	Texts []string
	Model string
}

// Validate rejects an empty batch or any blank entry, naming its index.
func (r BatchEmbeddingRequest) Validate() error {
	if len(r.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range r.Texts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// BatchEmbeddingResponse holds one embedding per requested text, in
// request order.
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder is what the vector matcher and the embed command need from
// a provider. Vectors returned by one Embedder share Dimension().
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)
	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// Cache keeps recently embedded queries and chunks in memory. Entries
// are keyed by CacheKey, so a vector produced by one model is never
// served for another.
type Cache struct {
	entries *lru.Cache[string, *Embedding]
}

// NewCache returns a cache holding at most maxLen vectors. A
// non-positive maxLen selects the default size.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = defaultCacheEntries
	}
	entries, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		entries, _ = lru.New[string, *Embedding](defaultCacheEntries)
	}
	return &Cache{entries: entries}
}

// Get returns a copy of the cached vector so callers may normalize or
// mutate it freely.
func (c *Cache) Get(key string) (*Embedding, bool) {
	emb, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	out := *emb
	out.Vector = append([]float32(nil), emb.Vector...)
	return &out, true
}

func (c *Cache) Set(key string, emb *Embedding) {
	c.entries.Add(key, emb)
}

func (c *Cache) Size() int {
	return c.entries.Len()
}

func (c *Cache) Clear() {
	c.entries.Purge()
}

// ComputeHash is the hex SHA-256 of text.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// CacheKey identifies the vector of prepared text under model.
func CacheKey(model, prepared string) string {
	return ComputeHash(model + "\x00" + prepared)
}

// PrepareText flattens line breaks and cuts text to MaxInputChars
// runes. Providers embed the prepared form and cache
// keys are computed from it, so "a\nb" and "a b" share one vector.
func PrepareText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= MaxInputChars {
		return text
	}
	return string([]rune(text)[:MaxInputChars])
}
