package embedder

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	h1 := ComputeHash("hello")
	h2 := ComputeHash("hello")
	h3 := ComputeHash("world")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestPrepareText(t *testing.T) {
	t.Run("flattens newlines", func(t *testing.T) {
		assert.Equal(t, "line one line two  line three", PrepareText("line one\nline two\r\n\nline three\n"))
	})

	t.Run("truncates by rune", func(t *testing.T) {
		long := strings.Repeat("蝶", MaxInputChars+10)
		got := PrepareText(long)
		assert.Equal(t, MaxInputChars, len([]rune(got)))
	})

	t.Run("short text untouched", func(t *testing.T) {
		assert.Equal(t, "N706", PrepareText("N706"))
	})
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("m1", "N706"), CacheKey("m1", "N706"))
	assert.NotEqual(t, CacheKey("m1", "N706"), CacheKey("m2", "N706"))
	assert.NotEqual(t, CacheKey("m1", "N706"), ComputeHash("N706"))
}

func TestEmbeddingRequestValidate(t *testing.T) {
	assert.ErrorIs(t, EmbeddingRequest{Text: ""}.Validate(), ErrEmptyText)
	assert.ErrorIs(t, EmbeddingRequest{Text: "  \n"}.Validate(), ErrEmptyText)
	assert.NoError(t, EmbeddingRequest{Text: "query"}.Validate())
}

func TestBatchEmbeddingRequestValidate(t *testing.T) {
	assert.ErrorIs(t, BatchEmbeddingRequest{}.Validate(), ErrInvalidInput)
	err := BatchEmbeddingRequest{Texts: []string{"a", ""}}.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "index 1")
	assert.NoError(t, BatchEmbeddingRequest{Texts: []string{"a", "b"}}.Validate())
}

func TestCache(t *testing.T) {
	t.Run("get returns copy", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("k", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3})

		got, ok := cache.Get("k")
		require.True(t, ok)
		got.Vector[0] = 99

		again, ok := cache.Get("k")
		require.True(t, ok)
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", &Embedding{})
		cache.Set("b", &Embedding{})
		_, _ = cache.Get("a")
		cache.Set("c", &Embedding{})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("b")
		assert.False(t, ok)
		_, ok = cache.Get("a")
		assert.True(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(0)
		cache.Set("a", &Embedding{})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(10)
	p, err := NewLocalProvider(cache)
	require.NoError(t, err)

	t.Run("deterministic unit vectors", func(t *testing.T) {
		a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "panel mura inspection"})
		require.NoError(t, err)
		b, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "panel mura inspection"})
		require.NoError(t, err)

		assert.Equal(t, a.Vector, b.Vector)
		assert.Len(t, a.Vector, LocalDimension)
		assert.InDelta(t, 1.0, dot(a.Vector, a.Vector), 1e-4)
	})

	t.Run("shared terms score higher", func(t *testing.T) {
		q, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "蝴蝶Mura 檢查"})
		near, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "蝴蝶Mura 檢查 流程"})
		far, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "network switch firmware"})

		assert.Greater(t, dot(q.Vector, near.Vector), dot(q.Vector, far.Vector))
	})

	t.Run("newlines do not change the vector", func(t *testing.T) {
		a, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "alpha beta"})
		b, _ := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "alpha\nbeta"})
		assert.Equal(t, a.Vector, b.Vector)
	})

	t.Run("batch", func(t *testing.T) {
		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", "two"}})
		require.NoError(t, err)
		assert.Len(t, resp.Embeddings, 2)
		assert.Equal(t, ProviderLocal, resp.Provider)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.GenerateEmbedding(cctx, EmbeddingRequest{Text: "never cached"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
