// Package embedder turns search queries and document chunk text into
// unit vectors for the vector matcher.
//
// Three providers implement Embedder:
//
//   - openai: any OpenAI-compatible /embeddings endpoint (OPENAI_BASE_URL)
//   - jina: Jina AI, same wire format
//   - local: offline feature hashing, deterministic and dependency free
//
// Provider selection follows DOCRAG_EMBEDDING_PROVIDER, then the presence of
// JINA_API_KEY or OPENAI_API_KEY, then falls back to local.
//
// Input text is flattened to a single line and truncated to MaxInputChars
// runes before it is sent or cached. Results are cached in an LRU keyed by
// the SHA-256 of the model name and the prepared text. Transient HTTP failures are retried with
// exponential backoff; 4xx responses other than 429 are not.
//
//	emb, err := embedder.New(embedder.Config{Provider: "openai", CacheSize: 1000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vec, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: "N706 蝴蝶Mura"})
package embedder
