package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/storage"
)

var errNoEmbedder = errors.New("no embedding provider configured")

func (a *app) embedCommand() *cobra.Command {
	var (
		backfill  bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "embed [text]",
		Short: "Embed text or backfill missing chunk embeddings",
		Long: `With text, prints the vector the configured provider returns for it.
With --backfill, embeds every stored chunk that has no vector yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !backfill && len(args) == 0 {
				return errors.New("text is required unless --backfill is set")
			}

			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()
			if rt.embedder == nil {
				return errNoEmbedder
			}

			out := cmd.OutOrStdout()
			if backfill {
				n, err := backfillEmbeddings(cmd.Context(), rt.store, rt.embedder, batchSize, rt.logger)
				fmt.Fprintf(out, "Embedded %d chunks\n", n)
				return err
			}
			return printEmbedding(cmd.Context(), out, rt.embedder, strings.Join(args, " "), a.jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&backfill, "backfill", false, "embed stored chunks that have no vector")
	cmd.Flags().IntVar(&batchSize, "batch", embedder.DefaultBatchSize, "chunks per embedding request")
	return cmd
}

func printEmbedding(ctx context.Context, w io.Writer, emb embedder.Embedder, text string, asJSON bool) error {
	e, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, map[string]interface{}{
			"provider":  emb.Provider(),
			"model":     emb.Model(),
			"dimension": e.Dimension,
			"vector":    e.Vector,
		})
	}

	head := e.Vector
	if len(head) > 5 {
		head = head[:5]
	}
	fmt.Fprintf(w, "Provider:  %s\n", emb.Provider())
	fmt.Fprintf(w, "Model:     %s\n", emb.Model())
	fmt.Fprintf(w, "Dimension: %d\n", e.Dimension)
	fmt.Fprintf(w, "Vector:    %v...\n", head)
	return nil
}

// backfillEmbeddings embeds chunks without vectors in batches. Each batch is
// written in one transaction.
func backfillEmbeddings(ctx context.Context, store storage.Storage, emb embedder.Embedder, batchSize int, logger zerolog.Logger) (int, error) {
	if batchSize <= 0 || batchSize > embedder.MaxBatchSize {
		batchSize = embedder.DefaultBatchSize
	}

	total := 0
	for {
		chunks, err := store.ChunksMissingEmbeddings(ctx, batchSize)
		if err != nil {
			return total, err
		}
		if len(chunks) == 0 {
			return total, nil
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.SearchableText()
		}
		resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return total, fmt.Errorf("failed to embed batch: %w", err)
		}
		if len(resp.Embeddings) != len(chunks) {
			return total, fmt.Errorf("embedder returned %d vectors for %d chunks", len(resp.Embeddings), len(chunks))
		}

		tx, err := store.BeginTx(ctx)
		if err != nil {
			return total, fmt.Errorf("failed to begin transaction: %w", err)
		}
		for i, c := range chunks {
			err := tx.UpsertEmbedding(ctx, &storage.Embedding{
				ChunkID:  c.ID,
				Vector:   resp.Embeddings[i].Vector,
				Provider: emb.Provider(),
				Model:    emb.Model(),
			})
			if err != nil {
				_ = tx.Rollback()
				return total, err
			}
		}
		if err := tx.Commit(); err != nil {
			return total, fmt.Errorf("failed to commit embeddings: %w", err)
		}

		total += len(chunks)
		logger.Info().Int("batch", len(chunks)).Int("total", total).Msg("embedded chunks")
	}
}
