package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag-mcp/internal/tokenizer"
	"github.com/dshills/docrag-mcp/pkg/types"
)

func (a *app) classifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [query]",
		Short: "Show how a query would be tokenized and routed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errMissingQuery
			}

			// Routing needs no store, only the configured tables
			cfg, _, err := a.loadConfig()
			if err != nil {
				return err
			}
			selector, err := cfg.NewSelector()
			if err != nil {
				return err
			}
			tokens := tokenizer.New(cfg.TokenizerTables()).Tokenize(query)
			decision := selector.Select(query)

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, map[string]interface{}{
					"query":    query,
					"tokens":   tokens,
					"intent":   decision.Intent,
					"strategy": decision.Strategy,
					"reason":   decision.Reason,
				})
			}
			fmt.Fprintf(out, "Tokens:   %s\n", strings.Join(tokens, ", "))
			fmt.Fprintf(out, "Intent:   %s\n", decision.Intent)
			fmt.Fprintf(out, "Strategy: %s\n", decision.Strategy)
			fmt.Fprintf(out, "Reason:   %s\n", decision.Reason)
			return nil
		},
	}
}

func (a *app) suggestCommand() *cobra.Command {
	var docTypes, sourceTypes []string

	cmd := &cobra.Command{
		Use:   "suggest [query]",
		Short: "Suggest annotated keywords similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errMissingQuery
			}

			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			suggestions, err := rt.suggester.Suggest(cmd.Context(), query, buildFilter(docTypes, sourceTypes))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, suggestions)
			}
			if len(suggestions) == 0 {
				fmt.Fprintln(out, "No similar keywords.")
				return nil
			}
			for _, s := range suggestions {
				fmt.Fprintf(out, "%s (%.2f, %d chunks)\n", s.Keyword, s.Score, s.Count)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&docTypes, "doc-type", nil, "restrict to document types")
	cmd.Flags().StringSliceVar(&sourceTypes, "source-type", nil, "restrict to chunk source types")
	return cmd
}

func (a *app) keywordsCommand() *cobra.Command {
	var (
		limit                 int
		docTypes, sourceTypes []string
	)

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "List the annotated keyword vocabulary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			vocab, err := rt.store.ListKeywords(cmd.Context(), buildFilter(docTypes, sourceTypes))
			if err != nil {
				return err
			}
			if limit > 0 && len(vocab) > limit {
				vocab = vocab[:limit]
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, vocab)
			}
			for _, kc := range vocab {
				fmt.Fprintf(out, "%6d  %s\n", kc.Count, kc.Keyword)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of keywords (0 for all)")
	cmd.Flags().StringSliceVar(&docTypes, "doc-type", nil, "restrict to document types")
	cmd.Flags().StringSliceVar(&sourceTypes, "source-type", nil, "restrict to chunk source types")
	return cmd
}

func (a *app) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			records, err := rt.store.ListSearches(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No searches recorded.")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(out, "%s  %-10s %-18s %3d results  %s\n",
					r.CreatedAt.Local().Format(time.DateTime), r.Status, r.Strategy, r.ResultCount, r.Query)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of searches to show")
	return cmd
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store statistics and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			status, err := rt.store.GetStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				return writeJSON(out, status)
			}

			fmt.Fprintf(out, "Database:       %s\n", rt.cfg.Database.Path)
			if rt.configPath != "" {
				fmt.Fprintf(out, "Config:         %s\n", rt.configPath)
			}
			fmt.Fprintf(out, "Schema:         %s (%s)\n", status.SchemaVersion, status.BuildMode)
			fmt.Fprintf(out, "Documents:      %d\n", status.Documents)
			docTypes := make([]string, 0, len(status.DocumentsByType))
			for dt := range status.DocumentsByType {
				docTypes = append(docTypes, string(dt))
			}
			sort.Strings(docTypes)
			for _, dt := range docTypes {
				fmt.Fprintf(out, "  %-14s %d\n", dt, status.DocumentsByType[types.DocType(dt)])
			}
			fmt.Fprintf(out, "Chunks:         %d\n", status.Chunks)
			fmt.Fprintf(out, "Embeddings:     %d\n", status.Embeddings)
			fmt.Fprintf(out, "Searches:       %d\n", status.Searches)
			if !status.LastUploadAt.IsZero() {
				fmt.Fprintf(out, "Last upload:    %s\n", status.LastUploadAt.Local().Format(time.DateTime))
			}
			fmt.Fprintf(out, "Size:           %.2f MB\n", status.SizeMB)
			if rt.embedder != nil {
				fmt.Fprintf(out, "Embedder:       %s/%s (%d dims)\n", rt.embedder.Provider(), rt.embedder.Model(), rt.embedder.Dimension())
			} else {
				fmt.Fprintln(out, "Embedder:       unavailable")
			}
			fmt.Fprintf(out, "Vector ext:     %v\n", status.Health.VectorExtension)
			return nil
		},
	}
}
