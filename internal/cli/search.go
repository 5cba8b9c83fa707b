package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag-mcp/internal/searcher"
	"github.com/dshills/docrag-mcp/pkg/types"
)

func (a *app) searchCommand() *cobra.Command {
	var (
		topK        int
		strategy    string
		docTypes    []string
		sourceTypes []string
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the document store",
		Long: `Runs a hybrid search. The query is classified by intent and routed to a
strategy (hybrid, keyword_only, vector_only, filename_priority) unless
--strategy overrides it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var override types.Strategy
			if strategy != "" {
				parsed, err := types.ParseStrategy(strategy)
				if err != nil {
					return err
				}
				override = parsed
			}

			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			if topK <= 0 {
				topK = rt.cfg.Search.TopK
			}
			resp, err := rt.searcher.Search(cmd.Context(), searcher.SearchRequest{
				Query:    strings.Join(args, " "),
				TopK:     topK,
				Filter:   buildFilter(docTypes, sourceTypes),
				Strategy: override,
			})
			if resp == nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				if encErr := writeJSON(out, resp); encErr != nil {
					return encErr
				}
			} else {
				printSearch(out, resp)
			}
			if err != nil {
				return fmt.Errorf("search degraded: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top", "k", 0, "number of results to return (default from config)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "force a strategy (hybrid, keyword_only, vector_only, filename_priority)")
	cmd.Flags().StringSliceVar(&docTypes, "doc-type", nil, "restrict to document types (knowledge, training, procedure, troubleshooting)")
	cmd.Flags().StringSliceVar(&sourceTypes, "source-type", nil, "restrict to chunk source types (chapter, step, field, section)")
	return cmd
}

func buildFilter(docTypes, sourceTypes []string) *types.Filter {
	f := &types.Filter{}
	for _, d := range docTypes {
		f.DocTypes = append(f.DocTypes, types.DocType(d))
	}
	for _, s := range sourceTypes {
		f.SourceTypes = append(f.SourceTypes, types.SourceType(s))
	}
	if f.IsEmpty() {
		return nil
	}
	return f
}

func printSearch(w io.Writer, resp *searcher.SearchResponse) {
	fmt.Fprintf(w, "Intent: %s  Strategy: %s  Status: %s  Confidence: %.2f\n",
		resp.Intent, resp.StrategyUsed, resp.Status, resp.Confidence)
	if len(resp.Tokens) > 0 {
		fmt.Fprintf(w, "Tokens: %s\n", strings.Join(resp.Tokens, ", "))
	}
	if len(resp.FailedCollaborators) > 0 {
		fmt.Fprintf(w, "Unavailable: %s\n", strings.Join(resp.FailedCollaborators, ", "))
	}
	fmt.Fprintln(w)

	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		if len(resp.Suggestions) > 0 {
			names := make([]string, len(resp.Suggestions))
			for i, s := range resp.Suggestions {
				names[i] = s.Keyword
			}
			fmt.Fprintf(w, "Did you mean: %s\n", strings.Join(names, ", "))
		}
		return
	}

	for i, r := range resp.Results {
		name := fmt.Sprintf("document %d", r.DocumentID)
		if r.Document != nil {
			name = r.Document.Filename
		}
		fmt.Fprintf(w, "%d. %s (score: %.4f, method: %s)\n", i+1, name, r.Score, r.Method)
		if r.Chunk != nil && r.Chunk.SourceTitle != "" {
			fmt.Fprintf(w, "   [%s] %s\n", r.Chunk.SourceType, r.Chunk.SourceTitle)
		}
		if r.Preview != "" {
			fmt.Fprintf(w, "   %s\n", r.Preview)
		}
		fmt.Fprintln(w)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

var errMissingQuery = errors.New("query is required")
