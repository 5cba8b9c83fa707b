package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/docrag-mcp/internal/mcp"
)

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Starts the Model Context Protocol server on stdin/stdout. Logs are
written to stderr; stdout is reserved for the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			server, err := mcp.NewServer(mcp.Deps{
				Storage:   rt.store,
				Embedder:  rt.embedder,
				Searcher:  rt.searcher,
				Suggester: rt.suggester,
				Logger:    rt.logger,
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Serve(ctx)
			}()

			select {
			case <-ctx.Done():
				rt.logger.Info().Msg("shutting down")
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
}
