package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag-mcp/internal/mcp"
	"github.com/dshills/docrag-mcp/internal/storage"
)

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", mcp.ServerName, a.build.Version)
			fmt.Fprintf(out, "Build Time: %s\n", a.build.BuildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(out, "Vector Extension: %v\n", storage.VectorExtensionAvailable)
		},
	}
}
