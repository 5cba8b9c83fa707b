// Package cli implements the docrag command line.
package cli

import (
	"github.com/spf13/cobra"
)

// BuildInfo carries version details stamped in by main
type BuildInfo struct {
	Version   string
	BuildTime string
}

// app holds persistent flags shared by every command
type app struct {
	build      BuildInfo
	configFile string
	dbPath     string
	logLevel   string
	jsonOutput bool
}

// NewRootCommand builds the docrag command tree
func NewRootCommand(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	root := &cobra.Command{
		Use:   "docrag",
		Short: "docrag - hybrid document retrieval for AI assistants",
		Long: `docrag answers natural-language questions against a corpus of uploaded
documents. Queries are tokenized, classified by intent and routed to a
retrieval strategy that combines filename, content and vector matching
with reciprocal rank fusion.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default is ./docrag.yaml or $HOME/.config/docrag/config.yaml)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "database path (overrides config and DOCRAG_DB_PATH)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "output as JSON")

	root.AddCommand(
		a.serveCommand(),
		a.searchCommand(),
		a.classifyCommand(),
		a.suggestCommand(),
		a.keywordsCommand(),
		a.historyCommand(),
		a.statusCommand(),
		a.embedCommand(),
		a.versionCommand(),
	)
	return root
}
