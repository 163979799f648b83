package cli

import (
	"github.com/spf13/cobra"
)

// RootCmd builds the text2sql command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "text2sql",
		Short: "Natural-language to SQL over a schema knowledge graph",
	}

	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error, disabled)")
	root.PersistentFlags().Bool("log-json", false, "emit logs as JSON")
	root.PersistentFlags().Bool("log-source", false, "include source locations in logs")

	root.AddCommand(
		AskCmd(),
		ServeCmd(),
		VersionCmd(),
	)

	return root
}
