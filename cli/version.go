package cli

import (
	"fmt"

	"github.com/arunmenon/text2sql/pkg/version"
	"github.com/spf13/cobra"
)

// VersionCmd prints build information.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "text2sql %s (%s, built %s)\n",
				info.Version, info.CommitHash, info.BuildDate)
		},
	}
}
