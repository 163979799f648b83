package cli

import (
	"github.com/arunmenon/text2sql/server"
	"github.com/spf13/cobra"
)

// ServeCmd starts the HTTP API.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, ctx, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer application.close()

			srv := server.New(application.cfg.Server, application.orchestrator)
			return srv.Run(ctx)
		},
	}
}
