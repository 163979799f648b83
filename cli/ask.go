package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AskCmd runs one query through the pipeline and prints the response.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Translate a natural-language question into SQL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, ctx, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer application.close()

			tenant, err := cmd.Flags().GetString("tenant")
			if err != nil {
				return fmt.Errorf("cli: failed to get tenant flag: %w", err)
			}

			query := strings.Join(args, " ")
			response, err := application.orchestrator.Process(ctx, tenant, query)
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(response, "", "  ")
			if err != nil {
				return fmt.Errorf("cli: failed to encode response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
	cmd.Flags().String("tenant", "default", "tenant whose schema the query runs against")
	return cmd
}
