package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/consentforge/consentforge/engine/core"
)

// RefineCmd runs the follow-up retrieval pass over an existing run.
func RefineCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Refine an existing run with follow-up retrieval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runID == "" {
				return fmt.Errorf("--run is required")
			}
			cfg := configFromCmd(cmd)
			result, err := newPipeline(cfg).Refine(cmd.Context(), core.ID(runID))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"run_id":   result.Meta.RunID,
				"status":   result.Meta.Status,
				"sections": result.Sections,
				"queries":  result.Queries,
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run id to refine")
	return cmd
}
