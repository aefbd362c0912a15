package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/consentforge/consentforge/engine/core"
	"github.com/consentforge/consentforge/engine/run"
)

// LogsCmd assembles and prints the consolidated provenance for a run.
func LogsCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the snippet provenance and facts recorded for a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runID == "" {
				return fmt.Errorf("--run is required")
			}
			cfg := configFromCmd(cmd)
			logs, err := run.NewLedger(cfg).BuildLogs(core.ID(runID))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(logs)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run id")
	return cmd
}
