package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/consentforge/consentforge/engine/core"
)

// GenerateCmd runs the parallel section pipeline against a built index.
func GenerateCmd() *cobra.Command {
	var (
		docID    string
		indexID  string
		sections []string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate consent-form sections for an ingested document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFromCmd(cmd)
			if docID == "" {
				return fmt.Errorf("--doc is required")
			}
			resolvedIndex := core.ID(indexID)
			if resolvedIndex == "" {
				mgr, err := newIndexManager(ctx, cfg)
				if err != nil {
					return err
				}
				latest, err := mgr.LatestForDocument(docID)
				if err != nil {
					return fmt.Errorf("no index for document %s, run ingest first: %w", docID, err)
				}
				resolvedIndex = latest.IndexID
			}
			result, err := newPipeline(cfg).RunSections(ctx, docID, resolvedIndex, sections)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"run_id":   result.Meta.RunID,
				"status":   result.Meta.Status,
				"sections": result.Sections,
			})
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "Document id from ingest")
	cmd.Flags().StringVar(&indexID, "index", "", "Index id (defaults to the document's latest)")
	cmd.Flags().StringSliceVar(&sections, "sections", nil, "Sections to generate (default all)")
	return cmd
}
