package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/consentforge/consentforge/engine/core"
	"github.com/consentforge/consentforge/engine/retrieval"
)

// SearchCmd runs one retrieval query against an index and prints the hits.
func SearchCmd() *cobra.Command {
	var (
		indexID string
		query   string
		section string
		mode    string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query an index directly and print the retrieved snippets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFromCmd(cmd)
			if indexID == "" || query == "" {
				return fmt.Errorf("--index and --query are required")
			}
			mgr, err := newIndexManager(ctx, cfg)
			if err != nil {
				return err
			}
			snap, err := mgr.Load(core.ID(indexID))
			if err != nil {
				return err
			}
			hits, err := retrieval.NewEngine(snap, cfg).Search(ctx, query, retrieval.Options{
				Section: section,
				Mode:    mode,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(hits)
		},
	}
	cmd.Flags().StringVar(&indexID, "index", "", "Index id to query")
	cmd.Flags().StringVar(&query, "query", "", "Query text")
	cmd.Flags().StringVar(&section, "section", "", "Restrict hits to a section's allowed headings")
	cmd.Flags().StringVar(&mode, "mode", retrieval.ModeDense, "Retrieval mode: dense or hybrid")
	return cmd
}
