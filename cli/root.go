package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/consentforge/consentforge/pkg/config"
	"github.com/consentforge/consentforge/pkg/logger"
)

type contextKey string

const configKey contextKey = "config"

// RootCmd assembles the consentforge command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "consentforge",
		Short:         "Generate Informed Consent Form sections from clinical protocol PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
				cfg.Data.Dir = dataDir
			}
			levelStr, _ := cmd.Flags().GetString("log-level")
			jsonOut, _ := cmd.Flags().GetBool("log-json")
			log := logger.NewLogger(&logger.Config{
				Level: logger.ParseLevel(levelStr),
				JSON:  jsonOut,
			})
			ctx := logger.ContextWithLogger(cmd.Context(), log)
			ctx = context.WithValue(ctx, configKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},
	}

	root.PersistentFlags().String("data-dir", "", "Override the data directory")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")

	root.AddCommand(
		IngestCmd(),
		GenerateCmd(),
		RefineCmd(),
		SearchCmd(),
		LogsCmd(),
		VersionCmd(),
	)
	return root
}

func configFromCmd(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(configKey).(*config.Config)
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg
}
