package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// VersionCmd prints the build version.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "consentforge %s (%s)\n", Version, runtime.Version())
		},
	}
}
