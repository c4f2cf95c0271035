package commands

import (
	"github.com/spf13/cobra"

	"github.com/rollkit/multida/config"
)

// NewRootCmd returns the multida command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "multida",
		Short: "Publish rollup batches to several data availability backends at once.",
		Long: `
multida splits every batch to fit each configured DA backend, submits it to all
of them concurrently and records a receipt once the submit strategy is met.
If the --home flag is not specified, multida reads multida.yaml from "~/.multida"
and keeps its receipt journal there.
`,
		SilenceUsage: true,
	}
	config.AddFlags(rootCmd)
	rootCmd.AddCommand(
		NewInitCmd(),
		NewSubmitCmd(),
		NewVerifyCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)
	return rootCmd
}
