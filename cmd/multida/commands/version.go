package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rollkit/multida/config"
)

// GitSHA is set at build time
var GitSHA string

// NewVersionCmd returns the command printing version information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		RunE:  printVersion,
	}
}

func printVersion(cmd *cobra.Command, args []string) error {
	sha := GitSHA
	if sha == "" {
		sha = "unknown"
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\nmultida version:\t%v\n", config.Version)
	fmt.Fprintf(w, "multida git sha:\t%v\n", sha)
	fmt.Fprintln(w, "")
	return w.Flush()
}
