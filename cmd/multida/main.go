package main

import (
	"fmt"
	"os"

	cmd "github.com/rollkit/multida/cmd/multida/commands"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		// Print to stderr and exit with error
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
