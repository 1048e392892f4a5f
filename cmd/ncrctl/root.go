package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	actorFlag string
)

var rootCmd = &cobra.Command{
	Use:   "ncrctl",
	Short: "CLI for the NCR lifecycle service",
	Long: `ncrctl drives the non-conformance report workflow from the command line:
raising NCRs, submitting and reviewing responses, attaching evidence,
approving and closing, and pulling project summaries.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "NCR server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Acting user principal (default: from NCR_ACTOR env)")

	rootCmd.AddCommand(ncrsCmd)
	rootCmd.AddCommand(evidenceCmd)
	rootCmd.AddCommand(reportsCmd)
}

// resolvedActor returns the effective acting principal.
// Priority: --actor flag > NCR_ACTOR env var > empty (server defaults to "system").
func resolvedActor() string {
	if actorFlag != "" {
		return actorFlag
	}
	return os.Getenv("NCR_ACTOR")
}
