package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "firewatch",
	Short: "Query and correlation engine for Firewalla MSP data",
	Long: `firewatch exposes the flows, alarms, rules, devices and target lists
of a Firewalla MSP deployment through a structured query language with
cross-entity correlation.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
