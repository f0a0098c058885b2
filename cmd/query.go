package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firewatch/bootstrap"
	"firewatch/core"
	"firewatch/tools"
)

var (
	queryLimit  int
	querySortBy string
	queryDesc   bool
)

var queryCmd = &cobra.Command{
	Use:   "query <entity> <query>",
	Short: "Run one search against the MSP and print the results as JSON",
	Example: `  firewatch query flows "protocol:tcp AND blocked:true"
  firewatch query alarms "severity:>=high" --limit 20 --sort-by severity --desc`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entity, err := core.ParseEntityType(args[0])
		if err != nil {
			return err
		}

		app, err := bootstrap.NewApp()
		if err != nil {
			return err
		}

		result, err := app.Service.Search(cmd.Context(), entity, tools.SearchRequest{
			Query:    args[1],
			Limit:    effectiveLimit(queryLimit, app.Config.Search.DefaultLimit),
			SortBy:   querySortBy,
			SortDesc: queryDesc,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return nil
	},
}

// effectiveLimit falls back to the configured default result bound when the
// flag was not given. The tool API itself requires an explicit limit; the
// CLI is the one transport allowed to omit it.
func effectiveLimit(flagValue, configured int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configured
}

func init() {
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "maximum results to return (default: search.default_limit)")
	queryCmd.Flags().StringVar(&querySortBy, "sort-by", "", "logical field to sort by (default: timestamp, newest first)")
	queryCmd.Flags().BoolVar(&queryDesc, "desc", false, "sort descending")
	rootCmd.AddCommand(queryCmd)
}
