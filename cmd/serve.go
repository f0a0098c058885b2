package cmd

import (
	"github.com/spf13/cobra"

	"firewatch/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP tool server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap.NewApp()
		if err != nil {
			return err
		}
		return app.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
