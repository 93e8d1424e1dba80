// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "glassview",
	Short: "Glassview is a multi-tenant analytics platform",
	Long: `Glassview is a multi-tenant analytics platform. This service carries
the data-permissions engine: fine-grained data-access grants per group,
database, schema and table, with deterministic conflict resolution.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
