// Package sources implements the sources command group for inspecting
// configured catalog sources.
package sources

import (
	"github.com/spf13/cobra"
)

// Command returns the sources command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage catalog sources",
		Long:  `Inspect the catalog sources configured in the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewRunsCommand())
	cmd.AddCommand(NewDiscoverCommand())

	return cmd
}
