// Package sources implements the command-line interface for inspecting
// catalog sources. This file contains the list command that displays all
// configured sources in a formatted table.
package sources

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/storesync/cmd/common"
	"github.com/jonesrussell/storesync/internal/database"
	"github.com/jonesrussell/storesync/internal/domain"
)

// renderSources formats and displays the sources in a table.
func renderSources(sources []*domain.Source) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"ID", "Name", "Platform", "URL", "Active", "Frequency", "Last Crawled", "Items", "Last Error"})

	for _, source := range sources {
		lastCrawled := "never"
		if source.LastCrawledAt != nil {
			lastCrawled = source.LastCrawledAt.Format(time.RFC3339)
		}
		lastError := ""
		if source.LastError != nil {
			lastError = *source.LastError
		}

		t.AppendRow(table.Row{
			source.ID,
			source.Name,
			source.Platform,
			source.URL,
			source.Active,
			fmt.Sprintf("%dm", source.FrequencyMinutes),
			lastCrawled,
			source.LastItemCount,
			lastError,
		})
	}

	t.Render()
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		Long:  `List the catalog sources configured in the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			db, err := deps.OpenDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			return list(cmd.Context(), database.NewSourceRepository(db), tenantID, deps)
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "filter sources by tenant ID")

	return cmd
}

// list fetches and renders the sources.
func list(ctx context.Context, repo *database.SourceRepository, tenantID string, deps *common.CommandDeps) error {
	sources, err := repo.List(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		deps.Logger.Info("No sources configured")
		return nil
	}

	renderSources(sources)
	return nil
}
