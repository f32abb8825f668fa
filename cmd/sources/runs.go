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

const defaultRunsLimit = 20

// renderRuns formats and displays job runs in a table.
func renderRuns(runs []*domain.JobRun) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"ID", "Status", "Found", "New", "Updated", "Removed", "Errors", "Started", "Duration"})

	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			run.Status,
			run.ItemsFound,
			run.ItemsNew,
			run.ItemsUpdated,
			run.ItemsRemoved,
			len(run.Errors),
			run.StartedAt.Format(time.RFC3339),
			run.Duration().Round(time.Second),
		})
	}

	t.Render()
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [source-id]",
		Short: "Show a source's crawl history",
		Long:  `Show the most recent crawl job runs for one source.`,
		Args:  cobra.ExactArgs(1),
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

			return runs(cmd.Context(), database.NewJobRunRepository(db), args[0], limit, deps)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultRunsLimit, "maximum number of runs to show")

	return cmd
}

// runs fetches and renders the job run history.
func runs(ctx context.Context, repo *database.JobRunRepository, sourceID string, limit int, deps *common.CommandDeps) error {
	history, err := repo.ListBySource(ctx, sourceID, limit)
	if err != nil {
		return fmt.Errorf("failed to get job runs: %w", err)
	}

	if len(history) == 0 {
		deps.Logger.Info("No job runs recorded", "source", sourceID)
		return nil
	}

	renderRuns(history)
	return nil
}
