// Package scheduler implements the scheduler command, the long-running
// process that crawls due sources and serves the HTTP trigger surface.
package scheduler

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/storesync/cmd/common"
	"github.com/jonesrussell/storesync/internal/api"
	"github.com/jonesrussell/storesync/internal/config"
	"github.com/jonesrussell/storesync/internal/crawler"
	"github.com/jonesrussell/storesync/internal/database"
	"github.com/jonesrussell/storesync/internal/fetcher"
	"github.com/jonesrussell/storesync/internal/logger"
	"github.com/jonesrussell/storesync/internal/parser"
	schedulerpkg "github.com/jonesrussell/storesync/internal/scheduler"
	"github.com/jonesrussell/storesync/internal/syncer"
)

// Command returns the scheduler command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the crawl scheduler and HTTP API",
		Long: `Run the long-running scheduler process. It re-evaluates due sources on
every tick, crawls them under the configured concurrency cap, reconciles
the results into the catalog, and serves the HTTP trigger surface.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			return run(cmd.Context(), deps)
		},
	}
}

// run constructs the pipeline and serves until interrupted.
func run(ctx context.Context, deps *common.CommandDeps) error {
	log := deps.Logger
	cfg := deps.Config

	db, err := deps.OpenDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	sourceRepo := database.NewSourceRepository(db)
	catalogRepo := database.NewCatalogRepository(db)
	jobRunRepo := database.NewJobRunRepository(db)

	svc := schedulerpkg.New(
		sourceRepo,
		jobRunRepo,
		newDriver(cfg, log),
		syncer.NewEngine(catalogRepo, log),
		schedulerpkg.NewMemoryQueue(),
		cfg.Scheduler.MaxConcurrent,
		log,
	)

	server := api.NewServer(
		cfg.Server.Address,
		api.NewSourcesHandler(svc, jobRunRepo),
		log,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if serveErr := server.Start(runCtx); serveErr != nil {
			serverErr <- serveErr
			cancel()
		}
	}()

	log.Info("storesync scheduler running",
		"tick", cfg.Scheduler.Tick(),
		"max_concurrent", cfg.Scheduler.MaxConcurrent,
		"addr", cfg.Server.Address,
	)

	err = svc.Run(runCtx, cfg.Scheduler.Tick())

	select {
	case serveErr := <-serverErr:
		return serveErr
	default:
	}
	return err
}

// newDriver builds the crawl driver with a per-job fetcher factory.
func newDriver(cfg *config.Config, log logger.Interface) *crawler.Driver {
	factory := func() fetcher.PageFetcher {
		return fetcher.NewCollyFetcher(fetcher.Config{
			UserAgent:       cfg.Crawler.UserAgent,
			RequestTimeout:  cfg.Crawler.RequestTimeout,
			IgnoreRobotsTxt: true,
		})
	}
	return crawler.NewDriver(parser.NewRegistry(), factory, log)
}
