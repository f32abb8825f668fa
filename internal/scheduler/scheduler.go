// Package scheduler tracks per-source crawl cadence, dispatches due jobs
// under a concurrency cap, and records job history.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/storesync/internal/crawler"
	"github.com/jonesrussell/storesync/internal/domain"
	"github.com/jonesrussell/storesync/internal/logger"
	"github.com/jonesrussell/storesync/internal/metrics"
	"github.com/jonesrussell/storesync/internal/syncer"
)

const (
	// DefaultMaxConcurrent caps simultaneously running crawl jobs.
	DefaultMaxConcurrent = 3
	// maxJobDuration bounds one job end to end so an unresponsive site
	// cannot starve the pool.
	maxJobDuration = 15 * time.Minute
)

// ErrAlreadyRunning is returned when a crawl is triggered for a source that
// already has a job in flight. A source never has two concurrent job runs.
var ErrAlreadyRunning = errors.New("source already has a running job")

// SourceStore is the source persistence port.
type SourceStore interface {
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	List(ctx context.Context, tenantID string) ([]*domain.Source, error)
	FindDue(ctx context.Context, tenantID string, now time.Time) ([]*domain.Source, error)
	UpdateCrawlState(ctx context.Context, id string, crawledAt time.Time, itemCount int, lastError *string) error
}

// JobRunStore is the job history persistence port.
type JobRunStore interface {
	Create(ctx context.Context, sourceID string) (*domain.JobRun, error)
	Update(ctx context.Context, run *domain.JobRun) error
	Complete(ctx context.Context, run *domain.JobRun, status domain.JobStatus) error
	GetLatest(ctx context.Context, sourceID string) (*domain.JobRun, error)
}

// Crawler executes one crawl job.
type Crawler interface {
	Crawl(ctx context.Context, source *domain.Source, opts crawler.Options) *crawler.Result
}

// Syncer reconciles crawl results against the catalog.
type Syncer interface {
	Reconcile(ctx context.Context, source *domain.Source, items []domain.ScrapedItem, opts syncer.Options) (*syncer.Result, error)
}

// Status reports a source's current scheduling state.
type Status struct {
	IsRunning bool           `json:"is_running"`
	LastRun   *domain.JobRun `json:"last_run,omitempty"`
}

// Service drives the crawl pipeline: tick, dispatch, record.
type Service struct {
	sources SourceStore
	jobs    JobRunStore
	crawler Crawler
	syncer  Syncer
	queue   JobQueue
	metrics *metrics.Metrics
	log     logger.Interface

	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	running map[string]bool
	queued  map[string]bool
}

// New creates a scheduler service.
func New(
	sources SourceStore,
	jobs JobRunStore,
	crawlerInstance Crawler,
	syncerInstance Syncer,
	queue JobQueue,
	maxConcurrent int,
	log logger.Interface,
) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Service{
		sources: sources,
		jobs:    jobs,
		crawler: crawlerInstance,
		syncer:  syncerInstance,
		queue:   queue,
		metrics: metrics.NewMetrics(),
		log:     log.WithComponent("scheduler"),
		sem:     make(chan struct{}, maxConcurrent),
		running: make(map[string]bool),
		queued:  make(map[string]bool),
	}
}

// Run ticks until the context is cancelled, then waits for in-flight jobs.
func (s *Service) Run(ctx context.Context, tick time.Duration) error {
	s.log.Info("scheduler started", "tick", tick)

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", tick), func() {
		s.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule tick: %w", err)
	}

	// Initial tick so due sources are not delayed by one interval.
	s.Tick(ctx)
	c.Start()

	<-ctx.Done()
	s.log.Info("scheduler stopping, waiting for in-flight jobs")
	cronCtx := c.Stop()
	<-cronCtx.Done()
	s.wg.Wait()
	return nil
}

// Tick re-evaluates due sources and dispatches them. Due sources beyond the
// concurrency cap queue rather than drop; a source with a job already
// running or queued is skipped.
func (s *Service) Tick(ctx context.Context) {
	now := time.Now()
	due, err := s.sources.FindDue(ctx, "", now)
	if err != nil {
		s.log.Error("failed to find due sources", "error", err)
		return
	}

	enqueued := 0
	for _, source := range due {
		// The store filters in SQL; Due re-checks the same predicate in Go
		// so the two cannot drift apart unnoticed.
		if !source.Due(now) {
			continue
		}
		if s.tryEnqueue(Job{Source: source}) {
			enqueued++
		}
	}

	if enqueued > 0 {
		s.log.Info("tick enqueued due sources", "due", len(due), "enqueued", enqueued)
	}

	s.dispatch(ctx)
}

// TriggerCrawl dispatches one source immediately, bypassing the due check.
// fullRescrape forces a crawl of an inactive source.
func (s *Service) TriggerCrawl(ctx context.Context, sourceID string, fullRescrape bool) error {
	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("trigger crawl: %w", err)
	}

	job := Job{Source: source, Opts: crawler.Options{Force: fullRescrape}}
	if !s.tryEnqueue(job) {
		return ErrAlreadyRunning
	}

	s.dispatch(ctx)
	return nil
}

// TriggerCrawlAll dispatches every active source of a tenant.
func (s *Service) TriggerCrawlAll(ctx context.Context, tenantID string) (int, error) {
	sources, err := s.sources.List(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("trigger crawl all: %w", err)
	}

	triggered := 0
	for _, source := range sources {
		if !source.Active {
			continue
		}
		if s.tryEnqueue(Job{Source: source}) {
			triggered++
		}
	}

	s.dispatch(ctx)
	return triggered, nil
}

// JobStatus reports whether a source has a job in flight plus its last run.
func (s *Service) JobStatus(ctx context.Context, sourceID string) (*Status, error) {
	s.mu.Lock()
	isRunning := s.running[sourceID] || s.queued[sourceID]
	s.mu.Unlock()

	status := &Status{IsRunning: isRunning}

	last, err := s.jobs.GetLatest(ctx, sourceID)
	if err == nil {
		status.LastRun = last
	}

	return status, nil
}

// Metrics returns a snapshot of the pipeline counters.
func (s *Service) Metrics() metrics.Snapshot {
	return s.metrics.Snapshot()
}

// Wait blocks until every in-flight job finishes. Used by tests and
// shutdown paths.
func (s *Service) Wait() {
	s.wg.Wait()
}

// tryEnqueue adds the job unless the source is already queued or running.
func (s *Service) tryEnqueue(job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := job.Source.ID
	if s.running[id] || s.queued[id] {
		return false
	}
	s.queued[id] = true
	s.queue.Enqueue(job)
	return true
}

// dispatch drains the queue into worker goroutines gated by the semaphore.
func (s *Service) dispatch(ctx context.Context) {
	for {
		job, ok := s.queue.Dequeue()
		if !ok {
			return
		}

		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()

			s.sem <- struct{}{}
			defer func() { <-s.sem }()

			s.mu.Lock()
			delete(s.queued, job.Source.ID)
			s.running[job.Source.ID] = true
			s.mu.Unlock()

			defer func() {
				s.mu.Lock()
				delete(s.running, job.Source.ID)
				s.mu.Unlock()
			}()

			s.executeJob(ctx, job)
		}(job)
	}
}

// executeJob runs one crawl+sync job end to end. No failure may propagate
// out and kill the scheduler: panics are recovered and recorded as FAILED,
// and the source's crawl state is updated regardless of outcome.
func (s *Service) executeJob(ctx context.Context, job Job) {
	source := job.Source
	log := s.log.WithSource(source.ID)

	jobCtx, cancel := context.WithTimeout(ctx, maxJobDuration)
	defer cancel()

	run, err := s.jobs.Create(jobCtx, source.ID)
	if err != nil {
		log.Error("failed to create job run", "error", err)
		return
	}
	log = log.WithJob(run.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", fmt.Sprintf("%v", r))
			run.Errors = append(run.Errors, domain.JobError{
				Stage:   domain.JobStageCrawl,
				Type:    string(domain.CrawlErrorUnknown),
				Message: fmt.Sprintf("panic: %v", r),
			})
			s.finishJob(source, run, domain.JobStatusFailed, 0)
			s.metrics.RecordJob(metrics.JobOutcome{Failed: true})
		}
	}()

	started := time.Now()
	crawlResult := s.crawler.Crawl(jobCtx, source, job.Opts)

	run.ItemsFound = len(crawlResult.Items)
	for _, crawlErr := range crawlResult.Errors {
		run.Errors = append(run.Errors, crawlErr.JobError())
	}

	status := crawlResult.Status
	if status != domain.JobStatusFailed {
		syncResult, syncErr := s.syncer.Reconcile(jobCtx, source, crawlResult.Items, syncer.Options{
			DryRun: job.Opts.DryRun,
			// A crawl that aborted early must not mass-sell the catalog.
			AllowRemovals: status == domain.JobStatusCompleted,
		})
		if syncErr != nil {
			log.Error("reconciliation failed", "error", syncErr)
			status = domain.JobStatusFailed
		}
		if syncResult != nil {
			run.ItemsNew = syncResult.Created
			run.ItemsUpdated = syncResult.Updated
			run.ItemsRemoved = syncResult.Removed
			for _, se := range syncResult.Errors {
				run.Errors = append(run.Errors, se.JobError())
			}
		}
	}

	s.finishJob(source, run, status, len(crawlResult.Items))

	s.metrics.RecordJob(metrics.JobOutcome{
		Failed:       status == domain.JobStatusFailed,
		ItemsFound:   run.ItemsFound,
		ItemsCreated: run.ItemsNew,
		ItemsUpdated: run.ItemsUpdated,
		ItemsRemoved: run.ItemsRemoved,
		PagesFetched: crawlResult.PagesFetched,
	})

	log.Info("job finished",
		"status", status,
		"items", run.ItemsFound,
		"new", run.ItemsNew,
		"updated", run.ItemsUpdated,
		"removed", run.ItemsRemoved,
		"duration", time.Since(started),
	)
}

// finishJob freezes the run and updates the source's crawl state. Both
// happen regardless of outcome so a persistently failing source is not
// re-attempted every tick while still surfacing its error.
func (s *Service) finishJob(source *domain.Source, run *domain.JobRun, status domain.JobStatus, itemCount int) {
	// The job context may already be dead; bookkeeping gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.jobs.Complete(ctx, run, status); err != nil {
		s.log.Error("failed to complete job run", "job_id", run.ID, "error", err)
	}

	var lastError *string
	if len(run.Errors) > 0 {
		msg := run.Errors[len(run.Errors)-1].Message
		lastError = &msg
	}

	if err := s.sources.UpdateCrawlState(ctx, source.ID, time.Now(), itemCount, lastError); err != nil {
		s.log.Error("failed to update source crawl state", "source_id", source.ID, "error", err)
	}
}
