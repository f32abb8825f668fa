package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/storesync/internal/crawler"
	"github.com/jonesrussell/storesync/internal/domain"
	"github.com/jonesrussell/storesync/internal/logger"
	"github.com/jonesrussell/storesync/internal/scheduler"
	"github.com/jonesrussell/storesync/internal/syncer"
)

type fakeSourceStore struct {
	mu      sync.Mutex
	sources map[string]*domain.Source
	due     []*domain.Source
	updates map[string]*string
}

func newFakeSourceStore(sources ...*domain.Source) *fakeSourceStore {
	f := &fakeSourceStore{
		sources: make(map[string]*domain.Source),
		updates: make(map[string]*string),
	}
	for _, s := range sources {
		f.sources[s.ID] = s
	}
	return f
}

func (f *fakeSourceStore) GetByID(_ context.Context, id string) (*domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[id]
	if !ok {
		return nil, errors.New("source not found")
	}
	return s, nil
}

func (f *fakeSourceStore) List(_ context.Context, _ string) ([]*domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Source, 0, len(f.sources))
	for _, s := range f.sources {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSourceStore) FindDue(_ context.Context, _ string, _ time.Time) ([]*domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.due, nil
}

func (f *fakeSourceStore) UpdateCrawlState(_ context.Context, id string, _ time.Time, _ int, lastError *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = lastError
	return nil
}

func (f *fakeSourceStore) lastError(id string) (*string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.updates[id]
	return e, ok
}

type fakeJobRunStore struct {
	mu        sync.Mutex
	seq       int
	completed map[string]domain.JobStatus
	latest    *domain.JobRun
}

func newFakeJobRunStore() *fakeJobRunStore {
	return &fakeJobRunStore{completed: make(map[string]domain.JobStatus)}
}

func (f *fakeJobRunStore) Create(_ context.Context, sourceID string) (*domain.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return &domain.JobRun{
		ID:        fmt.Sprintf("run-%d", f.seq),
		SourceID:  sourceID,
		Status:    domain.JobStatusRunning,
		StartedAt: time.Now(),
	}, nil
}

func (f *fakeJobRunStore) Update(_ context.Context, _ *domain.JobRun) error { return nil }

func (f *fakeJobRunStore) Complete(_ context.Context, run *domain.JobRun, status domain.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[run.SourceID] = status
	return nil
}

func (f *fakeJobRunStore) GetLatest(_ context.Context, sourceID string) (*domain.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return nil, errors.New("no runs")
	}
	return f.latest, nil
}

func (f *fakeJobRunStore) statusFor(sourceID string) (domain.JobStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.completed[sourceID]
	return s, ok
}

type fakeCrawler struct {
	mu      sync.Mutex
	calls   []string
	result  *crawler.Result
	block   chan struct{}
	started chan string
	panics  bool
}

func (f *fakeCrawler) Crawl(_ context.Context, source *domain.Source, _ crawler.Options) *crawler.Result {
	f.mu.Lock()
	f.calls = append(f.calls, source.ID)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- source.ID
	}
	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("selector engine blew up")
	}
	if f.result != nil {
		return f.result
	}
	return &crawler.Result{Status: domain.JobStatusCompleted, PagesFetched: 1}
}

func (f *fakeCrawler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSyncer struct {
	mu     sync.Mutex
	calls  []syncer.Options
	result *syncer.Result
	err    error
}

func (f *fakeSyncer) Reconcile(_ context.Context, _ *domain.Source, _ []domain.ScrapedItem, opts syncer.Options) (*syncer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &syncer.Result{}, nil
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func activeSource(id string) *domain.Source {
	return &domain.Source{
		ID:       id,
		TenantID: "tenant-1",
		Name:     "Source " + id,
		Platform: domain.PlatformEBay,
		URL:      "https://www.ebay.com/sch/" + id,
		Active:   true,
	}
}

func newTestService(
	sources *fakeSourceStore,
	jobs *fakeJobRunStore,
	c *fakeCrawler,
	sy *fakeSyncer,
	maxConcurrent int,
) *scheduler.Service {
	return scheduler.New(sources, jobs, c, sy, scheduler.NewMemoryQueue(), maxConcurrent, logger.NewNoOp())
}

func TestTickDispatchesDueSources(t *testing.T) {
	a, b := activeSource("src-a"), activeSource("src-b")
	sources := newFakeSourceStore(a, b)
	sources.due = []*domain.Source{a, b}
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{
		result: &crawler.Result{
			Status:       domain.JobStatusCompleted,
			Items:        []domain.ScrapedItem{{SourceURL: "https://x/1", Title: "An Item"}},
			PagesFetched: 2,
		},
	}
	sy := &fakeSyncer{result: &syncer.Result{Created: 1}}

	svc := newTestService(sources, jobs, c, sy, 3)
	svc.Tick(context.Background())
	svc.Wait()

	assert.Equal(t, 2, c.callCount())
	assert.Equal(t, 2, sy.callCount())

	for _, id := range []string{"src-a", "src-b"} {
		status, ok := jobs.statusFor(id)
		require.True(t, ok, "no completed run for %s", id)
		assert.Equal(t, domain.JobStatusCompleted, status)

		lastErr, updated := sources.lastError(id)
		require.True(t, updated, "crawl state not updated for %s", id)
		assert.Nil(t, lastErr)
	}

	snap := svc.Metrics()
	assert.Equal(t, int64(2), snap.JobsCompleted)
	assert.Equal(t, int64(0), snap.JobsFailed)
	assert.Equal(t, int64(2), snap.ItemsFound)
	assert.Equal(t, int64(2), snap.ItemsCreated)
	assert.Equal(t, int64(4), snap.PagesFetched)
}

func TestTickRechecksDuePredicate(t *testing.T) {
	recent := time.Now().Add(-5 * time.Minute)
	notDue := activeSource("src-a")
	notDue.FrequencyMinutes = 60
	notDue.LastCrawledAt = &recent

	// A store that over-reports due sources must not cause early crawls.
	sources := newFakeSourceStore(notDue)
	sources.due = []*domain.Source{notDue}
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{result: &crawler.Result{Status: domain.JobStatusCompleted}}
	sy := &fakeSyncer{}

	svc := newTestService(sources, jobs, c, sy, 3)
	svc.Tick(context.Background())
	svc.Wait()

	assert.Equal(t, 0, c.callCount())
}

func TestTickSkipsSourceAlreadyInFlight(t *testing.T) {
	a := activeSource("src-a")
	sources := newFakeSourceStore(a)
	sources.due = []*domain.Source{a}
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{block: make(chan struct{}), started: make(chan string, 2)}
	sy := &fakeSyncer{}

	svc := newTestService(sources, jobs, c, sy, 3)
	svc.Tick(context.Background())
	<-c.started

	// A second tick while the job is in flight must not double-dispatch.
	svc.Tick(context.Background())

	close(c.block)
	svc.Wait()

	assert.Equal(t, 1, c.callCount())
}

func TestTriggerCrawlAlreadyRunning(t *testing.T) {
	a := activeSource("src-a")
	sources := newFakeSourceStore(a)
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{block: make(chan struct{}), started: make(chan string, 1)}
	sy := &fakeSyncer{}

	svc := newTestService(sources, jobs, c, sy, 3)

	require.NoError(t, svc.TriggerCrawl(context.Background(), "src-a", false))

	err := svc.TriggerCrawl(context.Background(), "src-a", false)
	assert.ErrorIs(t, err, scheduler.ErrAlreadyRunning)

	<-c.started
	close(c.block)
	svc.Wait()
}

func TestTriggerCrawlUnknownSource(t *testing.T) {
	svc := newTestService(newFakeSourceStore(), newFakeJobRunStore(), &fakeCrawler{}, &fakeSyncer{}, 3)

	err := svc.TriggerCrawl(context.Background(), "missing", false)
	assert.Error(t, err)
}

func TestTriggerCrawlAllSkipsInactive(t *testing.T) {
	a, b := activeSource("src-a"), activeSource("src-b")
	inactive := activeSource("src-c")
	inactive.Active = false

	sources := newFakeSourceStore(a, b, inactive)
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{}
	sy := &fakeSyncer{}

	svc := newTestService(sources, jobs, c, sy, 3)
	triggered, err := svc.TriggerCrawlAll(context.Background(), "tenant-1")
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, 2, triggered)
	assert.Equal(t, 2, c.callCount())
}

func TestFailedCrawlSkipsSync(t *testing.T) {
	a := activeSource("src-a")
	sources := newFakeSourceStore(a)
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{
		result: &crawler.Result{
			Status: domain.JobStatusFailed,
			Errors: []domain.CrawlError{{
				Type:    domain.CrawlErrorNetwork,
				Message: "connection refused",
				URL:     a.URL,
			}},
		},
	}
	sy := &fakeSyncer{}

	svc := newTestService(sources, jobs, c, sy, 3)
	require.NoError(t, svc.TriggerCrawl(context.Background(), "src-a", false))
	svc.Wait()

	// A failed crawl never reaches reconciliation; a stale snapshot of the
	// catalog must not be treated as the truth.
	assert.Equal(t, 0, sy.callCount())

	status, ok := jobs.statusFor("src-a")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusFailed, status)

	lastErr, updated := sources.lastError("src-a")
	require.True(t, updated)
	require.NotNil(t, lastErr)
	assert.Equal(t, "connection refused", *lastErr)

	snap := svc.Metrics()
	assert.Equal(t, int64(1), snap.JobsFailed)
}

func TestCompletedCrawlAllowsRemovals(t *testing.T) {
	a := activeSource("src-a")
	sources := newFakeSourceStore(a)
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{}
	sy := &fakeSyncer{}

	svc := newTestService(sources, jobs, c, sy, 3)
	require.NoError(t, svc.TriggerCrawl(context.Background(), "src-a", false))
	svc.Wait()

	sy.mu.Lock()
	defer sy.mu.Unlock()
	require.Len(t, sy.calls, 1)
	assert.True(t, sy.calls[0].AllowRemovals)
}

func TestSyncErrorFailsJob(t *testing.T) {
	a := activeSource("src-a")
	sources := newFakeSourceStore(a)
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{}
	sy := &fakeSyncer{err: errors.New("catalog unavailable")}

	svc := newTestService(sources, jobs, c, sy, 3)
	require.NoError(t, svc.TriggerCrawl(context.Background(), "src-a", false))
	svc.Wait()

	status, ok := jobs.statusFor("src-a")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusFailed, status)
}

func TestPanicRecordedAsFailed(t *testing.T) {
	a, b := activeSource("src-a"), activeSource("src-b")
	sources := newFakeSourceStore(a, b)
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{panics: true}
	sy := &fakeSyncer{}

	svc := newTestService(sources, jobs, c, sy, 3)
	require.NoError(t, svc.TriggerCrawl(context.Background(), "src-a", false))
	svc.Wait()

	status, ok := jobs.statusFor("src-a")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusFailed, status)

	// The scheduler survives the panic and keeps dispatching.
	c.panics = false
	require.NoError(t, svc.TriggerCrawl(context.Background(), "src-b", false))
	svc.Wait()

	status, ok = jobs.statusFor("src-b")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusCompleted, status)
}

func TestConcurrencyCap(t *testing.T) {
	a, b := activeSource("src-a"), activeSource("src-b")
	sources := newFakeSourceStore(a, b)
	sources.due = []*domain.Source{a, b}
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{block: make(chan struct{}), started: make(chan string, 2)}
	sy := &fakeSyncer{}

	svc := newTestService(sources, jobs, c, sy, 1)
	svc.Tick(context.Background())

	<-c.started

	// With a cap of one, the second job must not start while the first holds
	// the slot.
	select {
	case id := <-c.started:
		t.Fatalf("second job %s started past the concurrency cap", id)
	case <-time.After(100 * time.Millisecond):
	}

	close(c.block)
	svc.Wait()

	assert.Equal(t, 2, c.callCount())
}

func TestJobStatus(t *testing.T) {
	a := activeSource("src-a")
	sources := newFakeSourceStore(a)
	jobs := newFakeJobRunStore()
	c := &fakeCrawler{block: make(chan struct{}), started: make(chan string, 1)}
	sy := &fakeSyncer{}

	svc := newTestService(sources, jobs, c, sy, 3)

	status, err := svc.JobStatus(context.Background(), "src-a")
	require.NoError(t, err)
	assert.False(t, status.IsRunning)

	require.NoError(t, svc.TriggerCrawl(context.Background(), "src-a", false))
	<-c.started

	status, err = svc.JobStatus(context.Background(), "src-a")
	require.NoError(t, err)
	assert.True(t, status.IsRunning)

	close(c.block)
	svc.Wait()

	jobs.mu.Lock()
	jobs.latest = &domain.JobRun{ID: "run-1", SourceID: "src-a", Status: domain.JobStatusCompleted}
	jobs.mu.Unlock()

	status, err = svc.JobStatus(context.Background(), "src-a")
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, "run-1", status.LastRun.ID)
}
