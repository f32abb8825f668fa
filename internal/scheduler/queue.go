package scheduler

import (
	"sync"

	"github.com/jonesrussell/storesync/internal/crawler"
	"github.com/jonesrussell/storesync/internal/domain"
)

// Job is one queued crawl for one source.
type Job struct {
	Source *domain.Source
	Opts   crawler.Options
}

// JobQueue decouples due-source detection from dispatch so the scheduler
// logic stays portable across task-queue backends. Excess due sources queue
// here rather than being dropped.
type JobQueue interface {
	// Enqueue appends a job.
	Enqueue(job Job)
	// Dequeue pops the oldest job; ok is false when the queue is empty.
	Dequeue() (job Job, ok bool)
	// Len reports the number of queued jobs.
	Len() int
}

// MemoryQueue is the in-process JobQueue used by the scheduler command.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []Job
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue appends a job.
func (q *MemoryQueue) Enqueue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

// Dequeue pops the oldest job.
func (q *MemoryQueue) Dequeue() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return Job{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// Len reports the number of queued jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
