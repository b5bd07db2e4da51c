package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/ksuid"

	"vlget/internal/domain"
	"vlget/internal/infra/logger"
)

// Runner executes one job end to end. pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, job *domain.Job) error
}

// Recorder persists terminal job states. store.PersistentStore satisfies
// it; a nil Recorder disables persistence.
type Recorder interface {
	Record(ctx context.Context, job *domain.Job) error
}

// Manager serializes job execution: one job runs at a time while the rest
// wait in FIFO order. Each running job gets its own cancellable context.
type Manager struct {
	mu        sync.RWMutex
	runner    Runner
	recorder  Recorder
	queue     []*domain.Job
	activeJob *domain.Job
	log       *logger.Logger

	newJobChan chan struct{}
}

func NewManager(runner Runner, recorder Recorder, log *logger.Logger) *Manager {
	return &Manager{
		runner:     runner,
		recorder:   recorder,
		log:        log,
		newJobChan: make(chan struct{}, 1),
	}
}

// Add enqueues a job and notifies the run loop. The manager owns the job's
// ID and status from here on.
func (m *Manager) Add(job *domain.Job) *domain.Job {
	job.ID = ksuid.New().String()
	job.Status = domain.StatusPending

	m.mu.Lock()
	m.queue = append(m.queue, job)
	m.mu.Unlock()

	// Signal the Start() loop that there is work to do
	select {
	case m.newJobChan <- struct{}{}:
	default:
		// Signal already pending, no need to block
	}

	return job
}

// Start drains the queue forever, sleeping on the signal channel when it
// is empty. Used by the server; returns when ctx is done.
func (m *Manager) Start(ctx context.Context) {
	for {
		next := m.nextPending()
		if next == nil {
			select {
			case <-m.newJobChan:
				continue
			case <-ctx.Done():
				return
			}
		}
		m.runJob(ctx, next)
	}
}

// RunPending drains the queue once and returns. Used by the CLI, where
// every job is enqueued before the loop starts.
func (m *Manager) RunPending(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		next := m.nextPending()
		if next == nil {
			return
		}
		m.runJob(ctx, next)
	}
}

func (m *Manager) nextPending() *domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, job := range m.queue {
		if job.Status == domain.StatusPending {
			return job
		}
	}
	return nil
}

func (m *Manager) runJob(ctx context.Context, job *domain.Job) {
	m.mu.Lock()
	m.activeJob = job
	jobCtx, cancel := context.WithCancel(ctx)
	job.CancelFunc = cancel
	job.Status = domain.StatusDownloading
	m.mu.Unlock()

	err := m.runner.Run(jobCtx, job)

	m.finalizeJob(job, err)
	cancel()
}

// ActiveJob allows the API to see what's currently running.
func (m *Manager) ActiveJob() *domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeJob
}

// Job searches the queue for a specific ID.
func (m *Manager) Job(id string) (*domain.Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, job := range m.queue {
		if job.ID == id {
			return job, true
		}
	}
	return nil, false
}

// Jobs returns a copy of the current queue slice.
func (m *Manager) Jobs() []*domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*domain.Job, len(m.queue))
	copy(jobs, m.queue)
	return jobs
}

// Cancel stops a pending or running job. Finished jobs are left alone.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.queue {
		if job.ID != id {
			continue
		}
		switch job.Status {
		case domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled:
			return false
		case domain.StatusPending:
			job.Status = domain.StatusCancelled
			return true
		}
		if job.CancelFunc != nil {
			job.CancelFunc()
		}
		return true
	}
	return false
}

func (m *Manager) finalizeJob(job *domain.Job, err error) {
	m.mu.Lock()

	switch {
	case err == nil:
		job.Status = domain.StatusCompleted
	case errors.Is(err, domain.ErrCancelled) || errors.Is(err, context.Canceled):
		job.Status = domain.StatusCancelled
		job.Error = "cancelled by user"
	default:
		job.Status = domain.StatusFailed
		job.Error = err.Error()
	}

	m.activeJob = nil
	m.mu.Unlock()

	if err != nil {
		m.log.Error("job %s (%s) finished with error: %v", job.ID, job.Title, err)
	} else {
		m.log.Info("job %s (%s) completed: %s", job.ID, job.Title, job.OutputPath)
	}

	if m.recorder != nil {
		if rerr := m.recorder.Record(context.Background(), job); rerr != nil {
			m.log.Error("failed to persist job %s: %v", job.ID, rerr)
		}
	}
}
