package app

import (
	"context"

	"vlget/internal/domain"
	"vlget/internal/infra/config"
	"vlget/internal/infra/logger"
	"vlget/internal/store"
)

// Queue is what the API layer needs from the queue manager, without
// importing the queue package.
type Queue interface {
	Add(job *domain.Job) *domain.Job
	Jobs() []*domain.Job
	Job(id string) (*domain.Job, bool)
	ActiveJob() *domain.Job
	Cancel(id string) bool
}

// JobBuilder turns a pasted content page URL into ready-to-queue jobs.
// pipeline.Pipeline satisfies it.
type JobBuilder interface {
	BuildJobs(ctx context.Context, pageURL string, opts domain.SelectOptions) ([]*domain.Job, error)
}

// History exposes the acquisition record to the API layer.
type History interface {
	List(ctx context.Context, limit int) ([]*store.Acquisition, error)
	Get(ctx context.Context, id string) (*store.Acquisition, error)
}

// Context holds the core environment and shared resources for vlget.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Queue   Queue
	Builder JobBuilder
	History History
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
