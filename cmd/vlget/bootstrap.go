package main

import (
	"fmt"

	"vlget/internal/acquire"
	"vlget/internal/app"
	"vlget/internal/fetch"
	"vlget/internal/infra/config"
	"vlget/internal/infra/logger"
	"vlget/internal/mux"
	"vlget/internal/pipeline"
	"vlget/internal/queue"
	"vlget/internal/resolver/viewlift"
	"vlget/internal/store"
)

// runtime bundles everything a command needs after bootstrap.
type runtime struct {
	cfg   *config.Config
	log   *logger.Logger
	app   *app.Context
	pipe  *pipeline.Pipeline
	queue *queue.Manager
	store *store.PersistentStore
}

func buildRuntime(configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fc := fetch.New(fetch.Options{
		Attempts:  cfg.Download.Attempts,
		RateLimit: cfg.Download.RateLimit,
	}, log)

	orch := acquire.New(fc, cfg.Download.TempDir, cfg.Download.Concurrency, log)
	res := viewlift.New(cfg.API, fc, log)

	var muxer pipeline.Muxer
	if m, err := mux.New(log); err != nil {
		log.Warn("%v; outputs will stay unmuxed", err)
	} else {
		muxer = m
	}

	pipe := pipeline.New(cfg, res, orch, muxer, fc, log)

	st, err := store.New(cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}

	mgr := queue.NewManager(pipe, st, log)

	appCtx := app.NewContext(cfg, log)
	appCtx.Queue = mgr
	appCtx.Builder = pipe
	appCtx.History = st

	return &runtime{
		cfg:   cfg,
		log:   log,
		app:   appCtx,
		pipe:  pipe,
		queue: mgr,
		store: st,
	}, nil
}

func (rt *runtime) Close() {
	if rt.store != nil {
		rt.store.Close()
	}
}
