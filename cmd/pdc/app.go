package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/pdc/internal/expressions"
	"github.com/rendis/pdc/internal/jobs"
	"github.com/rendis/pdc/internal/llm"
	"github.com/rendis/pdc/internal/objectstore"
	"github.com/rendis/pdc/internal/pipeline"
	"github.com/rendis/pdc/internal/store"
	"github.com/rendis/pdc/internal/streaming"
	"github.com/rendis/pdc/internal/validation"
)

// app is the wired dependency graph shared by the commands.
type app struct {
	cfg       Config
	logger    *slog.Logger
	backend   llm.Backend
	generator *pipeline.Generator

	// Set when built with persistence.
	db      *store.SQLStore
	store   store.Store
	objects objectstore.Store
	filters *expressions.CELEngine

	// Set when built with a runner.
	hub    *streaming.MemoryHub
	pool   *jobs.WorkerPool
	runner *jobs.Runner
}

type appOptions struct {
	persistence bool
	runner      bool
	migrate     bool
}

func newApp(ctx context.Context, cfg Config, logger *slog.Logger, opts appOptions) (*app, error) {
	backend, err := llm.NewBackend(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("llm backend: %w", err)
	}
	specs, err := validation.NewSpecValidator(logger)
	if err != nil {
		return nil, fmt.Errorf("spec validator: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		backend:   backend,
		generator: pipeline.NewGenerator(backend, specs, validation.DrawioValidator{}, logger),
	}
	logger.Debug("llm backend ready", "mode", cfg.LLM.Mode, "backend", backend.Name())

	if opts.persistence {
		if err := a.openPersistence(ctx, opts.migrate); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	if opts.runner {
		a.hub = streaming.NewMemoryHub()
		a.pool = jobs.NewWorkerPool(cfg.PoolSize, logger)
		a.runner, err = jobs.NewRunner(a.generator, a.pool, jobs.RunnerDeps{
			Store:    a.store,
			Objects:  a.objects,
			Hub:      a.hub,
			Logger:   logger,
			MaxTasks: cfg.MaxTasks,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("task runner: %w", err)
		}
	}
	return a, nil
}

func (a *app) openPersistence(ctx context.Context, migrate bool) error {
	if err := ensureDBDir(a.cfg.DatabaseURL); err != nil {
		return err
	}
	db, err := store.Open(a.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.db = db
	if migrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
	}

	cached, err := store.NewCachedStore(db, a.cfg.CacheSize)
	if err != nil {
		return fmt.Errorf("artifact cache: %w", err)
	}
	a.store = cached

	a.objects, err = objectstore.New(a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("object storage: %w", err)
	}

	a.filters, err = expressions.NewCELEngine()
	if err != nil {
		return fmt.Errorf("filter engine: %w", err)
	}
	a.logger.Info("store ready", "dialect", db.Dialect(), "object_storage", a.cfg.Storage.Mode)
	return nil
}

// Close shuts the pool down first so running tasks can still persist.
func (a *app) Close() error {
	if a.pool != nil {
		a.pool.Shutdown()
	}
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// ensureDBDir creates the parent directory of a local database file.
func ensureDBDir(dsn string) error {
	if strings.Contains(dsn, "://") {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}
