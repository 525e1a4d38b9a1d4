package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rendis/pdc/internal/api"
	"github.com/rendis/pdc/internal/scheduler"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		listen    string
		poolSize  int
		noMigrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, task workers and retention scheduler",
		Long: `Run the HTTP API with its asynchronous task workers and the artifact
retention scheduler. SIGHUP reloads the settings file: CORS origins and log
settings apply immediately, other changes are reported as needing a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listen
			}
			if cmd.Flags().Changed("pool-size") {
				cfg.PoolSize = poolSize
			}
			return runServe(cmd, opts, cfg, !noMigrate)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "TCP listen address (default from config, :8000)")
	cmd.Flags().IntVar(&poolSize, "pool-size", 0, "concurrent generation tasks")
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "do not apply database migrations on start")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions, cfg Config, migrate bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := opts.logger(cmd)
	a, err := newApp(ctx, cfg, logger, appOptions{persistence: true, runner: true, migrate: migrate})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	sched, err := scheduler.NewScheduler(a.store, cfg.Retention, logger)
	if err != nil {
		return fmt.Errorf("retention scheduler: %w", err)
	}

	handler := &reloadableHandler{}
	handler.Store(a.apiHandler(logger))
	httpSrv := api.NewHTTPServer(cfg.ListenAddr, handler, logger)

	if err := writePID(); err != nil {
		logger.Warn("cannot write pid file", "path", pidPath(), "error", err)
	} else {
		defer os.Remove(pidPath())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return a.watchReload(gctx, cmd, opts, handler) })

	logger.Info("pdc serving",
		"addr", cfg.ListenAddr,
		"llm_mode", cfg.LLM.Mode,
		"pool_size", cfg.PoolSize,
		"retention", cfg.Retention.Retention,
	)
	return g.Wait()
}

// apiHandler builds the HTTP handler for the app's current configuration.
func (a *app) apiHandler(logger *slog.Logger) http.Handler {
	deps := api.Deps{
		Generator: a.generator,
		Runner:    a.runner,
		Store:     a.store,
		Backend: api.BackendInfo{
			Mode:    a.cfg.LLM.Mode,
			Model:   a.cfg.LLM.Model(),
			BaseURL: a.cfg.LLM.BaseURL(),
		},
		BinDir:      a.cfg.BinDir,
		CORSOrigins: a.cfg.CORSOrigins,
		Logger:      logger,
	}
	if a.filters != nil {
		deps.Filters = a.filters
	}
	return api.NewServer(deps).Handler()
}

// watchReload re-reads the configuration on SIGHUP until ctx is done.
func (a *app) watchReload(ctx context.Context, cmd *cobra.Command, opts *rootOptions, h *reloadableHandler) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
		}

		old := a.cfg
		if err := opts.resolve(); err != nil {
			a.logger.Error("reload failed", "error", err)
			continue
		}
		next := opts.cfg
		diff := diffConfigs(old, next)
		if diff.HandlerChanged {
			a.cfg.CORSOrigins = next.CORSOrigins
			a.cfg.LogLevel = next.LogLevel
			a.cfg.LogFormat = next.LogFormat
			a.logger = opts.logger(cmd)
			h.Store(a.apiHandler(a.logger))
		}
		if len(diff.RestartNeeded) > 0 {
			a.logger.Warn("configuration changes need a restart", "fields", strings.Join(diff.RestartNeeded, ","))
		}
		a.logger.Info("configuration reloaded", "handler_swapped", diff.HandlerChanged)
	}
}

// reloadableHandler lets a reload replace the API handler without
// restarting the listener.
type reloadableHandler struct {
	current atomic.Pointer[http.Handler]
}

func (h *reloadableHandler) Store(next http.Handler) {
	h.current.Store(&next)
}

func (h *reloadableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*h.current.Load()).ServeHTTP(w, r)
}

func writePID() error {
	if err := os.MkdirAll(pdcDir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}
