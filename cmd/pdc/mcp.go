package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	pdcmcp "github.com/rendis/pdc/pkg/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	var noStore bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := opts.logger(cmd)
			a, err := newApp(ctx, opts.cfg, logger, appOptions{persistence: !noStore, runner: true, migrate: true})
			if err != nil {
				return err
			}
			defer a.Close()

			deps := pdcmcp.ServerDeps{
				Generator: a.generator,
				Runner:    a.runner,
				Store:     a.store,
				BinDir:    opts.cfg.BinDir,
				Version:   version,
				Logger:    logger,
			}
			if a.filters != nil {
				deps.Filters = a.filters
			}
			logger.Info("mcp server starting", "transport", "stdio")
			return pdcmcp.NewServer(deps).Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&noStore, "no-store", false, "run without the artifact database")
	return cmd
}
