package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authority/internal/app"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, ctx, err := g.load(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.L().Sync() }()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.From(ctx).Warn("close failed", logger.Err(err))
				}
			}()
			return a.Run(ctx)
		},
	}
}
