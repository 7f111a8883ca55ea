package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authority/internal/config"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

type globals struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	g := &globals{
		configPath: envOr("AUTHORITY_CONFIG", ""),
		envFile:    envOr("AUTHORITY_ENV_FILE", ".env"),
	}

	root := &cobra.Command{
		Use:           "authority",
		Short:         "OAuth2 authorization server y token authority",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", g.configPath, "Path al YAML de config (env AUTHORITY_CONFIG)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", g.envFile, "Archivo .env opcional (env AUTHORITY_ENV_FILE)")

	root.AddCommand(
		newServeCmd(g),
		newMigrateCmd(g),
		newAdminCmd(g),
		newPKCECmd(),
		newHashPasswordCmd(g),
		newTokenCmd(g),
	)
	return root
}

// load carga .env (si existe), la config y el logger.
func (g *globals) load(ctx context.Context) (*config.Config, context.Context, error) {
	if g.envFile != "" {
		// .env es opcional; sin archivo seguimos con el entorno del proceso.
		_ = godotenv.Load(g.envFile)
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, ctx, fmt.Errorf("config: %w", err)
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	})
	return cfg, logger.ToContext(ctx, logger.L()), nil
}
