// Package store elige el identity store según la configuración.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/store/memory"
	"github.com/dropDatabas3/authority/internal/store/pg"
)

type Config struct {
	Driver   string
	DSN      string
	Postgres pg.Options
}

// Handle agrupa el repositorio y su cierre.
type Handle struct {
	Users repository.UserRepository
	// Memory es no-nil con driver memory (seeding en dev/tests).
	Memory *memory.Store
	// DB es no-nil con driver postgres.
	DB    *sql.DB
	close func() error
}

func (h *Handle) Close() error {
	if h == nil || h.close == nil {
		return nil
	}
	return h.close()
}

// Ping chequea la base; memory siempre está lista.
func (h *Handle) Ping(ctx context.Context) error {
	if h == nil || h.DB == nil {
		return nil
	}
	return h.DB.PingContext(ctx)
}

// Open abre el store configurado.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory", "mem":
		m := memory.New()
		return &Handle{Users: m, Memory: m}, nil
	case "postgres", "pg", "postgresql":
		s, err := pg.Open(ctx, cfg.DSN, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return &Handle{Users: s, DB: s.DB(), close: s.Close}, nil
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// PostgresOptions arma pg.Options desde los strings de config.
func PostgresOptions(maxOpen, maxIdle int, lifetime string) pg.Options {
	d, _ := time.ParseDuration(lifetime)
	return pg.Options{MaxOpenConns: maxOpen, MaxIdleConns: maxIdle, ConnMaxLifetime: d}
}
