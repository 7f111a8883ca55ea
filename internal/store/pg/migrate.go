package pg

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// Plan lista los archivos a ejecutar para action (up|down). Los up corren en
// orden ascendente, los down al revés. steps > 0 limita la cantidad.
func Plan(fsys fs.FS, action string, steps int) ([]string, error) {
	var suffix string
	switch strings.ToLower(action) {
	case "", "up":
		suffix = "_up.sql"
	case "down":
		suffix = "_down.sql"
	default:
		return nil, fmt.Errorf("migrate: unknown action %q (up|down)", action)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("migrate: read dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	if suffix == "_down.sql" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if steps > 0 && steps < len(out) {
		out = out[:steps]
	}
	return out, nil
}

// Migrate ejecuta el plan contra dsn con un pool pgx dedicado.
func Migrate(ctx context.Context, dsn string, fsys fs.FS, action string, steps int) ([]string, error) {
	files, err := Plan(fsys, action, steps)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: pgxpool: %w", err)
	}
	defer pool.Close()

	log := logger.From(ctx).With(logger.Component("store.pg"), logger.Op("migrate"))
	applied := make([]string, 0, len(files))
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return applied, fmt.Errorf("migrate: read %s: %w", f, err)
		}
		start := time.Now()
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("migrate: exec %s: %w", f, err)
		}
		log.Info("migration applied", logger.String("file", f), logger.DurationMs(time.Since(start).Milliseconds()))
		applied = append(applied, f)
	}
	return applied, nil
}
