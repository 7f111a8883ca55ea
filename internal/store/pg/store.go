// Package pg implementa repository.UserRepository sobre PostgreSQL usando
// database/sql con el driver stdlib de pgx.
//
// Esquema (ver migrations/postgres, aplicado con Migrate):
//
//	users(id uuid pk, email text unique, username text unique, name text,
//	      password_hash text null, active bool, superuser bool,
//	      provider text null, external_id text null, email_verified bool,
//	      provider_refresh_token text null, created_at, updated_at,
//	      unique(provider, external_id))
//	roles(id, name unique, description)
//	permissions(id, name unique, description)
//	role_permissions(role_id, permission_id)
//	user_roles(user_id, role_id)
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
	// sf colapsa lecturas concurrentes del mismo principal (refresh en ráfaga).
	sf singleflight.Group
}

var _ repository.UserRepository = (*Store)(nil)

// Options de pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open abre el pool con el driver "pgx". El ping es no bloqueante para el
// arranque: si falla se loguea y el servicio sigue.
func Open(ctx context.Context, dsn string, opt Options) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: open: %w", err)
	}
	if opt.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opt.MaxOpenConns)
	}
	if opt.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opt.MaxIdleConns)
	}
	if opt.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opt.ConnMaxLifetime)
	}

	log := logger.From(ctx).With(logger.Component("store.pg"))
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		log.Warn("pg startup ping failed", logger.Err(err))
	} else {
		log.Info("pg pool ready", logger.Int("max_open_conns", opt.MaxOpenConns))
	}
	return New(db), nil
}

// New envuelve un *sql.DB existente (tests con sqlmock).
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// mapErr traduce errores del driver a errores de dominio.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// DB expone el pool para métricas de database/sql.
func (s *Store) DB() *sql.DB { return s.db }
