package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	tokens "github.com/dropDatabas3/authority/internal/security/token"
)

const sharedReadTimeout = 5 * time.Second

const userCols = `id, email, username, name, password_hash, active, superuser,
       provider, external_id, email_verified, provider_refresh_token, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (*repository.User, error) {
	var (
		u                          repository.User
		name, hash, prov, ext, prt sql.NullString
	)
	if err := r.Scan(&u.ID, &u.Email, &u.Username, &name, &hash, &u.Active, &u.Superuser,
		&prov, &ext, &u.EmailVerified, &prt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Name = name.String
	if hash.Valid {
		h := hash.String
		u.PasswordHash = &h
	}
	u.Provider = prov.String
	u.ExternalID = ext.String
	u.ProviderRefreshToken = prt.String
	return &u, nil
}

// ---------- LECTURAS ----------

func (s *Store) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return s.getOne(ctx, `SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

// GetByID comparte la query entre callers concurrentes. La query corre con su
// propio timeout, desligada del ctx del primer caller; cada caller espera
// solo hasta su propio ctx.
func (s *Store) GetByID(ctx context.Context, id string) (*repository.User, error) {
	ch := s.sf.DoChan("id:"+id, func() (any, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		return s.getByID(qctx, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*repository.User).Clone(), nil
	}
}

// getByID lee sin singleflight; se usa después de escribir.
func (s *Store) getByID(ctx context.Context, id string) (*repository.User, error) {
	return s.getOne(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (s *Store) GetByExternal(ctx context.Context, provider, externalID string) (*repository.User, error) {
	return s.getOne(ctx, `SELECT `+userCols+` FROM users WHERE provider = $1 AND external_id = $2`, provider, externalID)
}

// getOne lee el usuario y materializa roles + permisos antes de devolverlo.
func (s *Store) getOne(ctx context.Context, q string, args ...any) (*repository.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	roles, err := s.loadRoles(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return u, nil
}

// ---------- UPSERT EXTERNO ----------

func (s *Store) CreateOrUpdateExternal(ctx context.Context, in repository.ExternalIdentity) (*repository.User, bool, error) {
	if in.Provider == "" || in.ExternalID == "" || in.Email == "" {
		return nil, false, fmt.Errorf("%w: provider, external id and email are required", repository.ErrInvalidInput)
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	// 1) identidad existente
	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE provider = $1 AND external_id = $2 FOR UPDATE`,
		in.Provider, in.ExternalID).Scan(&id)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `
UPDATE users SET email_verified = $2,
       provider_refresh_token = COALESCE($3, provider_refresh_token),
       name = COALESCE(NULLIF(name, ''), $4),
       updated_at = now()
 WHERE id = $1`, id, in.EmailVerified, nullStr(in.ProviderRefreshToken), in.Name); err != nil {
			return nil, false, mapErr(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		u, err := s.getByID(ctx, id)
		return u, false, err
	case err != sql.ErrNoRows:
		return nil, false, mapErr(err)
	}

	// 2) usuario con el mismo email
	var linked sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT id, external_id FROM users WHERE lower(email) = $1 FOR UPDATE`, email).Scan(&id, &linked)
	switch {
	case err == nil:
		if !in.EmailVerified || linked.Valid {
			return nil, false, fmt.Errorf("%w: email %s already registered", repository.ErrConflict, email)
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE users SET provider = $2, external_id = $3, email_verified = true,
       provider_refresh_token = $4, updated_at = now()
 WHERE id = $1`, id, in.Provider, in.ExternalID, nullStr(in.ProviderRefreshToken)); err != nil {
			return nil, false, mapErr(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		u, err := s.getByID(ctx, id)
		return u, false, err
	case err != sql.ErrNoRows:
		return nil, false, mapErr(err)
	}

	// 3) alta; la unique (provider, external_id) resuelve la carrera
	username, err := s.freeUsername(ctx, tx, email)
	if err != nil {
		return nil, false, err
	}
	err = tx.QueryRowContext(ctx, `
INSERT INTO users (id, email, username, name, active, superuser, provider, external_id,
                   email_verified, provider_refresh_token, created_at, updated_at)
VALUES ($1, $2, $3, $4, true, false, $5, $6, $7, $8, now(), now())
ON CONFLICT (provider, external_id) DO NOTHING
RETURNING id`,
		uuid.NewString(), email, username, in.Name, in.Provider, in.ExternalID,
		in.EmailVerified, nullStr(in.ProviderRefreshToken)).Scan(&id)
	if err == sql.ErrNoRows {
		// otro request ganó la carrera
		_ = tx.Rollback()
		u, err := s.GetByExternal(ctx, in.Provider, in.ExternalID)
		return u, false, err
	}
	if err != nil {
		return nil, false, mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, mapErr(err)
	}
	u, err := s.getByID(ctx, id)
	return u, err == nil, err
}

func (s *Store) freeUsername(ctx context.Context, tx *sql.Tx, email string) (string, error) {
	base := email
	if at := strings.IndexByte(base, '@'); at > 0 {
		base = base[:at]
	}
	var taken bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(username) = lower($1))`, base).Scan(&taken); err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}
	suffix, err := tokens.GenerateOpaqueToken(4)
	if err != nil {
		return "", err
	}
	return base + "-" + strings.ToLower(suffix), nil
}

// ---------- ESCRITURAS ----------

func (s *Store) Create(ctx context.Context, in *repository.User) (*repository.User, error) {
	if in == nil || in.Email == "" || in.Username == "" {
		return nil, fmt.Errorf("%w: email and username are required", repository.ErrInvalidInput)
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, email, username, name, password_hash, active, superuser, provider,
                   external_id, email_verified, provider_refresh_token, created_at, updated_at)
VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())`,
		id, in.Email, in.Username, in.Name, nullPtr(in.PasswordHash), in.Active, in.Superuser,
		nullStr(in.Provider), nullStr(in.ExternalID), in.EmailVerified, nullStr(in.ProviderRefreshToken))
	if err != nil {
		return nil, mapErr(err)
	}
	return s.getByID(ctx, id)
}

func (s *Store) Update(ctx context.Context, u *repository.User) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE users SET email = lower($2), username = $3, name = $4, password_hash = $5, active = $6,
       superuser = $7, provider = $8, external_id = $9, email_verified = $10,
       provider_refresh_token = $11, updated_at = now()
 WHERE id = $1`,
		u.ID, u.Email, u.Username, u.Name, nullPtr(u.PasswordHash), u.Active, u.Superuser,
		nullStr(u.Provider), nullStr(u.ExternalID), u.EmailVerified, nullStr(u.ProviderRefreshToken))
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
