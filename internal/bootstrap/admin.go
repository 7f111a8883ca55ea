// Package bootstrap siembra el catálogo RBAC y el primer administrador.
package bootstrap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/rbac"
)

const minPasswordLen = 10

// DefaultRoles es el catálogo base. En postgres lo siembra la migración 0001.
func DefaultRoles() []repository.Role {
	return []repository.Role{
		{
			Name:        rbac.RoleAdmin,
			Description: "Administración de principals",
			Permissions: []repository.Permission{
				{Name: rbac.PermUsersRead, Description: "Consultar principals"},
				{Name: rbac.PermUsersManage, Description: "Modificar principals"},
			},
		},
		{Name: rbac.RoleMember, Description: "Usuario estándar"},
	}
}

// RoleSeeder lo implementan los stores sin migraciones (memory).
type RoleSeeder interface {
	SeedRoles(roles ...repository.Role)
}

// AdminStore es lo mínimo que necesita EnsureAdmin.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	Create(ctx context.Context, in *repository.User) (*repository.User, error)
	AssignRoles(ctx context.Context, userID string, names ...string) error
}

type Hasher interface {
	Hash(plain string) (string, error)
}

// EnsureRoles siembra DefaultRoles si el store lo soporta.
func EnsureRoles(s any) bool {
	seeder, ok := s.(RoleSeeder)
	if !ok {
		return false
	}
	seeder.SeedRoles(DefaultRoles()...)
	return true
}

// AdminConfig configura EnsureAdmin.
type AdminConfig struct {
	Email    string
	Password string
}

// EnsureAdmin crea un usuario local con rol admin si el email no existe.
// Si ya existe no toca ni su password ni sus roles. created indica si hubo alta.
func EnsureAdmin(ctx context.Context, s AdminStore, h Hasher, cfg AdminConfig) (created bool, err error) {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if err := validateAdmin(email, cfg.Password); err != nil {
		return false, err
	}

	log := logger.From(ctx).With(logger.Component("bootstrap"))
	if _, err := s.GetByEmail(ctx, email); err == nil {
		log.Info("admin user present, skipping bootstrap", logger.MaskedEmail(email))
		return false, nil
	} else if !repository.IsNotFound(err) {
		return false, fmt.Errorf("bootstrap: lookup admin: %w", err)
	}

	hash, err := h.Hash(cfg.Password)
	if err != nil {
		return false, fmt.Errorf("bootstrap: hash password: %w", err)
	}
	u, err := s.Create(ctx, &repository.User{
		Email:         email,
		Username:      usernameFrom(email),
		PasswordHash:  &hash,
		Active:        true,
		EmailVerified: true,
		Provider:      "local",
	})
	if err != nil {
		return false, fmt.Errorf("bootstrap: create admin: %w", err)
	}
	if err := s.AssignRoles(ctx, u.ID, rbac.RoleAdmin); err != nil {
		return false, fmt.Errorf("bootstrap: assign admin role: %w", err)
	}
	log.Info("admin user created", logger.UserID(u.ID), logger.MaskedEmail(email))
	return true, nil
}

func validateAdmin(email, password string) error {
	var errs []error
	if email == "" || !strings.Contains(email, "@") {
		errs = append(errs, errors.New("invalid admin email"))
	}
	if len(password) < minPasswordLen {
		errs = append(errs, fmt.Errorf("admin password must be at least %d characters", minPasswordLen))
	}
	return errors.Join(errs...)
}

func usernameFrom(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return email
	}
	return local
}

// PasswordReader lee un secreto sin eco (term.ReadPassword en una TTY).
type PasswordReader func() ([]byte, error)

// PromptAdmin pide email y password (con confirmación) por consola.
func PromptAdmin(in io.Reader, out io.Writer, readPassword PasswordReader) (AdminConfig, error) {
	reader := bufio.NewReader(in)

	fmt.Fprint(out, "Admin email: ")
	email, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return AdminConfig{}, err
	}
	email = strings.TrimSpace(email)

	fmt.Fprintf(out, "Admin password (min %d chars): ", minPasswordLen)
	pw, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return AdminConfig{}, err
	}
	fmt.Fprint(out, "Confirm password: ")
	confirm, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return AdminConfig{}, err
	}
	if string(pw) != string(confirm) {
		return AdminConfig{}, errors.New("passwords do not match")
	}

	cfg := AdminConfig{Email: email, Password: string(pw)}
	if err := validateAdmin(strings.ToLower(email), cfg.Password); err != nil {
		return AdminConfig{}, err
	}
	return cfg, nil
}
