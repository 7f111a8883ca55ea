package repository

import (
	"context"
	"sort"
	"time"
)

// Permission es un permiso atómico, ej "users:read".
type Permission struct {
	ID          string
	Name        string
	Description string
}

// Role agrupa permisos. Se siembran al bootstrap y no cambian en operación normal.
type Role struct {
	ID          string
	Name        string
	Description string
	Permissions []Permission
}

// User es el principal. PasswordHash es nil en cuentas solo-provider.
type User struct {
	ID           string
	Email        string
	Username     string
	Name         string
	PasswordHash *string
	Active       bool
	Superuser    bool

	Provider             string
	ExternalID           string
	EmailVerified        bool
	ProviderRefreshToken string

	Roles     []Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword indica si la cuenta admite login local.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// DisplayName es el "name" que viaja en el access token.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// RoleNames devuelve el set de nombres de rol, ordenado.
func (u *User) RoleNames() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, r.Name)
	}
	sort.Strings(out)
	return out
}

// PermissionNames devuelve la unión de permisos de todos los roles, sin duplicados.
func (u *User) PermissionNames() []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range u.Roles {
		for _, p := range r.Permissions {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			out = append(out, p.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Clone copia profunda, para que los stores no compartan slices con el caller.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.PasswordHash != nil {
		h := *u.PasswordHash
		cp.PasswordHash = &h
	}
	cp.Roles = make([]Role, len(u.Roles))
	for i, r := range u.Roles {
		cp.Roles[i] = r
		cp.Roles[i].Permissions = append([]Permission(nil), r.Permissions...)
	}
	return &cp
}

// ExternalIdentity son los datos que el orchestrator obtiene del IdP.
type ExternalIdentity struct {
	Provider             string
	ExternalID           string
	Email                string
	EmailVerified        bool
	Name                 string
	ProviderRefreshToken string
}

// UserRepository es el contrato completo del identity store.
type UserRepository interface {
	// GetByEmail busca por email (case-insensitive). ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID busca por ID. ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByExternal busca por (provider, external_id). ErrNotFound si no existe.
	GetByExternal(ctx context.Context, provider, externalID string) (*User, error)

	// CreateOrUpdateExternal es un upsert idempotente keyed por provider+external_id.
	// Si no hay identidad pero existe un usuario con el mismo email verificado, la
	// vincula. Concurrentemente, a lo sumo una llamada crea el usuario; las
	// perdedoras reciben ErrConflict o el usuario existente con isNew=false.
	CreateOrUpdateExternal(ctx context.Context, in ExternalIdentity) (u *User, isNew bool, err error)

	// Create inserta un usuario local. ErrConflict si email/username ya existen.
	Create(ctx context.Context, u *User) (*User, error)

	// Update persiste email, username, name, password, active, superuser y datos del provider.
	Update(ctx context.Context, u *User) error

	// AssignRoles reemplaza los roles del usuario por los nombrados (deben existir).
	AssignRoles(ctx context.Context, userID string, roles ...string) error
}
