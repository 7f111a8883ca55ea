// Package rbac contiene guards puros sobre un principal ya materializado.
// Nunca hacen I/O: los roles y permisos llegan resueltos desde el store.
package rbac

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/authority/internal/apperr"
)

// Roles sembrados al bootstrap.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Permisos.
const (
	PermUsersRead   = "users:read"
	PermUsersManage = "users:manage"
)

var ErrNoRequirements = errors.New("rbac: guard needs at least one non-empty requirement")

// Subject es lo que un guard necesita del principal.
type Subject interface {
	RoleNames() []string
	PermissionNames() []string
}

type mode int

const (
	anyRole mode = iota
	allPermissions
)

// Guard es un predicado inmutable, construido una sola vez al armar rutas.
type Guard struct {
	mode     mode
	required []string
}

// RequireRoles pasa si el principal tiene AL MENOS UNO de los roles.
func RequireRoles(roles ...string) (*Guard, error) {
	return newGuard(anyRole, roles)
}

// RequirePermissions pasa solo si el principal tiene TODOS los permisos.
func RequirePermissions(perms ...string) (*Guard, error) {
	return newGuard(allPermissions, perms)
}

// MustRequireRoles es RequireRoles para tablas de rutas; panic si está mal configurado.
func MustRequireRoles(roles ...string) *Guard {
	g, err := RequireRoles(roles...)
	if err != nil {
		panic(err)
	}
	return g
}

// MustRequirePermissions es RequirePermissions con panic ante mala configuración.
func MustRequirePermissions(perms ...string) *Guard {
	g, err := RequirePermissions(perms...)
	if err != nil {
		panic(err)
	}
	return g
}

func newGuard(m mode, in []string) (*Guard, error) {
	if len(in) == 0 {
		return nil, ErrNoRequirements
	}
	req := make([]string, 0, len(in))
	for _, v := range in {
		n := norm(v)
		if n == "" {
			return nil, ErrNoRequirements
		}
		req = append(req, n)
	}
	return &Guard{mode: m, required: req}, nil
}

// Check devuelve nil si el principal cumple; si no, AuthorizationError (403).
func (g *Guard) Check(s Subject) error {
	if s == nil {
		return apperr.Authorization("principal required")
	}
	switch g.mode {
	case anyRole:
		have := toSet(s.RoleNames())
		for _, r := range g.required {
			if _, ok := have[r]; ok {
				return nil
			}
		}
		return apperr.Authorization("insufficient role").WithDetail("required_any", g.Required())
	default:
		have := toSet(s.PermissionNames())
		var missing []string
		for _, p := range g.required {
			if _, ok := have[p]; !ok {
				missing = append(missing, p)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		return apperr.Authorization("insufficient permissions").WithDetail("missing", missing)
	}
}

// Required devuelve una copia de los requisitos normalizados.
func (g *Guard) Required() []string {
	return append([]string(nil), g.required...)
}

func (g *Guard) String() string {
	if g.mode == anyRole {
		return fmt.Sprintf("roles(any: %s)", strings.Join(g.required, ","))
	}
	return fmt.Sprintf("permissions(all: %s)", strings.Join(g.required, ","))
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func toSet(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[norm(x)] = struct{}{}
	}
	return m
}
