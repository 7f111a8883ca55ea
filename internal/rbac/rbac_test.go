package rbac

import (
	"errors"
	"testing"

	"github.com/dropDatabas3/authority/internal/apperr"
)

type principal struct{ roles, perms []string }

func (p principal) RoleNames() []string       { return p.roles }
func (p principal) PermissionNames() []string { return p.perms }

func TestRequirePermissionsAll(t *testing.T) {
	g, err := RequirePermissions("users:manage")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Check(principal{perms: []string{"users:read"}}); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("want AuthorizationError, got %v", err)
	}

	g2, _ := RequirePermissions("users:read", "users:manage")
	if err := g2.Check(principal{perms: []string{"users:read"}}); err == nil {
		t.Fatal("missing one permission must fail")
	}
	if err := g2.Check(principal{perms: []string{"users:manage", "users:read", "extra"}}); err != nil {
		t.Fatalf("superset must pass: %v", err)
	}
}

func TestRequireRolesAny(t *testing.T) {
	g, err := RequireRoles("admin", "member")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Check(principal{roles: []string{"member"}}); err != nil {
		t.Fatalf("member must pass: %v", err)
	}
	if err := g.Check(principal{roles: []string{"guest"}}); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("guest must be rejected, got %v", err)
	}
	if err := g.Check(principal{}); err == nil {
		t.Fatal("no roles must be rejected")
	}
}

func TestGuardNormalizesCase(t *testing.T) {
	g := MustRequireRoles(" Admin ")
	if err := g.Check(principal{roles: []string{"ADMIN"}}); err != nil {
		t.Fatalf("case-insensitive match expected: %v", err)
	}
}

func TestZeroRequirementsFailAtConstruction(t *testing.T) {
	if _, err := RequireRoles(); !errors.Is(err, ErrNoRequirements) {
		t.Fatalf("want ErrNoRequirements, got %v", err)
	}
	if _, err := RequirePermissions(); !errors.Is(err, ErrNoRequirements) {
		t.Fatalf("want ErrNoRequirements, got %v", err)
	}
	if _, err := RequirePermissions("users:read", "  "); !errors.Is(err, ErrNoRequirements) {
		t.Fatalf("blank entry must be rejected, got %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("MustRequirePermissions() must panic")
		}
	}()
	MustRequirePermissions()
}

func TestCheckNilSubjectAndStatus(t *testing.T) {
	g := MustRequirePermissions(PermUsersRead)
	err := g.Check(nil)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Status() != 403 {
		t.Fatalf("want 403 apperr, got %v", err)
	}
	err = g.Check(principal{})
	if !errors.As(err, &ae) {
		t.Fatal("want apperr")
	}
	if missing, _ := ae.Details["missing"].([]string); len(missing) != 1 || missing[0] != PermUsersRead {
		t.Fatalf("missing detail = %v", ae.Details["missing"])
	}
}
