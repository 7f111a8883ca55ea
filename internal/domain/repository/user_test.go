package repository

import (
	"reflect"
	"testing"
)

func sampleUser() *User {
	h := "$argon2id$..."
	return &User{
		ID: "u1", Username: "ana", PasswordHash: &h,
		Roles: []Role{
			{Name: "member", Permissions: []Permission{{Name: "users:read"}, {Name: "profile:write"}}},
			{Name: "admin", Permissions: []Permission{{Name: "users:read"}, {Name: "users:manage"}}},
		},
	}
}

func TestRoleAndPermissionNames(t *testing.T) {
	u := sampleUser()
	if got, want := u.RoleNames(), []string{"admin", "member"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("RoleNames = %v, want %v", got, want)
	}
	if got, want := u.PermissionNames(), []string{"profile:write", "users:manage", "users:read"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("PermissionNames = %v, want %v", got, want)
	}
}

func TestCloneIsDeep(t *testing.T) {
	u := sampleUser()
	cp := u.Clone()
	*cp.PasswordHash = "changed"
	cp.Roles[0].Permissions[0].Name = "changed"
	if *u.PasswordHash == "changed" || u.Roles[0].Permissions[0].Name == "changed" {
		t.Fatal("clone shares memory with original")
	}
}

func TestDisplayNameAndHasPassword(t *testing.T) {
	u := &User{Username: "ana"}
	if u.DisplayName() != "ana" || u.HasPassword() {
		t.Fatalf("unexpected: %q %v", u.DisplayName(), u.HasPassword())
	}
	u.Name = "Ana María"
	if u.DisplayName() != "Ana María" {
		t.Fatal("name should win over username")
	}
}
