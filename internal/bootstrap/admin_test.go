package bootstrap

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/rbac"
	"github.com/dropDatabas3/authority/internal/security/password"
	"github.com/dropDatabas3/authority/internal/store/memory"
)

func cheapHasher() *password.Hasher {
	return password.NewHasher(password.Params{Memory: 1024, Time: 1, Parallelism: 1})
}

func TestEnsureAdminCreatesOnce(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.True(t, EnsureRoles(s))
	h := cheapHasher()

	created, err := EnsureAdmin(ctx, s, h, AdminConfig{Email: " Root@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.True(t, created)

	u, err := s.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, u.Active)
	assert.Equal(t, []string{rbac.RoleAdmin}, u.RoleNames())
	assert.ElementsMatch(t, []string{rbac.PermUsersRead, rbac.PermUsersManage}, u.PermissionNames())
	require.NotNil(t, u.PasswordHash)
	assert.True(t, h.Verify("correct-horse", *u.PasswordHash))

	created, err = EnsureAdmin(ctx, s, h, AdminConfig{Email: "root@example.com", Password: "another-pass"})
	require.NoError(t, err)
	assert.False(t, created)
	u, err = s.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, h.Verify("correct-horse", *u.PasswordHash))
}

func TestEnsureAdminValidation(t *testing.T) {
	s := memory.New()
	EnsureRoles(s)
	_, err := EnsureAdmin(context.Background(), s, cheapHasher(), AdminConfig{Email: "nope", Password: "short"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid admin email")
	assert.Contains(t, err.Error(), "at least 10")
}

func TestEnsureAdminWithoutRolesFails(t *testing.T) {
	_, err := EnsureAdmin(context.Background(), memory.New(), cheapHasher(), AdminConfig{Email: "a@b.io", Password: "0123456789"})
	assert.Error(t, err)
}

func TestEnsureRolesIgnoresUnsupportedStores(t *testing.T) {
	assert.False(t, EnsureRoles(struct{}{}))
}

func TestPromptAdmin(t *testing.T) {
	answers := [][]byte{[]byte("s3cret-pass-1"), []byte("s3cret-pass-1")}
	read := func() ([]byte, error) {
		v := answers[0]
		answers = answers[1:]
		return v, nil
	}
	var out bytes.Buffer
	cfg, err := PromptAdmin(strings.NewReader("ops@example.com\n"), &out, read)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", cfg.Email)
	assert.Equal(t, "s3cret-pass-1", cfg.Password)
	assert.Contains(t, out.String(), "Admin email")

	mismatch := [][]byte{[]byte("s3cret-pass-1"), []byte("s3cret-pass-2")}
	read = func() ([]byte, error) {
		v := mismatch[0]
		mismatch = mismatch[1:]
		return v, nil
	}
	_, err = PromptAdmin(strings.NewReader("ops@example.com\n"), &out, read)
	assert.EqualError(t, err, "passwords do not match")
}
