package oauth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/cache"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
)

func loggedIn(t *testing.T, f *fixture) *TokenResult {
	t.Helper()
	f.seedLocal(t, testEmail, true)
	res, err := f.svc.Exchange(context.Background(), localExchange(f.localCode(t, ""), ""))
	require.NoError(t, err)
	return res
}

func TestRefreshYieldsDistinctTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := loggedIn(t, f)

	r1, err := f.svc.Refresh(ctx, RefreshRequest{GrantType: GrantRefreshToken, RefreshToken: start.Tokens.RefreshToken})
	require.NoError(t, err)
	r2, err := f.svc.Refresh(ctx, RefreshRequest{GrantType: GrantRefreshToken, RefreshToken: r1.Tokens.RefreshToken})
	require.NoError(t, err)

	all := []string{
		start.Tokens.AccessToken, start.Tokens.RefreshToken,
		r1.Tokens.AccessToken, r1.Tokens.RefreshToken,
		r2.Tokens.AccessToken, r2.Tokens.RefreshToken,
	}
	seen := map[string]bool{}
	for _, tok := range all {
		assert.False(t, seen[tok], "token repeated")
		seen[tok] = true
	}
	assert.Equal(t, start.UserID, r2.UserID)
	assert.Equal(t, DefaultScope, r2.Tokens.Scope)
}

func TestRefreshSameTokenTwiceWithoutStrictMode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := loggedIn(t, f)

	a, err := f.svc.Refresh(ctx, RefreshRequest{RefreshToken: start.Tokens.RefreshToken})
	require.NoError(t, err)
	b, err := f.svc.Refresh(ctx, RefreshRequest{RefreshToken: start.Tokens.RefreshToken})
	require.NoError(t, err)

	assert.NotEqual(t, a.Tokens.AccessToken, b.Tokens.AccessToken)
	assert.NotEqual(t, a.Tokens.RefreshToken, b.Tokens.RefreshToken)
}

func TestRefreshStrictRotationRejectsReuse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(d *Deps) {
		d.StrictRefreshRotation = true
		d.Ledger = NewCacheLedger(cache.NewMemory("", 0))
	})
	start := loggedIn(t, f)

	next, err := f.svc.Refresh(ctx, RefreshRequest{RefreshToken: start.Tokens.RefreshToken})
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, RefreshRequest{RefreshToken: start.Tokens.RefreshToken})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAuthentication))
	assert.True(t, errors.Is(err, ErrRefreshReplayed))

	_, err = f.svc.Refresh(ctx, RefreshRequest{RefreshToken: next.Tokens.RefreshToken})
	require.NoError(t, err)
}

func TestRefreshRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := loggedIn(t, f)

	_, err := f.svc.Refresh(ctx, RefreshRequest{RefreshToken: start.Tokens.AccessToken})
	assert.True(t, errors.Is(err, apperr.ErrAuthentication))
	assert.True(t, errors.Is(err, jwtx.ErrWrongTokenKind))
	assert.Equal(t, http.StatusUnauthorized, status(err))

	_, err = f.svc.Refresh(ctx, RefreshRequest{GrantType: "authorization_code", RefreshToken: start.Tokens.RefreshToken})
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedGrant))

	_, err = f.svc.Refresh(ctx, RefreshRequest{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	f.clk.Advance(defaultRefreshTTL + time.Minute)
	_, err = f.svc.Refresh(ctx, RefreshRequest{RefreshToken: start.Tokens.RefreshToken})
	assert.True(t, errors.Is(err, apperr.ErrAuthentication))
	assert.True(t, errors.Is(err, jwtx.ErrExpiredToken))
}

func TestRefreshInactiveUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := loggedIn(t, f)

	u, err := f.store.GetByID(ctx, start.UserID)
	require.NoError(t, err)
	u.Active = false
	require.NoError(t, f.store.Update(ctx, u))

	_, err = f.svc.Refresh(ctx, RefreshRequest{RefreshToken: start.Tokens.RefreshToken})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAuthentication))
}

func TestRefreshKeepsProviderOfExternalUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.withFake(healthyFake())

	res, err := f.svc.Exchange(ctx, externalExchange())
	require.NoError(t, err)
	next, err := f.svc.Refresh(ctx, RefreshRequest{RefreshToken: res.Tokens.RefreshToken})
	require.NoError(t, err)

	cl, err := f.tokens.Verify(next.Tokens.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "fake", cl.Provider)
}
