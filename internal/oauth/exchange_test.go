package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/cache"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/providers"
	"github.com/dropDatabas3/authority/internal/security/pkce"
)

func TestLocalAuthorizeExchangeScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.seedLocal(t, testEmail, true)

	code := f.localCode(t, "")
	f.clk.Advance(9 * time.Minute)

	res, err := f.svc.Exchange(ctx, localExchange(code, ""))
	require.NoError(t, err)
	assert.Equal(t, "openid email profile", res.Tokens.Scope)
	assert.Equal(t, "Bearer", res.Tokens.TokenType)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, int64(defaultAccessTTL/time.Second), res.Tokens.ExpiresIn)
	assert.Equal(t, u.ID, res.UserID)
	assert.False(t, res.IsNewUser)

	at, err := f.tokens.Verify(res.Tokens.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID, at.Subject)
	assert.Equal(t, testEmail, at.Email)
	assert.Equal(t, ProviderLocal, at.Provider)

	late := f.localCode(t, "")
	f.clk.Advance(11 * time.Minute)
	_, err = f.svc.Exchange(ctx, localExchange(late, ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidCode))
	assert.True(t, errors.Is(err, jwtx.ErrExpiredToken))
	assert.Equal(t, http.StatusBadRequest, status(err))
}

func TestExchangeRequestValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Exchange(context.Background(), TokenRequest{GrantType: "password", Code: "x"})
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedGrant))
	assert.Equal(t, "unsupported_grant_type", string(apperr.KindOf(err)))

	_, err = f.svc.Exchange(context.Background(), TokenRequest{GrantType: GrantAuthorizationCode})
	assert.True(t, errors.Is(err, apperr.ErrMissingCode))
	assert.Equal(t, http.StatusBadRequest, status(err))
}

func TestExchangeRejectsForeignTokens(t *testing.T) {
	f := newFixture(t)
	u := f.seedLocal(t, testEmail, true)

	access, err := f.tokens.MintAccess(jwtx.AccessClaims{Subject: u.ID}, time.Minute)
	require.NoError(t, err)
	_, err = f.svc.Exchange(context.Background(), localExchange(access, ""))
	assert.True(t, errors.Is(err, apperr.ErrInvalidCode))
	assert.True(t, errors.Is(err, jwtx.ErrWrongTokenKind))

	_, err = f.svc.Exchange(context.Background(), localExchange("not-a-jwt", ""))
	assert.True(t, errors.Is(err, apperr.ErrInvalidCode))
}

func TestExchangeLocalPKCE(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, testEmail, true)
	verifier, challenge, err := pkce.GeneratePair()
	require.NoError(t, err)
	other, _, err := pkce.GeneratePair()
	require.NoError(t, err)

	code := f.localCode(t, challenge)

	for name, v := range map[string]string{"missing": "", "mismatch": other} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Exchange(context.Background(), localExchange(code, v))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrInvalidCode))
			assert.True(t, errors.Is(err, ErrPKCEMismatch))
		})
	}

	res, err := f.svc.Exchange(context.Background(), localExchange(code, verifier))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)
}

func TestExchangeLocalRedirectMismatch(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, testEmail, true)
	code := f.localCode(t, "")

	in := localExchange(code, "")
	in.RedirectURI = "https://evil/cb"
	_, err := f.svc.Exchange(context.Background(), in)
	assert.True(t, errors.Is(err, apperr.ErrInvalidCode))
	assert.True(t, errors.Is(err, ErrRedirectMismatch))
}

func TestExchangeLocalDisabledAfterCodeIssued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.seedLocal(t, testEmail, true)
	code := f.localCode(t, "")

	u.Active = false
	require.NoError(t, f.store.Update(ctx, u))

	_, err := f.svc.Exchange(ctx, localExchange(code, ""))
	assert.True(t, errors.Is(err, apperr.ErrAuthorization))
}

func TestExchangeCodeReplay(t *testing.T) {
	ctx := context.Background()

	t.Run("ttl only by default", func(t *testing.T) {
		f := newFixture(t)
		f.seedLocal(t, testEmail, true)
		code := f.localCode(t, "")

		_, err := f.svc.Exchange(ctx, localExchange(code, ""))
		require.NoError(t, err)
		_, err = f.svc.Exchange(ctx, localExchange(code, ""))
		require.NoError(t, err)
	})

	t.Run("single use with ledger", func(t *testing.T) {
		c := cache.NewMemory("test", 0)
		f := newFixture(t, func(d *Deps) {
			d.SingleUseCodes = true
			d.Ledger = NewCacheLedger(c)
		})
		f.seedLocal(t, testEmail, true)
		code := f.localCode(t, "")

		_, err := f.svc.Exchange(ctx, localExchange(code, ""))
		require.NoError(t, err)
		_, err = f.svc.Exchange(ctx, localExchange(code, ""))
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrInvalidCode))
		assert.True(t, errors.Is(err, ErrCodeReplayed))
	})
}

func TestExchangeExternalCreatesThenReuses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := healthyFake()
	f.withFake(p)

	first, err := f.svc.Exchange(ctx, externalExchange())
	require.NoError(t, err)
	assert.True(t, first.IsNewUser)
	assert.Equal(t, "fake", first.Provider)
	assert.Equal(t, DefaultScope, first.Tokens.Scope)

	second, err := f.svc.Exchange(ctx, externalExchange())
	require.NoError(t, err)
	assert.False(t, second.IsNewUser)
	assert.Equal(t, first.UserID, second.UserID)

	u, err := f.store.GetByExternal(ctx, "fake", "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "idp-rt", u.ProviderRefreshToken)

	at, err := f.tokens.Verify(second.Tokens.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "fake", at.Provider)
	assert.Equal(t, "bob@example.com", at.Email)
}

func TestExchangeExternalMissingAccessToken(t *testing.T) {
	f := newFixture(t)
	p := healthyFake()
	p.tokens = &providers.TokenSet{RefreshToken: "rt", TokenType: "Bearer"}
	f.withFake(p)

	_, err := f.svc.Exchange(context.Background(), externalExchange())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrProvider))
	assert.Equal(t, http.StatusBadGateway, status(err))
}

func TestExchangeExternalErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		mut    func(*fakeProvider)
		kind   *apperr.Error
		status int
	}{
		{"upstream 5xx", func(p *fakeProvider) { p.exchangeErr = fmt.Errorf("%w: status 503", providers.ErrUpstream) }, apperr.ErrProvider, http.StatusBadGateway},
		{"rejected code", func(p *fakeProvider) { p.exchangeErr = fmt.Errorf("%w: invalid_grant", providers.ErrAuthentication) }, apperr.ErrAuthentication, http.StatusUnauthorized},
		{"bad id_token", func(p *fakeProvider) { p.idErr = fmt.Errorf("%w: signature", providers.ErrAuthentication) }, apperr.ErrAuthentication, http.StatusUnauthorized},
		{"id_token for other subject", func(p *fakeProvider) { p.idToken.Subject = "ext-2" }, apperr.ErrAuthentication, http.StatusUnauthorized},
		{"userinfo without email", func(p *fakeProvider) { p.info.Email = "" }, apperr.ErrProvider, http.StatusBadGateway},
		{"userinfo upstream", func(p *fakeProvider) { p.infoErr = providers.ErrUpstream }, apperr.ErrProvider, http.StatusBadGateway},
		{"raw adapter error", func(p *fakeProvider) { p.exchangeErr = errors.New("boom") }, apperr.ErrInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			p := healthyFake()
			tc.mut(p)
			f.withFake(p)

			_, err := f.svc.Exchange(context.Background(), externalExchange())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
			assert.Equal(t, tc.status, status(err))
		})
	}
}

func TestExchangeExternalTimeout(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.ProviderTimeout = 20 * time.Millisecond })
	p := healthyFake()
	p.block = true
	f.withFake(p)

	start := time.Now()
	_, err := f.svc.Exchange(context.Background(), externalExchange())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrProvider))
	assert.True(t, errors.Is(err, providers.ErrTimeout))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExchangeExternalStubAndUnknown(t *testing.T) {
	f := newFixture(t)

	in := externalExchange()
	in.Provider = "github"
	_, err := f.svc.Exchange(context.Background(), in)
	assert.True(t, errors.Is(err, apperr.ErrNotImplemented))
	assert.Equal(t, http.StatusNotImplemented, status(err))

	in.Provider = "myspace"
	_, err = f.svc.Exchange(context.Background(), in)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, http.StatusBadRequest, status(err))
}

func TestExchangeExternalConcurrentUpserts(t *testing.T) {
	f := newFixture(t)
	f.withFake(healthyFake())

	const n = 5
	results := make([]*TokenResult, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			res, err := f.svc.Exchange(context.Background(), externalExchange())
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	created := 0
	for _, r := range results {
		if r.IsNewUser {
			created++
		}
		assert.Equal(t, results[0].UserID, r.UserID)
	}
	assert.Equal(t, 1, created)
}

// racingStore simula perder la carrera del upsert: otro request crea la
// identidad y este recibe ErrConflict.
type racingStore struct {
	IdentityStore
}

func (r racingStore) CreateOrUpdateExternal(ctx context.Context, in repository.ExternalIdentity) (*repository.User, bool, error) {
	if _, _, err := r.IdentityStore.CreateOrUpdateExternal(ctx, in); err != nil {
		return nil, false, err
	}
	return nil, false, fmt.Errorf("%w: duplicate key", repository.ErrConflict)
}

func TestExchangeExternalConflictRereads(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Users = racingStore{IdentityStore: d.Users} })
	f.withFake(healthyFake())

	res, err := f.svc.Exchange(context.Background(), externalExchange())
	require.NoError(t, err)
	assert.False(t, res.IsNewUser)
	assert.NotEmpty(t, res.UserID)
}

// downStore pierde la carrera y además falla al releer.
type downStore struct {
	IdentityStore
}

func (downStore) CreateOrUpdateExternal(context.Context, repository.ExternalIdentity) (*repository.User, bool, error) {
	return nil, false, fmt.Errorf("%w: duplicate key", repository.ErrConflict)
}

func (downStore) GetByExternal(context.Context, string, string) (*repository.User, error) {
	return nil, errors.New("pg: connection refused")
}

func TestExchangeExternalRereadFailureIsInternal(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Users = downStore{IdentityStore: d.Users} })
	f.withFake(healthyFake())

	_, err := f.svc.Exchange(context.Background(), externalExchange())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInternal))
	assert.False(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, http.StatusInternalServerError, status(err))
}

func TestExchangeExternalUnverifiedEmailCollision(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, "bob@example.com", true)
	p := healthyFake()
	p.info.EmailVerified = false
	p.idToken.EmailVerified = false
	f.withFake(p)

	_, err := f.svc.Exchange(context.Background(), externalExchange())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, http.StatusConflict, status(err))
}

func TestExchangeExternalLinksVerifiedEmail(t *testing.T) {
	f := newFixture(t)
	local := f.seedLocal(t, "bob@example.com", true)
	f.withFake(healthyFake())

	res, err := f.svc.Exchange(context.Background(), externalExchange())
	require.NoError(t, err)
	assert.False(t, res.IsNewUser)
	assert.Equal(t, local.ID, res.UserID)
}
