package oauth

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/providers"
	"github.com/dropDatabas3/authority/internal/providers/stub"
	"github.com/dropDatabas3/authority/internal/security/password"
	"github.com/dropDatabas3/authority/internal/store/memory"
)

const (
	testKey      = "0123456789abcdef0123456789abcdef"
	testRedirect = "https://client/cb"
	testEmail    = "ana@example.com"
	testPassword = "correct horse battery staple"
)

var cheapArgon = password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc    Service
	store  *memory.Store
	clk    *clock
	reg    *providers.Registry
	tokens *jwtx.Service
	hasher *password.Hasher
}

func newFixture(t *testing.T, mut ...func(*Deps)) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := jwtx.NewService(jwtx.Config{
		SigningKey: []byte(testKey),
		Issuer:     "authority",
		Audience:   "authority-clients",
		Now:        clk.Now,
	})
	require.NoError(t, err)

	f := &fixture{
		store:  memory.New(),
		clk:    clk,
		reg:    providers.NewRegistry(),
		tokens: tokens,
		hasher: password.NewHasher(cheapArgon),
	}
	f.reg.Register("github", stub.Factory("github"))

	d := Deps{
		Tokens:    tokens,
		Users:     f.store,
		Passwords: f.hasher,
		Providers: f.reg,
		Now:       clk.Now,
	}
	for _, m := range mut {
		m(&d)
	}
	svc, err := NewService(d)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seedLocal(t *testing.T, email string, active bool) *repository.User {
	t.Helper()
	h, err := f.hasher.Hash(testPassword)
	require.NoError(t, err)
	u, err := f.store.Create(context.Background(), &repository.User{
		Email: email, Name: "Ana", PasswordHash: &h, Active: active,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) localCode(t *testing.T, challenge string) string {
	t.Helper()
	res, err := f.svc.Authorize(context.Background(), AuthorizeRequest{
		Provider:      ProviderLocal,
		ClientID:      "web",
		RedirectURI:   testRedirect,
		State:         "abc123",
		CodeChallenge: challenge,
		Username:      testEmail,
		Password:      testPassword,
	})
	require.NoError(t, err)
	return res.Code
}

func localExchange(code, verifier string) TokenRequest {
	return TokenRequest{
		Provider:     ProviderLocal,
		GrantType:    GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  testRedirect,
		CodeVerifier: verifier,
	}
}

// fakeProvider es un IdP programable por test.
type fakeProvider struct {
	tokens      *providers.TokenSet
	exchangeErr error
	idToken     *providers.IDToken
	idErr       error
	info        *providers.UserInfo
	infoErr     error
	block       bool
	exchanges   atomic.Int32
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) AuthorizationURL(redirectURI, state, _, codeChallenge string) (string, error) {
	q := url.Values{"redirect_uri": {redirectURI}, "state": {state}, "code_challenge": {codeChallenge}}
	return "https://idp.example/auth?" + q.Encode(), nil
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, _, _, _ string) (*providers.TokenSet, error) {
	p.exchanges.Add(1)
	if p.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", providers.ErrTimeout, ctx.Err())
	}
	return p.tokens, p.exchangeErr
}

func (p *fakeProvider) ValidateIDToken(context.Context, string) (*providers.IDToken, error) {
	return p.idToken, p.idErr
}

func (p *fakeProvider) UserInfo(context.Context, string) (*providers.UserInfo, error) {
	return p.info, p.infoErr
}

func (p *fakeProvider) RefreshAccessToken(context.Context, string) (*providers.TokenSet, error) {
	return nil, providers.ErrNotImplemented
}

func healthyFake() *fakeProvider {
	return &fakeProvider{
		tokens:  &providers.TokenSet{AccessToken: "idp-at", RefreshToken: "idp-rt", IDToken: "idp-idt", TokenType: "Bearer"},
		idToken: &providers.IDToken{Subject: "ext-1", Email: "bob@example.com", EmailVerified: true},
		info:    &providers.UserInfo{ID: "ext-1", Email: "bob@example.com", EmailVerified: true, Name: "Bob"},
	}
}

func (f *fixture) withFake(p *fakeProvider) {
	f.reg.Register("fake", func() (providers.Provider, error) { return p, nil })
}

func externalExchange() TokenRequest {
	return TokenRequest{
		Provider:     "fake",
		GrantType:    GrantAuthorizationCode,
		Code:         "idp-code",
		RedirectURI:  testRedirect,
		CodeVerifier: "v",
	}
}

func status(err error) int { return apperr.From(err).Status() }

func TestNewServiceRequiresTokensAndUsers(t *testing.T) {
	_, err := NewService(Deps{})
	require.Error(t, err)
}
