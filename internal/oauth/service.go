// Package oauth orquesta el flujo authorization code + PKCE y la rotación de
// refresh tokens. Es el único lugar que combina token service, identity store,
// providers externos y el ledger de un solo uso.
package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/providers"
)

const (
	// ProviderLocal es el provider de usuario+password propio.
	ProviderLocal = "local"

	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"

	DefaultScope = "openid email profile"

	defaultAuthCodeTTL     = 10 * time.Minute
	defaultAccessTTL       = 30 * time.Minute
	defaultRefreshTTL      = 7 * 24 * time.Hour
	defaultProviderTimeout = 10 * time.Second
)

// Errores internos del servicio (nunca cruzan el boundary, van como cause).
var (
	ErrCodeReplayed     = errors.New("oauth: authorization code already used")
	ErrRefreshReplayed  = errors.New("oauth: refresh token already used")
	ErrPKCEMismatch     = errors.New("oauth: pkce verification failed")
	ErrRedirectMismatch = errors.New("oauth: redirect_uri mismatch")
)

// TokenIssuer es lo que el servicio necesita del token service.
type TokenIssuer interface {
	MintAccess(c jwtx.AccessClaims, ttl time.Duration) (string, error)
	MintRefresh(userID string, ttl time.Duration) (string, error)
	MintAuthCode(c jwtx.AuthCodeClaims, ttl time.Duration) (string, error)
	Verify(token string, expected jwtx.Kind) (*jwtx.Claims, error)
}

// IdentityStore es el subconjunto del repositorio que usa el flujo.
type IdentityStore interface {
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	GetByID(ctx context.Context, id string) (*repository.User, error)
	GetByExternal(ctx context.Context, provider, externalID string) (*repository.User, error)
	CreateOrUpdateExternal(ctx context.Context, in repository.ExternalIdentity) (*repository.User, bool, error)
}

// PasswordVerifier compara un password contra su hash codificado.
type PasswordVerifier interface {
	Verify(plain, encoded string) bool
}

// ProviderRegistry resuelve un provider externo por nombre.
type ProviderRegistry interface {
	Create(name string) (providers.Provider, error)
}

// Recorder recibe los eventos que alimentan métricas.
type Recorder interface {
	TokenIssued(kind string)
	Exchange(provider, outcome string)
	ProviderCall(provider, op string, d time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) TokenIssued(string)                                {}
func (noopRecorder) Exchange(string, string)                           {}
func (noopRecorder) ProviderCall(string, string, time.Duration, error) {}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Tokens    TokenIssuer
	Users     IdentityStore
	Passwords PasswordVerifier
	Providers ProviderRegistry
	Ledger    Ledger   // nil = sin ledger
	Metrics   Recorder // nil = noop

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	AuthCodeTTL     time.Duration
	ProviderTimeout time.Duration
	Scope           string

	// SingleUseCodes consume el jti del code en el ledger.
	SingleUseCodes bool
	// StrictRefreshRotation consume el jti del refresh en el ledger.
	StrictRefreshRotation bool

	// DummyHash se verifica cuando el usuario no existe, para uniformar tiempos.
	DummyHash string

	Now func() time.Time
}

// Service define las operaciones del authority.
type Service interface {
	Authorize(ctx context.Context, in AuthorizeRequest) (*AuthorizeResult, error)
	AuthorizeLocal(ctx context.Context, in LocalAuthorizeRequest) (*AuthorizeResult, error)
	Exchange(ctx context.Context, in TokenRequest) (*TokenResult, error)
	Refresh(ctx context.Context, in RefreshRequest) (*TokenResult, error)
}

type service struct {
	d Deps
}

// NewService crea el servicio. Tokens y Users son obligatorios.
func NewService(d Deps) (Service, error) {
	if d.Tokens == nil || d.Users == nil {
		return nil, errors.New("oauth: Tokens and Users are required")
	}
	if d.Ledger == nil {
		d.Ledger = NoopLedger{}
	}
	if d.Metrics == nil {
		d.Metrics = noopRecorder{}
	}
	if d.AccessTTL <= 0 {
		d.AccessTTL = defaultAccessTTL
	}
	if d.RefreshTTL <= 0 {
		d.RefreshTTL = defaultRefreshTTL
	}
	if d.AuthCodeTTL <= 0 {
		d.AuthCodeTTL = defaultAuthCodeTTL
	}
	if d.ProviderTimeout <= 0 {
		d.ProviderTimeout = defaultProviderTimeout
	}
	if d.Scope == "" {
		d.Scope = DefaultScope
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &service{d: d}, nil
}

// issue emite el par access+refresh para u.
func (s *service) issue(u *repository.User, provider string) (*TokenResponse, error) {
	at, err := s.d.Tokens.MintAccess(jwtx.AccessClaims{
		Subject:  u.ID,
		Email:    u.Email,
		Name:     u.DisplayName(),
		Provider: provider,
	}, s.d.AccessTTL)
	if err != nil {
		return nil, err
	}
	s.d.Metrics.TokenIssued(string(jwtx.KindAccess))

	rt, err := s.d.Tokens.MintRefresh(u.ID, s.d.RefreshTTL)
	if err != nil {
		return nil, err
	}
	s.d.Metrics.TokenIssued(string(jwtx.KindRefresh))

	return &TokenResponse{
		AccessToken:  at,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.d.AccessTTL / time.Second),
		RefreshToken: rt,
		Scope:        s.d.Scope,
	}, nil
}

// remaining es lo que le queda de vida a un token, para el TTL del ledger.
func (s *service) remaining(cl *jwtx.Claims, fallback time.Duration) time.Duration {
	if cl.ExpiresAt == nil {
		return fallback
	}
	if d := cl.ExpiresAt.Time.Sub(s.d.Now()); d > 0 {
		return d
	}
	return time.Second
}
