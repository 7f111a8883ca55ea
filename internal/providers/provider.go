// Package providers define el contrato de los identity providers externos
// (Google, etc.) y el registry nombre -> factory que usa el orchestrator.
//
// Los adapters nunca filtran errores de transporte crudos: todo fallo se
// envuelve en ErrAuthentication, ErrUpstream o ErrNotImplemented.
package providers

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAuthentication: el IdP rechazó las credenciales (4xx, id_token inválido).
	ErrAuthentication = errors.New("provider: authentication failed")
	// ErrUpstream: el IdP violó su contrato o no respondió (5xx, transporte, payload).
	ErrUpstream = errors.New("provider: upstream error")
	// ErrTimeout: la llamada excedió el timeout configurado.
	ErrTimeout = fmt.Errorf("%w: timeout", ErrUpstream)
	// ErrMissingAccessToken: la respuesta de token no trae access_token.
	ErrMissingAccessToken = fmt.Errorf("%w: token response missing access_token", ErrUpstream)
	// ErrNotImplemented: provider registrado sin adapter real.
	ErrNotImplemented = errors.New("provider: not implemented")
)

// Provider es la capacidad mínima de un IdP externo.
type Provider interface {
	Name() string

	// AuthorizationURL arma la URL de consentimiento. scope vacío usa los scopes
	// configurados; codeChallenge vacío omite PKCE.
	AuthorizationURL(redirectURI, state, scope, codeChallenge string) (string, error)

	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenSet, error)
	ValidateIDToken(ctx context.Context, idToken string) (*IDToken, error)
	UserInfo(ctx context.Context, accessToken string) (*UserInfo, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenSet, error)
}

// TokenSet contiene los tokens devueltos por el IdP.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string // OIDC
	TokenType    string
	ExpiresIn    int64
}

// IDToken son los claims relevantes de un id_token validado.
type IDToken struct {
	Subject       string
	Issuer        string
	Email         string
	EmailVerified bool
	Name          string
}

// UserInfo es el perfil normalizado del IdP.
type UserInfo struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Raw           map[string]any
}
