// Package jwt emite y verifica los tokens del authority (access, refresh y
// authorization code). Todos se firman con HS256 y una clave simétrica fija;
// el algoritmo no se negocia por request.
package jwt

import (
	"errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Kind discrimina el propósito de un token.
type Kind string

const (
	KindAccess   Kind = "access"
	KindRefresh  Kind = "refresh"
	KindAuthCode Kind = "auth_code"
)

var (
	ErrInvalidToken   = errors.New("jwt: invalid token")
	ErrExpiredToken   = errors.New("jwt: token expired")
	ErrWrongTokenKind = errors.New("jwt: wrong token kind")
	ErrMalformedToken = errors.New("jwt: malformed token")

	ErrInvalidTTL = errors.New("jwt: ttl must be positive")
	ErrWeakKey    = errors.New("jwt: signing key must be at least 32 bytes")
)

// Claims es el claim set de todos los tokens emitidos.
// Los campos opcionales se omiten según el kind.
type Claims struct {
	jwtv5.RegisteredClaims
	Kind Kind `json:"kind"`

	// access
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`

	// auth_code: PKCE y redirect quedan ligados al code sin estado server-side.
	CodeChallenge       string `json:"cc,omitempty"`
	CodeChallengeMethod string `json:"ccm,omitempty"`
	RedirectURI         string `json:"redirect_uri,omitempty"`
}

// AccessClaims son los datos de identidad que viajan en un access token.
type AccessClaims struct {
	Subject  string
	Email    string
	Name     string
	Provider string
}

// AuthCodeClaims son los datos de un authorization code local.
type AuthCodeClaims struct {
	Subject             string
	Email               string
	CodeChallenge       string
	CodeChallengeMethod string
	RedirectURI         string
}
