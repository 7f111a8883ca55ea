// Package dto define los payloads JSON del boundary HTTP.
package dto

import (
	"net/url"
	"time"
)

// AuthorizeRequest es el body de POST /authorize.
type AuthorizeRequest struct {
	Provider            string `json:"provider"`
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	Scope               string `json:"scope,omitempty"`
	State               string `json:"state"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
	Username            string `json:"username,omitempty"`
	Password            string `json:"password,omitempty"`
}

// AuthorizeResponse lleva authorization_code (local) o authorization_url (externo).
type AuthorizeResponse struct {
	AuthorizationCode string `json:"authorization_code,omitempty"`
	AuthorizationURL  string `json:"authorization_url,omitempty"`
	State             string `json:"state"`
	RedirectURI       string `json:"redirect_uri"`
}

// TokenRequest es el body de POST /token.
type TokenRequest struct {
	Provider     string `json:"provider"`
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	ClientID     string `json:"client_id,omitempty"`
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// TokenRequestFromForm lee los mismos campos de un body urlencoded.
func TokenRequestFromForm(f url.Values) TokenRequest {
	return TokenRequest{
		Provider:     f.Get("provider"),
		GrantType:    f.Get("grant_type"),
		Code:         f.Get("code"),
		RedirectURI:  f.Get("redirect_uri"),
		ClientID:     f.Get("client_id"),
		CodeVerifier: f.Get("code_verifier"),
	}
}

// RefreshRequest es el body de POST /refresh.
type RefreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

func RefreshRequestFromForm(f url.Values) RefreshRequest {
	return RefreshRequest{GrantType: f.Get("grant_type"), RefreshToken: f.Get("refresh_token")}
}

// TokenResponse es el envelope OAuth2 de /token y /refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// UserInfoResponse es GET /userinfo.
type UserInfoResponse struct {
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	Name          string   `json:"name,omitempty"`
	Username      string   `json:"preferred_username,omitempty"`
	Provider      string   `json:"provider,omitempty"`
	Roles         []string `json:"roles"`
	Permissions   []string `json:"permissions"`
}

// PrincipalResponse es GET /admin/principals/{id}.
type PrincipalResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Name          string    `json:"name,omitempty"`
	Active        bool      `json:"active"`
	Superuser     bool      `json:"superuser"`
	Provider      string    `json:"provider,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	HasPassword   bool      `json:"has_password"`
	Roles         []string  `json:"roles"`
	Permissions   []string  `json:"permissions"`
	CreatedAt     time.Time `json:"created_at"`
}

// HealthResponse es GET /healthz y /readyz.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}
