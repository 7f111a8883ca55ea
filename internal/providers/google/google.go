// Package google implementa providers.Provider contra Google OIDC usando
// golang.org/x/oauth2 (code exchange + PKCE) y go-oidc (id_token).
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/dropDatabas3/authority/internal/providers"
)

const ProviderName = "google"

const (
	DefaultIssuer      = "https://accounts.google.com"
	DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	DefaultJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
	defaultTimeout     = 10 * time.Second
)

// Config del adapter. Los endpoints vacíos usan los de Google.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	Issuer      string
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	JWKSURL     string

	Timeout    time.Duration
	HTTPClient *http.Client
	// KeySet reemplaza el JWKS remoto (tests).
	KeySet oidc.KeySet
	Now    func() time.Time
}

type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	timeout     time.Duration
	httpClient  *http.Client
	verifier    *oidc.IDTokenVerifier
}

// Factory devuelve la factory para registrar en providers.Registry.
func Factory(cfg Config) providers.Factory {
	return func() (providers.Provider, error) { return New(cfg) }
}

func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google: client_id and client_secret are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = DefaultJWKSURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	ep := endpoints.Google
	if cfg.AuthURL != "" {
		ep.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		ep.TokenURL = cfg.TokenURL
	}
	// credenciales en el body, igual que Google documenta.
	ep.AuthStyle = oauth2.AuthStyleInParams

	keySet := cfg.KeySet
	if keySet == nil {
		keySet = oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), hc), cfg.JWKSURL)
	}
	keySet = fetchTaggingKeySet{keySet}
	vcfg := &oidc.Config{ClientID: cfg.ClientID, Now: cfg.Now}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     ep,
		},
		userInfoURL: cfg.UserInfoURL,
		timeout:     cfg.Timeout,
		httpClient:  hc,
		verifier:    oidc.NewVerifier(cfg.Issuer, keySet, vcfg),
	}, nil
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) config(redirectURI string) *oauth2.Config {
	if redirectURI == "" || redirectURI == p.oauth.RedirectURL {
		return p.oauth
	}
	c := *p.oauth
	c.RedirectURL = redirectURI
	return &c
}

func (p *Provider) AuthorizationURL(redirectURI, state, scope, codeChallenge string) (string, error) {
	c := p.config(redirectURI)
	if s := strings.Fields(scope); len(s) > 0 {
		cp := *c
		cp.Scopes = s
		c = &cp
	}
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return c.AuthCodeURL(state, opts...), nil
}

func (p *Provider) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*providers.TokenSet, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}
	tok, err := p.config(redirectURI).Exchange(ctx, code, opts...)
	if err != nil {
		return nil, p.wrap(ctx, "exchange", err)
	}
	return tokenSet(tok), nil
}

func (p *Provider) RefreshAccessToken(ctx context.Context, refreshToken string) (*providers.TokenSet, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	src := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)})
	tok, err := src.Token()
	if err != nil {
		return nil, p.wrap(ctx, "refresh", err)
	}
	ts := tokenSet(tok)
	if ts.RefreshToken == "" {
		ts.RefreshToken = refreshToken
	}
	return ts, nil
}

func (p *Provider) ValidateIDToken(ctx context.Context, rawIDToken string) (*providers.IDToken, error) {
	ctx, cancel := p.withTimeout(oidc.ClientContext(ctx, p.httpClient))
	defer cancel()

	var fetchErr error
	ctx = context.WithValue(ctx, fetchErrKey{}, &fetchErr)

	tok, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("google: verify id_token: %w", providers.ErrTimeout)
		case fetchErr != nil:
			return nil, fmt.Errorf("google: verify id_token: %w: %v", providers.ErrUpstream, fetchErr)
		}
		return nil, fmt.Errorf("google: verify id_token: %w: %v", providers.ErrAuthentication, err)
	}
	var c struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := tok.Claims(&c); err != nil {
		return nil, fmt.Errorf("google: id_token claims: %w: %v", providers.ErrAuthentication, err)
	}
	return &providers.IDToken{
		Subject:       tok.Subject,
		Issuer:        tok.Issuer,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		Name:          c.Name,
	}, nil
}

func (p *Provider) UserInfo(ctx context.Context, accessToken string) (*providers.UserInfo, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("google: userinfo request: %w: %v", providers.ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.oauth.Client(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).Do(req)
	if err != nil {
		return nil, p.wrap(ctx, "userinfo", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, p.wrap(ctx, "userinfo", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("google: userinfo status %d: %w", resp.StatusCode, providers.ErrAuthentication)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("google: userinfo status %d: %w", resp.StatusCode, providers.ErrUpstream)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("google: userinfo decode: %w: %v", providers.ErrUpstream, err)
	}
	ui := &providers.UserInfo{Raw: raw}
	ui.ID = str(raw, "sub")
	if ui.ID == "" {
		ui.ID = str(raw, "id")
	}
	ui.Email = str(raw, "email")
	ui.Name = str(raw, "name")
	ui.Picture = str(raw, "picture")
	switch v := raw["email_verified"].(type) {
	case bool:
		ui.EmailVerified = v
	case string:
		ui.EmailVerified = v == "true"
	}
	return ui, nil
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return context.WithTimeout(ctx, p.timeout)
}

// wrap traduce errores de oauth2/transporte a los sentinels de providers.
func (p *Provider) wrap(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("google: %s: %w", op, providers.ErrTimeout)
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 {
			return fmt.Errorf("google: %s: %w (%s)", op, providers.ErrAuthentication, re.ErrorCode)
		}
		return fmt.Errorf("google: %s: %w", op, providers.ErrUpstream)
	}
	if strings.Contains(err.Error(), "missing access_token") {
		return fmt.Errorf("google: %s: %w", op, providers.ErrMissingAccessToken)
	}
	return fmt.Errorf("google: %s: %w", op, providers.ErrUpstream)
}

type fetchErrKey struct{}

// fetchTaggingKeySet anota en el ctx las fallas al bajar el JWKS. El verifier
// de go-oidc las aplana con %v, así que ValidateIDToken las lee de ahí para
// distinguir un IdP caído de una firma inválida.
type fetchTaggingKeySet struct {
	oidc.KeySet
}

func (k fetchTaggingKeySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	payload, err := k.KeySet.VerifySignature(ctx, jwt)
	if err != nil && keyFetchFailed(err) {
		if slot, ok := ctx.Value(fetchErrKey{}).(*error); ok {
			*slot = err
		}
	}
	return payload, err
}

// keyFetchFailed: transporte (url.Error) o status/decode del endpoint de keys.
func keyFetchFailed(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	return strings.HasPrefix(err.Error(), "fetching keys")
}

func tokenSet(tok *oauth2.Token) *providers.TokenSet {
	ts := &providers.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		ts.IDToken = id
	}
	return ts
}

func str(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}
