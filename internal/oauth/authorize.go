package oauth

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/providers"
	"github.com/dropDatabas3/authority/internal/security/pkce"
	"github.com/dropDatabas3/authority/internal/validation"
)

// errBadCredentials es el único mensaje para usuario inexistente, sin hash o
// password incorrecto.
const errBadCredentials = "invalid credentials"

// Authorize valida el request y delega en el issuer local o en el provider.
func (s *service) Authorize(ctx context.Context, in AuthorizeRequest) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Op("oauth.Authorize"),
	)

	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.RedirectURI = strings.TrimSpace(in.RedirectURI)
	in.CodeChallenge = strings.TrimSpace(in.CodeChallenge)

	if in.Provider == "" {
		return nil, apperr.Validation("provider is required").WithDetail("field", "provider")
	}
	if err := validRedirectURI(in.RedirectURI); err != nil {
		return nil, err
	}
	if in.State == "" {
		return nil, apperr.Validation("state is required").WithDetail("field", "state")
	}
	if err := validChallenge(in.CodeChallenge, in.CodeChallengeMethod); err != nil {
		return nil, err
	}
	if !validation.ValidScope(in.Scope) {
		return nil, apperr.Validation("invalid scope").WithDetail("field", "scope")
	}

	log = log.With(logger.Provider(in.Provider), logger.ClientID(in.ClientID))

	if in.Provider == ProviderLocal {
		if strings.TrimSpace(in.Username) == "" || in.Password == "" {
			return nil, apperr.Validation("username and password are required")
		}
		return s.AuthorizeLocal(logger.ToContext(ctx, log), LocalAuthorizeRequest{
			Identifier:    in.Username,
			Password:      in.Password,
			State:         in.State,
			RedirectURI:   in.RedirectURI,
			CodeChallenge: in.CodeChallenge,
		})
	}

	if s.d.Providers == nil {
		return nil, apperr.Validation("unsupported provider").WithDetail("provider", in.Provider)
	}
	p, err := s.d.Providers.Create(in.Provider)
	if err != nil {
		return nil, err
	}
	authURL, err := p.AuthorizationURL(in.RedirectURI, in.State, in.Scope, in.CodeChallenge)
	if err != nil {
		log.Debug("authorization url failed", logger.Err(err))
		return nil, providerErr(err)
	}

	return &AuthorizeResult{
		AuthorizationURL: authURL,
		State:            in.State,
		RedirectURI:      in.RedirectURI,
	}, nil
}

// AuthorizeLocal autentica usuario+password y emite un authorization code.
// No escribe nada: el code es un JWT autocontenido.
func (s *service) AuthorizeLocal(ctx context.Context, in LocalAuthorizeRequest) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Op("oauth.AuthorizeLocal"),
		logger.MaskedEmail(in.Identifier),
	)

	u, err := s.d.Users.GetByEmail(ctx, strings.TrimSpace(in.Identifier))
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Error("user lookup failed", logger.Err(err))
			return nil, apperr.Internal(err)
		}
		s.burnHash(in.Password)
		log.Debug("unknown user")
		return nil, apperr.Authentication(errBadCredentials, nil)
	}

	if !u.HasPassword() {
		s.burnHash(in.Password)
		log.Debug("user has no local password", logger.UserID(u.ID))
		return nil, apperr.Authentication(errBadCredentials, nil)
	}
	if s.d.Passwords == nil || !s.d.Passwords.Verify(in.Password, *u.PasswordHash) {
		log.Debug("wrong password", logger.UserID(u.ID))
		return nil, apperr.Authentication(errBadCredentials, nil)
	}
	if !u.Active {
		log.Info("inactive user attempted login", logger.UserID(u.ID))
		return nil, apperr.Authorization("account is disabled")
	}

	cc := jwtx.AuthCodeClaims{
		Subject:     u.ID,
		Email:       u.Email,
		RedirectURI: in.RedirectURI,
	}
	if in.CodeChallenge != "" {
		cc.CodeChallenge = in.CodeChallenge
		cc.CodeChallengeMethod = pkce.MethodS256
	}
	code, err := s.d.Tokens.MintAuthCode(cc, s.d.AuthCodeTTL)
	if err != nil {
		log.Error("mint auth code failed", logger.Err(err))
		return nil, apperr.Internal(err)
	}
	s.d.Metrics.TokenIssued(string(jwtx.KindAuthCode))

	log.Info("authorization code issued", logger.UserID(u.ID))
	return &AuthorizeResult{
		Code:        code,
		State:       in.State,
		RedirectURI: in.RedirectURI,
	}, nil
}

func (s *service) burnHash(plain string) {
	if s.d.Passwords != nil && s.d.DummyHash != "" {
		_ = s.d.Passwords.Verify(plain, s.d.DummyHash)
	}
}

func validRedirectURI(raw string) error {
	if raw == "" {
		return apperr.Validation("redirect_uri is required").WithDetail("field", "redirect_uri")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Fragment != "" {
		return apperr.Validation("redirect_uri must be an absolute URI without fragment").
			WithDetail("field", "redirect_uri")
	}
	return nil
}

// validChallenge acepta solo S256. method vacío con challenge presente se asume S256.
func validChallenge(challenge, method string) error {
	if challenge == "" {
		if method != "" {
			return apperr.Validation("code_challenge_method without code_challenge").
				WithDetail("field", "code_challenge")
		}
		return nil
	}
	if method != "" && method != pkce.MethodS256 {
		return apperr.Validation("unsupported code_challenge_method").
			WithDetail("field", "code_challenge_method").
			WithDetail("supported", []string{pkce.MethodS256})
	}
	if !pkce.ValidChallenge(challenge) {
		return apperr.Validation("malformed code_challenge").WithDetail("field", "code_challenge")
	}
	return nil
}

// providerErr traduce los sentinels del adapter a la taxonomía del boundary.
func providerErr(err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, providers.ErrNotImplemented):
		return apperr.NotImplemented("provider not implemented")
	case errors.Is(err, providers.ErrAuthentication):
		return apperr.Authentication("provider authentication failed", err)
	case errors.Is(err, providers.ErrUpstream):
		return apperr.Provider("identity provider error", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Provider("identity provider timeout", err)
	default:
		return apperr.Internal(err)
	}
}
