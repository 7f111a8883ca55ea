package oauth

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/providers"
	"github.com/dropDatabas3/authority/internal/security/pkce"
)

// Exchange canjea un authorization code (local o del provider) por tokens propios.
func (s *service) Exchange(ctx context.Context, in TokenRequest) (res *TokenResult, err error) {
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.Code = strings.TrimSpace(in.Code)
	in.RedirectURI = strings.TrimSpace(in.RedirectURI)

	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Op("oauth.Exchange"),
		logger.Provider(in.Provider),
		logger.GrantType(in.GrantType),
	)

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(apperr.KindOf(err))
		}
		s.d.Metrics.Exchange(in.Provider, outcome)
	}()

	if in.GrantType != GrantAuthorizationCode {
		return nil, apperr.UnsupportedGrant("grant_type must be authorization_code").
			WithDetail("grant_type", in.GrantType)
	}
	if in.Code == "" {
		return nil, apperr.MissingCode()
	}
	if in.Provider == "" {
		in.Provider = ProviderLocal
	}

	ctx = logger.ToContext(ctx, log)
	if in.Provider == ProviderLocal {
		return s.exchangeLocal(ctx, in)
	}
	return s.exchangeExternal(ctx, in)
}

func (s *service) exchangeLocal(ctx context.Context, in TokenRequest) (*TokenResult, error) {
	log := logger.From(ctx)

	cl, err := s.d.Tokens.Verify(in.Code, jwtx.KindAuthCode)
	if err != nil {
		log.Debug("auth code rejected", logger.Reason(jwtx.Reason(err)))
		return nil, apperr.InvalidCode(err)
	}
	if cl.RedirectURI != "" && cl.RedirectURI != in.RedirectURI {
		log.Debug("auth code rejected", logger.Reason("redirect_uri"))
		return nil, apperr.InvalidCode(ErrRedirectMismatch)
	}
	if cl.CodeChallenge != "" && !pkce.Verify(in.CodeVerifier, cl.CodeChallenge) {
		log.Debug("auth code rejected", logger.Reason("pkce"))
		return nil, apperr.InvalidCode(ErrPKCEMismatch)
	}
	if s.d.SingleUseCodes {
		ok, err := s.d.Ledger.Consume(ctx, "code:"+cl.ID, s.remaining(cl, s.d.AuthCodeTTL))
		if err != nil {
			log.Error("code ledger failed", logger.Err(err))
			return nil, apperr.Internal(err)
		}
		if !ok {
			log.Warn("auth code replay", logger.UserID(cl.Subject))
			return nil, apperr.InvalidCode(ErrCodeReplayed)
		}
	}

	u, err := s.d.Users.GetByID(ctx, cl.Subject)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.InvalidCode(err)
		}
		log.Error("user lookup failed", logger.Err(err))
		return nil, apperr.Internal(err)
	}
	if !u.Active {
		return nil, apperr.Authorization("account is disabled")
	}

	tr, err := s.issue(u, ProviderLocal)
	if err != nil {
		log.Error("issue tokens failed", logger.Err(err))
		return nil, apperr.Internal(err)
	}
	log.Info("code exchanged", logger.UserID(u.ID))
	return &TokenResult{Tokens: *tr, UserID: u.ID, Provider: ProviderLocal}, nil
}

func (s *service) exchangeExternal(ctx context.Context, in TokenRequest) (*TokenResult, error) {
	log := logger.From(ctx)

	if s.d.Providers == nil {
		return nil, apperr.Validation("unsupported provider").WithDetail("provider", in.Provider)
	}
	p, err := s.d.Providers.Create(in.Provider)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, s.d.ProviderTimeout)
	defer cancel()

	start := time.Now()
	ts, err := p.ExchangeCode(pctx, in.Code, in.RedirectURI, in.CodeVerifier)
	s.d.Metrics.ProviderCall(in.Provider, "exchange_code", time.Since(start), err)
	if err != nil {
		log.Warn("provider code exchange failed", logger.Err(err))
		return nil, providerErr(err)
	}
	if ts == nil || ts.AccessToken == "" {
		log.Warn("provider token response without access_token")
		return nil, apperr.Provider("identity provider returned no access_token", providers.ErrMissingAccessToken)
	}

	var idt *providers.IDToken
	if ts.IDToken != "" {
		start = time.Now()
		idt, err = p.ValidateIDToken(pctx, ts.IDToken)
		s.d.Metrics.ProviderCall(in.Provider, "validate_id_token", time.Since(start), err)
		if err != nil {
			log.Warn("id_token rejected", logger.Err(err))
			return nil, providerErr(err)
		}
	}

	start = time.Now()
	ui, err := p.UserInfo(pctx, ts.AccessToken)
	s.d.Metrics.ProviderCall(in.Provider, "userinfo", time.Since(start), err)
	if err != nil {
		log.Warn("provider userinfo failed", logger.Err(err))
		return nil, providerErr(err)
	}
	if ui == nil || ui.ID == "" || ui.Email == "" {
		return nil, apperr.Provider("identity provider returned incomplete user info", providers.ErrUpstream)
	}
	if idt != nil && idt.Subject != "" && idt.Subject != ui.ID {
		return nil, apperr.Authentication("provider authentication failed", providers.ErrAuthentication)
	}

	ident := repository.ExternalIdentity{
		Provider:             in.Provider,
		ExternalID:           ui.ID,
		Email:                ui.Email,
		EmailVerified:        ui.EmailVerified || (idt != nil && idt.EmailVerified),
		Name:                 ui.Name,
		ProviderRefreshToken: ts.RefreshToken,
	}
	u, isNew, err := s.upsert(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, apperr.Authorization("account is disabled")
	}

	tr, err := s.issue(u, in.Provider)
	if err != nil {
		log.Error("issue tokens failed", logger.Err(err))
		return nil, apperr.Internal(err)
	}
	log.Info("provider code exchanged", logger.UserID(u.ID), logger.Bool("new_user", isNew))
	return &TokenResult{Tokens: *tr, UserID: u.ID, Provider: in.Provider, IsNewUser: isNew}, nil
}

// upsert resuelve la identidad externa. Si otro request ganó la carrera
// (ErrConflict), relee el usuario existente.
func (s *service) upsert(ctx context.Context, ident repository.ExternalIdentity) (*repository.User, bool, error) {
	log := logger.From(ctx)

	u, isNew, err := s.d.Users.CreateOrUpdateExternal(ctx, ident)
	if err == nil {
		return u, isNew, nil
	}
	if !repository.IsConflict(err) {
		log.Error("identity upsert failed", logger.Err(err))
		return nil, false, apperr.Internal(err)
	}

	existing, gerr := s.d.Users.GetByExternal(ctx, ident.Provider, ident.ExternalID)
	switch {
	case repository.IsNotFound(gerr):
		log.Info("identity conflict", logger.MaskedEmail(ident.Email), logger.Err(err))
		return nil, false, apperr.Conflict("account already exists for this email", err)
	case gerr != nil:
		log.Error("identity re-read failed", logger.Err(gerr))
		return nil, false, apperr.Internal(gerr)
	}
	return existing, false, nil
}
