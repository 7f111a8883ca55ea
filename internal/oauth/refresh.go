package oauth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// Refresh emite un par nuevo a partir de un refresh token válido.
// Sin StrictRefreshRotation el token anterior sigue siendo válido hasta su exp.
func (s *service) Refresh(ctx context.Context, in RefreshRequest) (*TokenResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Op("oauth.Refresh"),
	)

	in.RefreshToken = strings.TrimSpace(in.RefreshToken)
	if in.GrantType != "" && in.GrantType != GrantRefreshToken {
		return nil, apperr.UnsupportedGrant("grant_type must be refresh_token").
			WithDetail("grant_type", in.GrantType)
	}
	if in.RefreshToken == "" {
		return nil, apperr.Validation("refresh_token is required").WithDetail("field", "refresh_token")
	}

	cl, err := s.d.Tokens.Verify(in.RefreshToken, jwtx.KindRefresh)
	if err != nil {
		log.Debug("refresh token rejected", logger.Reason(jwtx.Reason(err)))
		return nil, apperr.Authentication("invalid refresh token", err)
	}
	log = log.With(logger.UserID(cl.Subject))

	if s.d.StrictRefreshRotation {
		ok, err := s.d.Ledger.Consume(ctx, "refresh:"+cl.ID, s.remaining(cl, s.d.RefreshTTL))
		if err != nil {
			log.Error("refresh ledger failed", logger.Err(err))
			return nil, apperr.Internal(err)
		}
		if !ok {
			log.Warn("refresh token reuse")
			return nil, apperr.Authentication("invalid refresh token", ErrRefreshReplayed)
		}
	}

	u, err := s.d.Users.GetByID(ctx, cl.Subject)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.Authentication("invalid refresh token", err)
		}
		log.Error("user lookup failed", logger.Err(err))
		return nil, apperr.Internal(err)
	}
	if !u.Active {
		return nil, apperr.Authentication("account is disabled", nil)
	}

	provider := u.Provider
	if provider == "" {
		provider = ProviderLocal
	}
	tr, err := s.issue(u, provider)
	if err != nil {
		log.Error("issue tokens failed", logger.Err(err))
		return nil, apperr.Internal(err)
	}
	log.Info("tokens refreshed")
	return &TokenResult{Tokens: *tr, UserID: u.ID, Provider: provider}, nil
}
