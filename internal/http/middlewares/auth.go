package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

var errMissingBearer = errors.New("missing bearer token")

// TokenVerifier valida un token del kind esperado.
type TokenVerifier interface {
	Verify(token string, expected jwtx.Kind) (*jwtx.Claims, error)
}

// PrincipalLoader materializa el usuario con roles y permisos.
type PrincipalLoader interface {
	GetByID(ctx context.Context, id string) (*repository.User, error)
}

// RejectionRecorder cuenta tokens rechazados (métricas). Opcional.
type RejectionRecorder interface {
	TokenRejected(kind, reason string)
}

// RequireBearer valida Authorization: Bearer <access token>, carga el
// principal y lo deja en el contexto. Token ausente o inválido => 401.
func RequireBearer(v TokenVerifier, users PrincipalLoader, rec RejectionRecorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				apperr.Write(w, r, apperr.InvalidToken(errMissingBearer))
				return
			}

			cl, err := v.Verify(raw, jwtx.KindAccess)
			if err != nil {
				if rec != nil {
					rec.TokenRejected(string(jwtx.KindAccess), jwtx.Reason(err))
				}
				apperr.Write(w, r, apperr.InvalidToken(err))
				return
			}

			u, err := users.GetByID(r.Context(), cl.Subject)
			switch {
			case repository.IsNotFound(err):
				apperr.Write(w, r, apperr.InvalidToken(err))
				return
			case err != nil:
				apperr.Write(w, r, apperr.Internal(err))
				return
			case !u.Active:
				apperr.Write(w, r, apperr.Authorization("account is disabled"))
				return
			}

			ctx := WithClaims(r.Context(), cl)
			ctx = WithPrincipal(ctx, u)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(u.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < len("bearer ") || !strings.EqualFold(ah[:len("bearer ")], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(ah[len("bearer "):])
	return raw, raw != ""
}
