package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/rbac"
)

// RequireGuard aplica un rbac.Guard al principal cargado por RequireBearer.
// El guard es puro: el principal ya viene con roles y permisos.
func RequireGuard(g *rbac.Guard) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				apperr.Write(w, r, apperr.InvalidToken(errMissingBearer))
				return
			}
			if err := g.Check(p); err != nil {
				logger.From(r.Context()).Info("access denied", logger.String("guard", g.String()))
				apperr.Write(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
