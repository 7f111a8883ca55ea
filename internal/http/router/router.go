// Package router arma el chi.Router del authority.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/http/controllers"
	"github.com/dropDatabas3/authority/internal/http/helpers"
	mw "github.com/dropDatabas3/authority/internal/http/middlewares"
	"github.com/dropDatabas3/authority/internal/metrics"
	"github.com/dropDatabas3/authority/internal/oauth"
	"github.com/dropDatabas3/authority/internal/rate"
	"github.com/dropDatabas3/authority/internal/rbac"
)

// Deps contiene lo necesario para montar las rutas.
type Deps struct {
	OAuth   oauth.Service
	Tokens  mw.TokenVerifier
	Users   controllers.UserLookup
	Metrics *metrics.Metrics // nil = sin /metrics
	Checks  map[string]controllers.Check
	Version string

	// Limiters por endpoint; nil = sin límite.
	AuthorizeLimit rate.Limiter
	TokenLimit     rate.Limiter
	// TrustProxy toma la IP de X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// adminRead protege la consulta de principals.
var adminRead = rbac.MustRequirePermissions(rbac.PermUsersRead)

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	oc := controllers.NewOAuthController(d.OAuth)
	pc := controllers.NewPrincipalController(d.Users)
	hc := controllers.NewHealthController(d.Version, d.Checks)

	r := chi.NewRouter()
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(
		chimw.RequestID,
		mw.WithLogging(d.Metrics),
		mw.WithRecover(),
		mw.WithSecurityHeaders(),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperr.Write(w, r, apperr.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error":   "method_not_allowed",
			"message": r.Method + " not allowed on " + r.URL.Path,
		})
	})

	r.Get("/healthz", hc.Healthz)
	r.Get("/readyz", hc.Readyz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.WithNoStore())
		r.With(mw.WithRateLimit(d.AuthorizeLimit, "authorize", d.Metrics)).Post("/authorize", oc.Authorize)
		r.With(mw.WithRateLimit(d.TokenLimit, "token", d.Metrics)).Post("/token", oc.Token)
		r.With(mw.WithRateLimit(d.TokenLimit, "refresh", d.Metrics)).Post("/refresh", oc.Refresh)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireBearer(d.Tokens, d.Users, d.Metrics))
		r.Get("/userinfo", pc.UserInfo)
		r.With(mw.RequireGuard(adminRead)).Get("/admin/principals/{id}", pc.Get)
	})

	return r
}
