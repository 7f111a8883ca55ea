package middlewares

import (
	"net"
	"net/http"
	"strconv"

	"github.com/dropDatabas3/authority/internal/apperr"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/rate"
)

// RateRecorder cuenta requests cortados por el limiter. Opcional.
type RateRecorder interface {
	RateLimited(scope string)
}

// WithRateLimit limita por IP de cliente dentro de scope. lim nil = sin límite.
// Si el backend falla se deja pasar el request (fail-open).
func WithRateLimit(lim rate.Limiter, scope string, rec RateRecorder) Middleware {
	return func(next http.Handler) http.Handler {
		if lim == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := lim.Allow(r.Context(), scope+":"+clientIP(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable",
					logger.Component("ratelimit"), logger.String("scope", scope), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				if rec != nil {
					rec.RateLimited(scope)
				}
				secs := int64(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.FormatInt(secs, 10))
				apperr.Write(w, r, apperr.RateLimited())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP usa RemoteAddr; detrás de un proxy el router monta chi RealIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
