package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/authority/internal/http/dto"
	"github.com/dropDatabas3/authority/internal/http/helpers"
	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// Check es un probe de readiness (store, cache).
type Check func(ctx context.Context) error

// HealthController maneja /healthz y /readyz.
type HealthController struct {
	version string
	checks  map[string]Check
}

func NewHealthController(version string, checks map[string]Check) *HealthController {
	return &HealthController{version: version, checks: checks}
}

// Healthz es liveness: responde 200 mientras el proceso atienda.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok", Version: c.version})
}

// Readyz corre los checks con timeout; alguno falla => 503.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	names := make([]string, 0, len(c.checks))
	for n := range c.checks {
		names = append(names, n)
	}
	sort.Strings(names)

	resp := dto.HealthResponse{Status: "ready", Version: c.version, Components: map[string]string{}}
	status := http.StatusOK
	for _, n := range names {
		if err := c.checks[n](ctx); err != nil {
			log.Warn("readiness check failed", logger.Component(n), logger.Err(err))
			resp.Components[n] = "down"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[n] = "up"
	}
	helpers.WriteJSON(w, status, resp)
}
