package apperr

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dropDatabas3/authority/internal/observability/logger"
)

type payload struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// Write serializa err como {error, message, details, request_id}.
// Los errores internos nunca exponen la causa; se loguean.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	ae := From(err)
	status := ae.Status()

	resp := payload{
		Error:     string(ae.Kind),
		Message:   ae.Message,
		Details:   ae.Details,
		RequestID: chimw.GetReqID(r.Context()),
	}

	log := logger.From(r.Context())
	switch {
	case ae.Kind == KindInternal:
		resp.Message = "internal server error"
		resp.Details = nil
		log.Error("request failed", logger.Status(status), logger.Err(ae.Err))
	case ae.Err != nil:
		log.Debug("request rejected", logger.Status(status), logger.Reason(string(ae.Kind)), logger.Err(ae.Err))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="`+string(ae.Kind)+`"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
