// Package middlewares contiene los decoradores HTTP del authority: logging,
// recover, headers, autenticación bearer y el adaptador del RBAC guard.
package middlewares

import "net/http"

// Middleware es un decorador de http.Handler. Es compatible con chi.Router.Use.
type Middleware func(http.Handler) http.Handler

// Chain aplica middlewares en orden de izquierda a derecha.
// Chain(h, A, B, C) ejecuta: A -> B -> C -> h
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
