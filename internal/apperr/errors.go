// Package apperr define la taxonomía de errores del authority y su traducción
// a respuestas HTTP. Los services devuelven *Error; el borde HTTP es el único
// punto que lo convierte en status + payload.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifica la categoría de un error de negocio.
type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindUnsupportedGrant Kind = "unsupported_grant_type"
	KindMissingCode      Kind = "invalid_request"
	KindInvalidCode      Kind = "invalid_grant"
	KindInvalidToken     Kind = "invalid_token"
	KindAuthentication   Kind = "authentication_error"
	KindAuthorization    Kind = "authorization_error"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindProvider         Kind = "provider_error"
	KindNotImplemented   Kind = "not_implemented"
	KindRateLimited      Kind = "rate_limited"
	KindInternal         Kind = "internal_error"
)

// Status devuelve el código HTTP asociado al kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindUnsupportedGrant, KindMissingCode, KindInvalidCode:
		return http.StatusBadRequest
	case KindInvalidToken, KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindProvider:
		return http.StatusBadGateway
	case KindNotImplemented:
		return http.StatusNotImplemented
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error es el error estándar de la aplicación.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por Kind, así errors.Is(err, apperr.ErrProvider) funciona con
// cualquier instancia del mismo kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Status es un atajo a Kind.Status().
func (e *Error) Status() int { return e.Kind.Status() }

// WithDetail devuelve una copia con un detalle adicional.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// WithCause devuelve una copia envolviendo la causa (solo para logs).
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// New crea un error de negocio.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap crea un error de negocio con causa.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Kind-only sentinels, para errors.Is.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrUnsupportedGrant = &Error{Kind: KindUnsupportedGrant}
	ErrMissingCode      = &Error{Kind: KindMissingCode}
	ErrInvalidCode      = &Error{Kind: KindInvalidCode}
	ErrInvalidToken     = &Error{Kind: KindInvalidToken}
	ErrAuthentication   = &Error{Kind: KindAuthentication}
	ErrAuthorization    = &Error{Kind: KindAuthorization}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrProvider         = &Error{Kind: KindProvider}
	ErrNotImplemented   = &Error{Kind: KindNotImplemented}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrInternal         = &Error{Kind: KindInternal}
)

// Constructores por kind.

func Validation(msg string) *Error       { return New(KindValidation, msg) }
func UnsupportedGrant(msg string) *Error { return New(KindUnsupportedGrant, msg) }
func MissingCode() *Error                { return New(KindMissingCode, "code is required") }
func InvalidCode(err error) *Error {
	return Wrap(KindInvalidCode, "invalid or expired authorization code", err)
}
func InvalidToken(err error) *Error {
	return Wrap(KindInvalidToken, "unauthorized", err)
}
func Authentication(msg string, err error) *Error { return Wrap(KindAuthentication, msg, err) }
func Authorization(msg string) *Error             { return New(KindAuthorization, msg) }
func NotFound(msg string) *Error                  { return New(KindNotFound, msg) }
func Conflict(msg string, err error) *Error       { return Wrap(KindConflict, msg, err) }
func Provider(msg string, err error) *Error       { return Wrap(KindProvider, msg, err) }
func NotImplemented(msg string) *Error            { return New(KindNotImplemented, msg) }
func RateLimited() *Error                         { return New(KindRateLimited, "too many requests") }
func Internal(err error) *Error {
	return Wrap(KindInternal, "internal server error", err)
}

// From normaliza cualquier error a *Error. Lo desconocido es Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// KindOf devuelve el kind de err, o KindInternal si no es *Error.
func KindOf(err error) Kind {
	return From(err).Kind
}
