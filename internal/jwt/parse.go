package jwt

import (
	"errors"
	"fmt"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Verify valida firma, iss/aud, exp/nbf/iat y que kind == expected.
// Es puro: no hace I/O. El error siempre envuelve uno de
// ErrMalformedToken, ErrExpiredToken, ErrWrongTokenKind o ErrInvalidToken.
func (s *Service) Verify(token string, expected Kind) (*Claims, error) {
	cl := &Claims{}
	tok, err := s.parser.ParseWithClaims(token, cl, s.keyfunc)
	if err != nil {
		return nil, classify(err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if cl.Kind != expected {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenKind, cl.Kind, expected)
	}
	if cl.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return cl, nil
}

func (s *Service) keyfunc(t *jwtv5.Token) (any, error) {
	if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return s.key, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}

// Reason devuelve un identificador corto del fallo para logs y métricas.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrWrongTokenKind):
		return "wrong_kind"
	default:
		return "invalid"
	}
}
