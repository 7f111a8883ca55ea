package jwt

import (
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config del servicio de tokens. Se construye una vez al arranque.
type Config struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	// Now permite inyectar un reloj (tests). Default time.Now.
	Now func() time.Time
}

// Service firma y verifica tokens. Es inmutable y seguro para uso concurrente.
type Service struct {
	key    []byte
	iss    string
	aud    string
	now    func() time.Time
	parser *jwtv5.Parser
}

func NewService(cfg Config) (*Service, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, ErrWeakKey
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithTimeFunc(now),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtv5.WithAudience(cfg.Audience))
	}

	return &Service{
		key:    key,
		iss:    cfg.Issuer,
		aud:    cfg.Audience,
		now:    now,
		parser: jwtv5.NewParser(opts...),
	}, nil
}

// MintAccess emite un access token con identidad + claims registrados.
func (s *Service) MintAccess(c AccessClaims, ttl time.Duration) (string, error) {
	return s.mint(KindAccess, c.Subject, ttl, func(cl *Claims) {
		cl.Email = c.Email
		cl.Name = c.Name
		cl.Provider = c.Provider
	})
}

// MintRefresh emite un refresh token; el payload se limita al subject.
func (s *Service) MintRefresh(userID string, ttl time.Duration) (string, error) {
	return s.mint(KindRefresh, userID, ttl, nil)
}

// MintAuthCode emite un authorization code firmado (kind=auth_code).
func (s *Service) MintAuthCode(c AuthCodeClaims, ttl time.Duration) (string, error) {
	return s.mint(KindAuthCode, c.Subject, ttl, func(cl *Claims) {
		cl.Email = c.Email
		cl.CodeChallenge = c.CodeChallenge
		cl.CodeChallengeMethod = c.CodeChallengeMethod
		cl.RedirectURI = c.RedirectURI
	})
}

func (s *Service) mint(kind Kind, sub string, ttl time.Duration, fill func(*Claims)) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	if sub == "" {
		return "", fmt.Errorf("jwt: mint %s: empty subject", kind)
	}
	now := s.now().UTC()
	cl := &Claims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    s.iss,
			Subject:   sub,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
			// jti único: dos tokens del mismo segundo nunca coinciden.
			ID: uuid.NewString(),
		},
		Kind: kind,
	}
	if s.aud != "" {
		cl.Audience = jwtv5.ClaimStrings{s.aud}
	}
	if fill != nil {
		fill(cl)
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, cl)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign %s: %w", kind, err)
	}
	return signed, nil
}
