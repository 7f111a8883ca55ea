// Package pkce implementa Proof Key for Code Exchange (RFC 7636), solo S256.
package pkce

import (
	"crypto/subtle"
	"fmt"

	tokens "github.com/dropDatabas3/authority/internal/security/token"
)

const (
	// MethodS256 es el único code_challenge_method soportado.
	MethodS256 = "S256"

	MinVerifierLen = 43
	MaxVerifierLen = 128

	// 48 bytes => 64 chars base64url.
	verifierBytes = 48
)

// GeneratePair devuelve un verifier aleatorio y su challenge S256.
func GeneratePair() (verifier, challenge string, err error) {
	verifier, err = tokens.GenerateOpaqueToken(verifierBytes)
	if err != nil {
		return "", "", fmt.Errorf("pkce: generate verifier: %w", err)
	}
	return verifier, Challenge(verifier), nil
}

// Challenge calcula base64url(sha256(verifier)) sin padding.
func Challenge(verifier string) string {
	return tokens.SHA256Base64URL(verifier)
}

// ValidVerifier chequea largo [43,128] y charset unreserved: A-Z a-z 0-9 - . _ ~
func ValidVerifier(v string) bool {
	if len(v) < MinVerifierLen || len(v) > MaxVerifierLen {
		return false
	}
	for i := 0; i < len(v); i++ {
		if !unreserved(v[i]) {
			return false
		}
	}
	return true
}

// ValidChallenge chequea la forma de un challenge S256 (43 chars base64url).
func ValidChallenge(c string) bool {
	if len(c) != 43 {
		return false
	}
	for i := 0; i < len(c); i++ {
		ch := c[i]
		if !(isAlnum(ch) || ch == '-' || ch == '_') {
			return false
		}
	}
	return true
}

// Verify recalcula el challenge y compara en tiempo constante.
// Cualquier entrada inválida devuelve false.
func Verify(verifier, challenge string) bool {
	if !ValidVerifier(verifier) || challenge == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Challenge(verifier)), []byte(challenge)) == 1
}

func unreserved(c byte) bool {
	return isAlnum(c) || c == '-' || c == '.' || c == '_' || c == '~'
}

func isAlnum(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
