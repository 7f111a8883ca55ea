// Package validation agrupa reglas de formato compartidas por los handlers.
package validation

import (
	"regexp"
	"strings"
)

// Un scope: minúsculas, empieza y termina en [a-z0-9], en el medio además
// [:_.-], 1..64 chars. Ej: openid, profile:read, a_b-c.d:scope2.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

const maxScopes = 32

func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidScope valida un parámetro scope (nombres separados por espacios).
// Vacío es válido: el provider usa sus scopes por defecto.
func ValidScope(scope string) bool {
	names := strings.Fields(scope)
	if len(names) > maxScopes {
		return false
	}
	for _, n := range names {
		if !ValidScopeName(n) {
			return false
		}
	}
	return true
}
