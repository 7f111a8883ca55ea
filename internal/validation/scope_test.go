package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidScopeName(t *testing.T) {
	valid := []string{"a", "ab", "openid", "profile:read", "email:read:e2e123", "a_b-c.d:scope2",
		"a" + strings.Repeat("a", 62) + "b"}
	for _, v := range valid {
		assert.True(t, ValidScopeName(v), v)
	}

	invalid := []string{"", ":lead", "trail:", "bad space", "UPPER", "semicolon;hack",
		"a" + strings.Repeat("a", 63) + "b"}
	for _, v := range invalid {
		assert.False(t, ValidScopeName(v), v)
	}
}

func TestValidScope(t *testing.T) {
	assert.True(t, ValidScope(""))
	assert.True(t, ValidScope("openid email  profile"))
	assert.False(t, ValidScope("openid Email"))
	assert.False(t, ValidScope("openid;drop"))
	assert.False(t, ValidScope(strings.Repeat("s ", maxScopes+1)))
}
