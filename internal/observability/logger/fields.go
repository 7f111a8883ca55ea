package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field  { return zap.String("request_id", v) }
func Method(v string) zap.Field     { return zap.String("method", v) }
func Path(v string) zap.Field       { return zap.String("path", v) }
func Status(v int) zap.Field        { return zap.Int("status", v) }
func DurationMs(v int64) zap.Field  { return zap.Int64("duration_ms", v) }
func Bytes(v int) zap.Field         { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field   { return zap.String("client_ip", v) }
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// ---- Dominio OAuth ----

func UserID(v string) zap.Field    { return zap.String("user_id", v) }
func ClientID(v string) zap.Field  { return zap.String("client_id", v) }
func Provider(v string) zap.Field  { return zap.String("provider", v) }
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }
func TokenKind(v string) zap.Field { return zap.String("token_kind", v) }

// Reason describe el motivo interno de un rechazo (nunca se expone al cliente).
func Reason(v string) zap.Field { return zap.String("reason", v) }

// MaskedEmail loguea el email enmascarado: "jo***@example.com".
func MaskedEmail(v string) zap.Field { return zap.String("email", MaskEmail(v)) }

// MaskEmail enmascara la parte local de un email.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return local[:1] + "***" + domain
	}
	return local[:2] + "***" + domain
}

// ---- Sistema ----

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
