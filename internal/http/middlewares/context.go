package middlewares

import (
	"context"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
)

type ctxKey string

const (
	ctxClaimsKey    ctxKey = "claims"
	ctxPrincipalKey ctxKey = "principal"
)

// WithClaims inyecta las claims del access token.
func WithClaims(ctx context.Context, cl *jwtx.Claims) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, cl)
}

// WithPrincipal inyecta el usuario materializado (roles y permisos ya cargados).
func WithPrincipal(ctx context.Context, u *repository.User) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, u)
}

// GetClaims devuelve nil si RequireBearer no corrió.
func GetClaims(ctx context.Context) *jwtx.Claims {
	cl, _ := ctx.Value(ctxClaimsKey).(*jwtx.Claims)
	return cl
}

// GetPrincipal devuelve nil si RequireBearer no corrió.
func GetPrincipal(ctx context.Context) *repository.User {
	u, _ := ctx.Value(ctxPrincipalKey).(*repository.User)
	return u
}
