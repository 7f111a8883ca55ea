// Package stub registra providers conocidos que todavía no tienen adapter.
// Todas las operaciones fallan con providers.ErrNotImplemented.
package stub

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/authority/internal/providers"
)

type Provider struct{ name string }

// Factory devuelve una factory para el nombre dado.
func Factory(name string) providers.Factory {
	return func() (providers.Provider, error) {
		return &Provider{name: name}, nil
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) notImplemented(op string) error {
	return fmt.Errorf("%s %s: %w", p.name, op, providers.ErrNotImplemented)
}

func (p *Provider) AuthorizationURL(string, string, string, string) (string, error) {
	return "", p.notImplemented("authorization url")
}

func (p *Provider) ExchangeCode(context.Context, string, string, string) (*providers.TokenSet, error) {
	return nil, p.notImplemented("exchange")
}

func (p *Provider) ValidateIDToken(context.Context, string) (*providers.IDToken, error) {
	return nil, p.notImplemented("validate id_token")
}

func (p *Provider) UserInfo(context.Context, string) (*providers.UserInfo, error) {
	return nil, p.notImplemented("userinfo")
}

func (p *Provider) RefreshAccessToken(context.Context, string) (*providers.TokenSet, error) {
	return nil, p.notImplemented("refresh")
}
