package oauth

import (
	"context"
	"time"

	"github.com/dropDatabas3/authority/internal/cache"
)

// Ledger registra identificadores de un solo uso (jti de codes y refresh).
type Ledger interface {
	// Consume marca key como usada. false si ya lo estaba.
	Consume(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// NoopLedger acepta todo: codes y refresh quedan limitados solo por TTL.
type NoopLedger struct{}

func (NoopLedger) Consume(context.Context, string, time.Duration) (bool, error) { return true, nil }

// CacheLedger implementa Ledger sobre cache.Client (SetNX).
type CacheLedger struct {
	c cache.Client
}

func NewCacheLedger(c cache.Client) *CacheLedger { return &CacheLedger{c: c} }

func (l *CacheLedger) Consume(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.c.SetNX(ctx, "ledger:"+key, "1", ttl)
}
