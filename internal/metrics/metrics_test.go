package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/cache"
)

func TestCountersAndHandler(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.TokenIssued("access")
	m.TokenIssued("access")
	m.TokenRejected("access", "expired")
	m.Exchange("google", "ok")
	m.Exchange("", "provider_error")
	m.ProviderCall("google", "userinfo", 30*time.Millisecond, errors.New("x"))
	m.ObserveHTTP("post", "/token", 200, 5*time.Millisecond)
	m.RateLimited("authorize")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tokensIssued.WithLabelValues("access")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokensRejected.WithLabelValues("access", "expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues("unknown", "provider_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/token", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.providerCalls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("authorize")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "authority_tokens_issued_total")
	assert.Contains(t, string(body), "authority_code_exchanges_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TokenIssued("access")
		m.ObserveHTTP("GET", "/x", 200, time.Millisecond)
		m.InflightInc()
		m.InflightDec()
		_ = m.Register(prometheus.NewCounter(prometheus.CounterOpts{Name: "x"}))
	})
}

func TestRegisterTwiceIsTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.NoError(t, err)
}

func TestCacheCollector(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	c := cache.NewMemory("", 0)
	require.NoError(t, c.Set(context.Background(), "a", "1", 0))
	_, _ = c.Get(context.Background(), "a")
	_, _ = c.Get(context.Background(), "missing")
	require.NoError(t, m.RegisterCache(c))

	col := newCacheCollector(c)
	assert.Equal(t, 3, testutil.CollectAndCount(col))
}
