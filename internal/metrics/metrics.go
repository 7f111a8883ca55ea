// Package metrics expone los contadores Prometheus del authority: HTTP,
// emisión y rechazo de tokens, canjes y latencia de providers externos.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/authority/internal/cache"
)

const namespace = "authority"

// Metrics agrupa los collectors sobre un registry propio. Un *Metrics nil es
// válido y no registra nada.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInflight prometheus.Gauge

	tokensIssued   *prometheus.CounterVec
	tokensRejected *prometheus.CounterVec
	exchanges      *prometheus.CounterVec
	providerCalls  *prometheus.HistogramVec
	rateLimited    *prometheus.CounterVec
}

// New crea y registra las métricas. reg nil crea un registry nuevo con los
// collectors de runtime.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		if err := registerCollector(reg, collectors.NewGoCollector()); err != nil {
			return nil, err
		}
		if err := registerCollector(reg, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, err
		}
	}

	m := &Metrics{
		reg: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Número total de requests procesadas",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latencia de los requests HTTP",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Requests en vuelo",
		}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens emitidos por kind",
		}, []string{"kind"}),
		tokensRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_rejected_total",
			Help:      "Tokens rechazados por kind esperado y motivo",
		}, []string{"kind", "reason"}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_exchanges_total",
			Help:      "Canjes de authorization code por provider y resultado",
		}, []string{"provider", "outcome"}),
		providerCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Latencia de llamadas a identity providers externos",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider", "op", "result"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests cortados por el rate limiter",
		}, []string{"scope"}),
	}

	for _, c := range []prometheus.Collector{
		m.httpRequests, m.httpDuration, m.httpInflight,
		m.tokensIssued, m.tokensRejected, m.exchanges, m.providerCalls, m.rateLimited,
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler sirve /metrics para este registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Register agrega un collector extra (pools, cache).
func (m *Metrics) Register(c prometheus.Collector) error {
	if m == nil {
		return nil
	}
	return registerCollector(m.reg, c)
}

// RegisterDB expone las estadísticas de database/sql del store.
func (m *Metrics) RegisterDB(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return m.Register(collectors.NewDBStatsCollector(db, "identity"))
}

// RegisterCache expone hits/misses/keys del cache del ledger.
func (m *Metrics) RegisterCache(c cache.Client) error {
	if c == nil {
		return nil
	}
	return m.Register(newCacheCollector(c))
}

func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) TokenRejected(kind, reason string) {
	if m == nil {
		return
	}
	m.tokensRejected.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) Exchange(provider, outcome string) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	m.exchanges.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ProviderCall(provider, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerCalls.WithLabelValues(provider, op, result).Observe(d.Seconds())
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

// InflightInc/InflightDec marcan un request en vuelo.
func (m *Metrics) InflightInc() {
	if m != nil {
		m.httpInflight.Inc()
	}
}

func (m *Metrics) InflightDec() {
	if m != nil {
		m.httpInflight.Dec()
	}
}

// ObserveHTTP registra un request terminado. route debe ser el patrón del
// router (ej /admin/principals/{id}), nunca el path crudo.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	method = strings.ToUpper(method)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// registerCollector registra el collector, ignorando duplicados.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}

// cacheCollector lee cache.Stats en cada scrape.
type cacheCollector struct {
	c cache.Client

	keysDesc   *prometheus.Desc
	hitsDesc   *prometheus.Desc
	missesDesc *prometheus.Desc
}

func newCacheCollector(c cache.Client) *cacheCollector {
	return &cacheCollector{
		c:          c,
		keysDesc:   prometheus.NewDesc(namespace+"_cache_keys", "Keys en el cache del ledger", []string{"driver"}, nil),
		hitsDesc:   prometheus.NewDesc(namespace+"_cache_hits_total", "Hits del cache", []string{"driver"}, nil),
		missesDesc: prometheus.NewDesc(namespace+"_cache_misses_total", "Misses del cache", []string{"driver"}, nil),
	}
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keysDesc
	ch <- c.hitsDesc
	ch <- c.missesDesc
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := c.c.Stats(ctx)
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.keysDesc, prometheus.GaugeValue, float64(st.Keys), st.Driver)
	ch <- prometheus.MustNewConstMetric(c.hitsDesc, prometheus.CounterValue, float64(st.Hits), st.Driver)
	ch <- prometheus.MustNewConstMetric(c.missesDesc, prometheus.CounterValue, float64(st.Misses), st.Driver)
}
