package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prom.Registry

	cmsRequests  *prom.CounterVec
	cmsLatency   *prom.HistogramVec
	cacheHits    prom.Counter
	submissions  *prom.CounterVec
	httpRequests *prom.CounterVec
}

func New() *Metrics {
	reg := prom.NewRegistry()
	m := &Metrics{
		registry: reg,
		cmsRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "schoolsite",
			Name:      "cms_requests_total",
			Help:      "Requests sent to the content backend.",
		}, []string{"collection", "method", "outcome"}),
		cmsLatency: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "schoolsite",
			Name:      "cms_request_seconds",
			Help:      "Content backend round trip time.",
			Buckets:   prom.DefBuckets,
		}, []string{"method"}),
		cacheHits: prom.NewCounter(prom.CounterOpts{
			Namespace: "schoolsite",
			Name:      "cms_cache_hits_total",
			Help:      "Content reads served from the local cache.",
		}),
		submissions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "schoolsite",
			Name:      "submissions_total",
			Help:      "Form submissions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		httpRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "schoolsite",
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"route", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cmsRequests, m.cmsLatency, m.cacheHits, m.submissions, m.httpRequests,
	)
	return m
}

func (m *Metrics) ObserveCMS(collection, method, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.cmsRequests.WithLabelValues(collection, method, outcome).Inc()
	m.cmsLatency.WithLabelValues(method).Observe(took.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) Submission(kind, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Registry() *prom.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
