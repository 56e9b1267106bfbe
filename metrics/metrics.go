// Package metrics holds the Prometheus collectors shared by the CMS client,
// the tag cache and the revalidation webhook. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "headpress"

// Metrics groups every collector headpress exports.
type Metrics struct {
	cmsRequests   *prometheus.CounterVec
	cmsLatency    *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	revalidations *prometheus.CounterVec
	tagsDropped   prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cmsRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cms_requests_total",
			Help:      "WordPress REST requests by content kind and HTTP status (0 = transport error).",
		}, []string{"kind", "status"}),
		cmsLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cms_request_duration_seconds",
			Help:      "WordPress REST request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Tag cache lookups by layer (data, page) and result (hit, miss).",
		}, []string{"layer", "result"}),
		revalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revalidations_total",
			Help:      "Revalidation webhook calls by response status.",
		}, []string{"status"}),
		tagsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revalidated_tags_total",
			Help:      "Cache tags invalidated through the webhook.",
		}),
	}
}

// ObserveFetch records one CMS request.
func (m *Metrics) ObserveFetch(kind string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.cmsRequests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	m.cmsLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// CacheLookup records a cache hit or miss for the given layer.
func (m *Metrics) CacheLookup(layer string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(layer, result).Inc()
}

// Revalidated records a webhook response and how many tags it dropped.
func (m *Metrics) Revalidated(status, tags int) {
	if m == nil {
		return
	}
	m.revalidations.WithLabelValues(strconv.Itoa(status)).Inc()
	m.tagsDropped.Add(float64(tags))
}
