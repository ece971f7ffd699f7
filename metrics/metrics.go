// Package metrics exposes Prometheus counters for logins and document store calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authbridge"

// Collector records login outcomes and store operations. It satisfies both
// collection.Observer and auth.LoginObserver.
type Collector struct {
	logins       *prometheus.CounterVec
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
}

// NewCollector registers the bridge metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Completed and failed logins by provider and outcome.",
		}, []string{"provider", "outcome"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Document store calls by operation, collection and result.",
		}, []string{"op", "collection", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_seconds",
			Help:      "Document store call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "collection"}),
	}

	reg.MustRegister(c.logins, c.storeOps, c.storeLatency)
	return c
}

func (c *Collector) ObserveLogin(provider, outcome string) {
	c.logins.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) ObserveStoreOp(op, collection string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.storeOps.WithLabelValues(op, collection, result).Inc()
	c.storeLatency.WithLabelValues(op, collection).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
