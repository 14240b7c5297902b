package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the billing metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	DeliveriesTotal   *prometheus.CounterVec
	ProcessingSeconds *prometheus.HistogramVec
	CyclesGenerated   *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "billing"
	}

	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by provider and processing outcome",
		}, []string{"provider", "outcome"}),
		ProcessingSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_processing_seconds",
			Help:      "Time from receipt to recorded outcome of a webhook delivery",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		CyclesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_generated_total",
			Help:      "Next-cycle generation attempts by result",
		}, []string{"result"}),
	}

	reg.MustRegister(c.DeliveriesTotal)
	reg.MustRegister(c.ProcessingSeconds)
	reg.MustRegister(c.CyclesGenerated)

	return c
}

// Handler serves the collector's registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveDelivery(provider, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.DeliveriesTotal.WithLabelValues(provider, outcome).Inc()
	c.ProcessingSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (c *Collector) CycleGenerated(result string) {
	if c == nil {
		return
	}
	c.CyclesGenerated.WithLabelValues(result).Inc()
}
