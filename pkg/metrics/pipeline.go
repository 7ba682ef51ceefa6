package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts checkout and payment-callback outcomes and tracks
// gateway round-trip latency.
type PipelineMetrics struct {
	checkouts *prometheus.CounterVec
	callbacks *prometheus.CounterVec
	gateway   *prometheus.HistogramVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callback_total",
		Help: "Payment gateway callbacks by kind and outcome.",
	}, []string{"kind", "outcome"})
	gateway := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_seconds",
		Help:    "Payment gateway round-trip latency by call.",
		Buckets: prometheus.DefBuckets,
	}, []string{"call"})
	reg.MustRegister(checkouts, callbacks, gateway)
	return &PipelineMetrics{
		checkouts: checkouts,
		callbacks: callbacks,
		gateway:   gateway,
	}
}

// IncCheckout records one checkout attempt with the given outcome.
func (p *PipelineMetrics) IncCheckout(outcome string) {
	if p == nil || p.checkouts == nil {
		return
	}
	p.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCallback records one gateway callback with the given kind and outcome.
func (p *PipelineMetrics) IncCallback(kind, outcome string) {
	if p == nil || p.callbacks == nil {
		return
	}
	p.callbacks.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// ObserveGateway records one gateway round trip for the named call.
func (p *PipelineMetrics) ObserveGateway(call string, seconds float64) {
	if p == nil || p.gateway == nil {
		return
	}
	p.gateway.WithLabelValues(normalizeLabel(call)).Observe(seconds)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
