package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromMetrics mirrors the internal counters onto a Prometheus registry for
// the /ops/metrics endpoint.
type PromMetrics struct {
	RequestTotal      *prometheus.CounterVec
	RequestLatency    prometheus.Histogram
	ChatTotal         *prometheus.CounterVec
	ExportTotal       *prometheus.CounterVec
	ProviderEvents    *prometheus.CounterVec
	IngestionOutcomes *prometheus.CounterVec
}

// NewPromMetrics registers all collectors on the given registry. Call once
// per process.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	factory := promauto.With(reg)
	return &PromMetrics{
		RequestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "immcad_api_requests_total",
				Help: "API requests handled, by status code",
			},
			[]string{"status"},
		),
		RequestLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "immcad_api_request_latency_ms",
				Help:    "API request latency in milliseconds",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
		),
		ChatTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "immcad_chat_requests_total",
				Help: "Chat requests by disposition",
			},
			[]string{"disposition"}, // answered, refused, fallback
		),
		ExportTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "immcad_export_outcomes_total",
				Help: "Case export attempts by outcome",
			},
			[]string{"outcome"},
		),
		ProviderEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "immcad_provider_events_total",
				Help: "Provider router events (success, failure, circuit transitions)",
			},
			[]string{"provider", "event"},
		),
		IngestionOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "immcad_ingestion_outcomes_total",
				Help: "Ingestion run outcomes per source",
			},
			[]string{"outcome"},
		),
	}
}

func (p *PromMetrics) ObserveRequest(status int, latencyMs float64) {
	p.RequestTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	p.RequestLatency.Observe(latencyMs)
}

func (p *PromMetrics) ObserveChat(refused, fallback bool) {
	switch {
	case refused:
		p.ChatTotal.WithLabelValues("refused").Inc()
	case fallback:
		p.ChatTotal.WithLabelValues("fallback").Inc()
	default:
		p.ChatTotal.WithLabelValues("answered").Inc()
	}
}

func (p *PromMetrics) ObserveExport(outcome string) {
	p.ExportTotal.WithLabelValues(outcome).Inc()
}

func (p *PromMetrics) ObserveProviderEvent(provider, event string) {
	p.ProviderEvents.WithLabelValues(provider, event).Inc()
}

func (p *PromMetrics) ObserveIngestionOutcome(outcome string) {
	p.IngestionOutcomes.WithLabelValues(outcome).Inc()
}
