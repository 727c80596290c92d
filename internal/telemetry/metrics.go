// Package telemetry tracks request counters, latency percentiles, and the
// structured audit channel. Counters are process-lifetime and reset on
// restart; they are externally observable only through snapshots and the
// Prometheus registry.
package telemetry

import (
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultLatencyCapacity bounds the retained latency samples.
const DefaultLatencyCapacity = 2048

// Metrics is the lock-guarded counter set shared across the service.
type Metrics struct {
	mu sync.Mutex

	apiRequests   int64
	apiErrors     int64
	chatRequests  int64
	chatFallbacks int64
	chatRefusals  int64

	exportOutcomes map[string]int64
	providerEvents map[string]map[string]int64

	latencies []float64 // milliseconds, most recent last
	capacity  int

	prom *PromMetrics
}

// NewMetrics creates a metrics set with the default latency capacity.
// prom may be nil when no Prometheus registry is wired (tests).
func NewMetrics(prom *PromMetrics) *Metrics {
	return &Metrics{
		exportOutcomes: make(map[string]int64),
		providerEvents: make(map[string]map[string]int64),
		capacity:       DefaultLatencyCapacity,
		prom:           prom,
	}
}

// RecordAPIRequest counts one handled request and its latency. Status >= 400
// counts as an API error.
func (m *Metrics) RecordAPIRequest(status int, latency time.Duration) {
	ms := float64(latency.Microseconds()) / 1000.0

	m.mu.Lock()
	m.apiRequests++
	if status >= 400 {
		m.apiErrors++
	}
	m.latencies = append(m.latencies, ms)
	if len(m.latencies) > m.capacity {
		m.latencies = m.latencies[len(m.latencies)-m.capacity:]
	}
	m.mu.Unlock()

	if m.prom != nil {
		m.prom.ObserveRequest(status, ms)
	}
}

// RecordChat counts one chat request with its disposition flags.
func (m *Metrics) RecordChat(refused, fallback bool) {
	m.mu.Lock()
	m.chatRequests++
	if refused {
		m.chatRefusals++
	}
	if fallback {
		m.chatFallbacks++
	}
	m.mu.Unlock()

	if m.prom != nil {
		m.prom.ObserveChat(refused, fallback)
	}
}

// RecordExportOutcome counts one export attempt by outcome
// (served, blocked, failed).
func (m *Metrics) RecordExportOutcome(outcome string) {
	m.mu.Lock()
	m.exportOutcomes[outcome]++
	m.mu.Unlock()

	if m.prom != nil {
		m.prom.ObserveExport(outcome)
	}
}

// RecordProviderEvent satisfies the router's telemetry sink.
func (m *Metrics) RecordProviderEvent(provider, event string) {
	m.mu.Lock()
	byEvent, ok := m.providerEvents[provider]
	if !ok {
		byEvent = make(map[string]int64)
		m.providerEvents[provider] = byEvent
	}
	byEvent[event]++
	m.mu.Unlock()

	if m.prom != nil {
		m.prom.ObserveProviderEvent(provider, event)
	}
}

// ProviderEventCount returns one provider event counter.
func (m *Metrics) ProviderEventCount(provider, event string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.providerEvents[provider][event]
}

// Percentile computes the p-th latency percentile (0-100) by linear
// interpolation over a sorted copy of the retained samples. An empty sample
// set yields 0; a single sample yields itself.
func (m *Metrics) Percentile(p float64) float64 {
	m.mu.Lock()
	samples := make([]float64, len(m.latencies))
	copy(samples, m.latencies)
	m.mu.Unlock()

	if len(samples) == 0 {
		return 0
	}
	sort.Float64s(samples)
	if len(samples) == 1 {
		return samples[0]
	}

	rank := p / 100 * float64(len(samples)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return samples[lo]
	}
	frac := rank - float64(lo)
	return samples[lo] + frac*(samples[hi]-samples[lo])
}

// Snapshot returns the counter state for the ops surface.
func (m *Metrics) Snapshot() map[string]interface{} {
	p50 := m.Percentile(50)
	p95 := m.Percentile(95)
	p99 := m.Percentile(99)

	m.mu.Lock()
	defer m.mu.Unlock()

	providers := make(map[string]map[string]int64, len(m.providerEvents))
	for name, events := range m.providerEvents {
		c := make(map[string]int64, len(events))
		for k, v := range events {
			c[k] = v
		}
		providers[name] = c
	}
	exports := make(map[string]int64, len(m.exportOutcomes))
	for k, v := range m.exportOutcomes {
		exports[k] = v
	}

	return map[string]interface{}{
		"api_requests":    m.apiRequests,
		"api_errors":      m.apiErrors,
		"chat_requests":   m.chatRequests,
		"chat_fallbacks":  m.chatFallbacks,
		"chat_refusals":   m.chatRefusals,
		"export_outcomes": exports,
		"providers":       providers,
		"latency_ms": map[string]float64{
			"p50": p50,
			"p95": p95,
			"p99": p99,
		},
	}
}
