package provider

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/immcad/backend/internal/core"
)

// Telemetry event names emitted per provider.
const (
	EventSuccess         = "success"
	EventFailure         = "failure"
	EventFallbackSuccess = "fallback_success"
	EventCircuitOpen     = "circuit_open"
	EventCircuitSkip     = "circuit_skip"
)

// TelemetrySink receives per-provider routing events.
type TelemetrySink interface {
	RecordProviderEvent(provider, event string)
}

type nopSink struct{}

func (nopSink) RecordProviderEvent(string, string) {}

// circuitState tracks one provider's breaker. openUntil zero means the
// circuit is closed; openUntil in the past means half-open on next probe.
// lastError is remembered so a skipped provider still contributes a
// fallback reason.
type circuitState struct {
	failures  int
	openUntil time.Time
	lastError *Error
}

// Result is a successful routing outcome.
type Result struct {
	Answer         string
	Provider       string
	FallbackUsed   bool
	FallbackReason ErrorCode
}

// Router iterates providers in configured order, skipping any whose circuit
// is open, and returns the first success. Circuit state is per-process and
// serialized behind the router's lock.
type Router struct {
	providers []Provider
	primary   string
	threshold int
	window    time.Duration
	telemetry TelemetrySink
	logger    *log.Logger

	mu     sync.Mutex
	states map[string]*circuitState

	// injectable monotonic clock for tests
	now func() time.Time
}

// NewRouter builds a router. failureThreshold must be >= 1 and openWindow
// must be positive; out-of-range values are clamped to the defaults (3, 30s).
func NewRouter(providers []Provider, primary string, failureThreshold int, openWindow time.Duration, sink TelemetrySink) *Router {
	if failureThreshold < 1 {
		failureThreshold = 3
	}
	if openWindow <= 0 {
		openWindow = 30 * time.Second
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &Router{
		providers: providers,
		primary:   primary,
		threshold: failureThreshold,
		window:    openWindow,
		telemetry: sink,
		logger:    log.New(log.Writer(), "[ROUTER] ", log.LstdFlags),
		states:    make(map[string]*circuitState),
		now:       time.Now,
	}
}

// Route tries each provider in order and returns the first success. When a
// non-primary provider answers, the result carries the previous provider's
// error code as the fallback reason. When every provider fails or is
// skipped, the last classified error is returned (synthesized if nothing
// was even attempted).
func (r *Router) Route(ctx context.Context, message string, citations []core.Citation, locale string) (*Result, *Error) {
	var lastErr *Error

	for _, p := range r.providers {
		if remembered, open := r.openCircuit(p.Name()); open {
			r.telemetry.RecordProviderEvent(p.Name(), EventCircuitSkip)
			if remembered != nil {
				lastErr = remembered
			}
			continue
		}

		answer, err := p.Generate(ctx, message, citations, locale)
		if err != nil {
			lastErr = Classify(p.Name(), err)
			r.recordFailure(p.Name(), lastErr)
			continue
		}

		r.recordSuccess(p.Name())
		res := &Result{
			Answer:       answer,
			Provider:     p.Name(),
			FallbackUsed: p.Name() != r.primary,
		}
		if res.FallbackUsed {
			r.telemetry.RecordProviderEvent(p.Name(), EventFallbackSuccess)
			if lastErr != nil {
				res.FallbackReason = lastErr.Code
			}
		}
		return res, nil
	}

	if lastErr == nil {
		lastErr = &Error{Provider: r.primary, Code: CodeProviderError, Message: "no provider available"}
	}
	return nil, lastErr
}

// openCircuit reports whether a provider's circuit is open, along with the
// remembered error from the failure that opened it. A circuit whose window
// has elapsed is left alone so the next attempt acts as the half-open probe.
func (r *Router) openCircuit(name string) (*Error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[name]
	if !ok || st.openUntil.IsZero() {
		return nil, false
	}
	if r.now().Before(st.openUntil) {
		return st.lastError, true
	}
	return nil, false
}

func (r *Router) recordSuccess(name string) {
	r.mu.Lock()
	st := r.state(name)
	st.failures = 0
	st.openUntil = time.Time{}
	st.lastError = nil
	r.mu.Unlock()

	r.telemetry.RecordProviderEvent(name, EventSuccess)
}

func (r *Router) recordFailure(name string, classified *Error) {
	r.mu.Lock()
	st := r.state(name)
	st.failures++
	st.lastError = classified
	opened := false
	if st.failures >= r.threshold {
		st.openUntil = r.now().Add(r.window)
		opened = true
	}
	r.mu.Unlock()

	r.telemetry.RecordProviderEvent(name, EventFailure)
	if opened {
		r.telemetry.RecordProviderEvent(name, EventCircuitOpen)
		r.logger.Printf("circuit open: provider=%s window=%s", name, r.window)
	}
}

func (r *Router) state(name string) *circuitState {
	st, ok := r.states[name]
	if !ok {
		st = &circuitState{}
		r.states[name] = st
	}
	return st
}

// CircuitSnapshot reports the breaker state per provider for the ops surface.
func (r *Router) CircuitSnapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	out := make(map[string]string, len(r.providers))
	for _, p := range r.providers {
		st, ok := r.states[p.Name()]
		switch {
		case !ok || st.openUntil.IsZero():
			out[p.Name()] = "closed"
		case now.Before(st.openUntil):
			out[p.Name()] = "open"
		default:
			out[p.Name()] = "half-open"
		}
	}
	return out
}
