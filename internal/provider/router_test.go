package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immcad/backend/internal/core"
)

type fakeProvider struct {
	name    string
	answers []string
	errs    []error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, message string, citations []core.Citation, locale string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.answers) {
		return f.answers[i], nil
	}
	if len(f.answers) > 0 {
		return f.answers[len(f.answers)-1], nil
	}
	return "", errors.New("exhausted")
}

type captureSink struct {
	mu     sync.Mutex
	events map[string]int
}

func newCaptureSink() *captureSink {
	return &captureSink{events: make(map[string]int)}
}

func (c *captureSink) RecordProviderEvent(provider, event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[provider+"."+event]++
}

func (c *captureSink) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[key]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestRouter(providers []Provider, primary string, threshold int, window time.Duration) (*Router, *captureSink, *fakeClock) {
	sink := newCaptureSink()
	clock := &fakeClock{now: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)}
	r := NewRouter(providers, primary, threshold, window, sink)
	r.now = clock.Now
	return r, sink, clock
}

func TestRoutePrimarySuccess(t *testing.T) {
	openai := &fakeProvider{name: "openai", answers: []string{"Informational answer."}}
	gemini := &fakeProvider{name: "gemini", answers: []string{"X"}}
	r, sink, _ := newTestRouter([]Provider{openai, gemini}, "openai", 3, 30*time.Second)

	res, rerr := r.Route(context.Background(), "study permit rules", nil, core.LocaleEnCA)
	require.Nil(t, rerr)
	assert.Equal(t, "Informational answer.", res.Answer)
	assert.Equal(t, "openai", res.Provider)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, 1, sink.count("openai.success"))
	assert.Equal(t, 0, gemini.calls)
}

func TestRouteFallbackCarriesReason(t *testing.T) {
	openai := &fakeProvider{name: "openai", errs: []error{errors.New("request timeout")}}
	gemini := &fakeProvider{name: "gemini", answers: []string{"X"}}
	r, sink, _ := newTestRouter([]Provider{openai, gemini}, "openai", 3, 30*time.Second)

	res, rerr := r.Route(context.Background(), "q", nil, core.LocaleEnCA)
	require.Nil(t, rerr)
	assert.Equal(t, "X", res.Answer)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, "gemini", res.Provider)
	assert.Equal(t, CodeTimeout, res.FallbackReason)
	assert.Equal(t, 1, sink.count("openai.failure"))
	assert.Equal(t, 1, sink.count("gemini.fallback_success"))
}

func TestRouteCircuitOpensAtThresholdAndSkips(t *testing.T) {
	timeoutErr := errors.New("deadline exceeded")
	openai := &fakeProvider{name: "openai", errs: []error{timeoutErr, timeoutErr, timeoutErr, timeoutErr}}
	gemini := &fakeProvider{name: "gemini", answers: []string{"X"}}
	r, sink, _ := newTestRouter([]Provider{openai, gemini}, "openai", 3, 30*time.Second)

	// Three failing requests trip the breaker.
	for i := 0; i < 3; i++ {
		res, rerr := r.Route(context.Background(), "q", nil, core.LocaleEnCA)
		require.Nil(t, rerr)
		assert.True(t, res.FallbackUsed)
	}
	assert.Equal(t, 1, sink.count("openai.circuit_open"))
	assert.Equal(t, 3, openai.calls)

	// Fourth request: openai is open, skipped without a call.
	res, rerr := r.Route(context.Background(), "q", nil, core.LocaleEnCA)
	require.Nil(t, rerr)
	assert.Equal(t, "gemini", res.Provider)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, CodeTimeout, res.FallbackReason, "skipped provider contributes its remembered error")
	assert.Equal(t, 3, openai.calls, "open circuit short-circuits the call")
	assert.Equal(t, 1, sink.count("openai.circuit_skip"))
	assert.Equal(t, 4, sink.count("gemini.fallback_success"))
}

func TestRouteHalfOpenProbeResetsOnSuccess(t *testing.T) {
	failing := errors.New("timeout")
	openai := &fakeProvider{name: "openai", errs: []error{failing, failing, failing, nil}, answers: []string{"", "", "", "recovered"}}
	r, sink, clock := newTestRouter([]Provider{openai}, "openai", 3, 30*time.Second)

	for i := 0; i < 3; i++ {
		_, rerr := r.Route(context.Background(), "q", nil, core.LocaleEnCA)
		require.NotNil(t, rerr)
	}
	assert.Equal(t, "open", r.CircuitSnapshot()["openai"])

	// Inside the window every call is skipped; the remembered error surfaces.
	_, rerr := r.Route(context.Background(), "q", nil, core.LocaleEnCA)
	require.NotNil(t, rerr)
	assert.Equal(t, CodeTimeout, rerr.Code)
	assert.Equal(t, 3, openai.calls)

	// After the window, one probe is allowed and success closes the circuit.
	clock.Advance(31 * time.Second)
	assert.Equal(t, "half-open", r.CircuitSnapshot()["openai"])

	res, rerr2 := r.Route(context.Background(), "q", nil, core.LocaleEnCA)
	require.Nil(t, rerr2)
	assert.Equal(t, "recovered", res.Answer)
	assert.Equal(t, "closed", r.CircuitSnapshot()["openai"])
	assert.Equal(t, 1, sink.count("openai.success"))
}

func TestRouteHalfOpenFailureReopens(t *testing.T) {
	failing := errors.New("timeout")
	openai := &fakeProvider{name: "openai", errs: []error{failing, failing, failing, failing}}
	r, _, clock := newTestRouter([]Provider{openai}, "openai", 3, 30*time.Second)

	for i := 0; i < 3; i++ {
		r.Route(context.Background(), "q", nil, core.LocaleEnCA)
	}
	clock.Advance(31 * time.Second)

	// Probe fails: circuit re-opens for a fresh window.
	_, rerr := r.Route(context.Background(), "q", nil, core.LocaleEnCA)
	require.NotNil(t, rerr)
	assert.Equal(t, "open", r.CircuitSnapshot()["openai"])

	clock.Advance(29 * time.Second)
	assert.Equal(t, "open", r.CircuitSnapshot()["openai"])
	clock.Advance(2 * time.Second)
	assert.Equal(t, "half-open", r.CircuitSnapshot()["openai"])
}

func TestRouteAllProvidersExhausted(t *testing.T) {
	openai := &fakeProvider{name: "openai", errs: []error{errors.New("quota exceeded")}}
	gemini := &fakeProvider{name: "gemini", errs: []error{errors.New("boom")}}
	r, _, _ := newTestRouter([]Provider{openai, gemini}, "openai", 3, 30*time.Second)

	res, rerr := r.Route(context.Background(), "q", nil, core.LocaleEnCA)
	assert.Nil(t, res)
	require.NotNil(t, rerr)
	assert.Equal(t, "gemini", rerr.Provider)
	assert.Equal(t, CodeProviderError, rerr.Code)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{errors.New("request timeout"), CodeTimeout},
		{errors.New("context deadline exceeded"), CodeTimeout},
		{errors.New("rate limit hit"), CodeRateLimit},
		{errors.New("quota exhausted"), CodeRateLimit},
		{errors.New("boom"), CodeProviderError},
		{ErrNoChoices, CodeProviderError},
	}
	for _, tc := range cases {
		got := Classify("openai", tc.err)
		assert.Equal(t, tc.want, got.Code, "err=%v", tc.err)
	}

	// Already-classified errors pass through untouched.
	pe := &Error{Provider: "gemini", Code: CodeRateLimit, Message: "x"}
	assert.Same(t, pe, Classify("openai", pe))
}
