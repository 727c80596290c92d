package chat

import (
	"context"
	"log"

	"github.com/immcad/backend/internal/core"
	"github.com/immcad/backend/internal/provider"
	"github.com/immcad/backend/internal/telemetry"
)

// AnswerRouter is the provider-routing capability the service depends on.
type AnswerRouter interface {
	Route(ctx context.Context, message string, citations []core.Citation, locale string) (*provider.Result, *provider.Error)
}

// ChatMetrics is the subset of telemetry the service records to.
type ChatMetrics interface {
	RecordChat(refused, fallback bool)
}

// Service is the grounded answering pipeline: policy gate, grounding,
// provider routing, and citation enforcement.
type Service struct {
	gate     *PolicyGate
	grounder Grounder
	router   AnswerRouter
	pool     *WorkerPool
	auditor  *telemetry.Auditor
	metrics  ChatMetrics
	trusted  []string
	logger   *log.Logger
}

// Options configures optional service behavior.
type Options struct {
	// TrustedDomains, when non-empty, restricts citations to the listed
	// hosts (and their subdomains) before enforcement.
	TrustedDomains []string
	// Pool runs provider calls off the request goroutine. Nil means
	// provider calls run in-line.
	Pool *WorkerPool
}

// NewService wires the pipeline. grounder and router are required; nil
// auditor or metrics disable those emissions.
func NewService(grounder Grounder, router AnswerRouter, auditor *telemetry.Auditor, metrics ChatMetrics, opts Options) *Service {
	return &Service{
		gate:     NewPolicyGate(),
		grounder: grounder,
		router:   router,
		pool:     opts.Pool,
		auditor:  auditor,
		metrics:  metrics,
		trusted:  opts.TrustedDomains,
		logger:   log.New(log.Writer(), "[CHAT] ", log.LstdFlags),
	}
}

// Handle runs one chat request through the pipeline. A non-nil error means
// the provider router was exhausted; everything else resolves to a response.
func (s *Service) Handle(ctx context.Context, req core.ChatRequest, traceID string) (*core.ChatResponse, *provider.Error) {
	locale := req.Locale
	if locale == "" {
		locale = core.LocaleEnCA
	}
	mode := req.Mode
	if mode == "" {
		mode = core.ModeStandard
	}

	if s.gate.Refused(req.Message) {
		s.audit(telemetry.AuditEvent{
			EventType:     telemetry.AuditPolicyBlock,
			TraceID:       traceID,
			Locale:        locale,
			Mode:          mode,
			MessageLength: len(req.Message),
		})
		s.recordChat(true, false)
		return &core.ChatResponse{
			Answer:     PolicyRefusalText,
			Citations:  []core.Citation{},
			Confidence: core.ConfidenceLow,
			Disclaimer: Disclaimer,
			FallbackUsed: core.FallbackInfo{
				Used:   false,
				Reason: "policy_block",
			},
		}, nil
	}

	citations := s.grounder.Ground(ctx, req.Message, locale)
	citations = FilterTrustedDomains(citations, s.trusted)

	result, routeErr := s.route(ctx, req.Message, citations, locale)
	if routeErr != nil {
		s.audit(telemetry.AuditEvent{
			EventType:     telemetry.AuditProviderError,
			TraceID:       traceID,
			Locale:        locale,
			Mode:          mode,
			MessageLength: len(req.Message),
			Provider:      routeErr.Provider,
			ErrorCode:     string(routeErr.Code),
		})
		return nil, routeErr
	}

	answer, finalCitations, confidence := EnforceCitations(result.Answer, citations)

	s.audit(telemetry.AuditEvent{
		EventType:     telemetry.AuditChatAnswered,
		TraceID:       traceID,
		Locale:        locale,
		Mode:          mode,
		MessageLength: len(req.Message),
		Provider:      result.Provider,
	})
	s.recordChat(false, result.FallbackUsed)

	resp := &core.ChatResponse{
		Answer:     answer,
		Citations:  finalCitations,
		Confidence: confidence,
		Disclaimer: Disclaimer,
		FallbackUsed: core.FallbackInfo{
			Used: result.FallbackUsed,
		},
	}
	if result.FallbackUsed {
		resp.FallbackUsed.Provider = result.Provider
		resp.FallbackUsed.Reason = string(result.FallbackReason)
	}
	return resp, nil
}

// route dispatches the provider call onto the worker pool. When the pool is
// absent or its queue is full, the call runs in-line on the request
// goroutine.
func (s *Service) route(ctx context.Context, message string, citations []core.Citation, locale string) (*provider.Result, *provider.Error) {
	if s.pool == nil {
		return s.router.Route(ctx, message, citations, locale)
	}

	var (
		result *provider.Result
		rerr   *provider.Error
	)
	done := make(chan struct{})
	submitted := s.pool.TrySubmit(func() {
		result, rerr = s.router.Route(ctx, message, citations, locale)
		close(done)
	})
	if !submitted {
		s.logger.Printf("worker pool saturated, running provider call in-line")
		return s.router.Route(ctx, message, citations, locale)
	}
	<-done
	return result, rerr
}

func (s *Service) audit(ev telemetry.AuditEvent) {
	if s.auditor != nil {
		s.auditor.Emit(ev)
	}
}

func (s *Service) recordChat(refused, fallback bool) {
	if s.metrics != nil {
		s.metrics.RecordChat(refused, fallback)
	}
}
