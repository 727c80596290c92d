package telemetry

import (
	"io"
	"log/slog"
	"os"
)

// Audit event types.
const (
	AuditPolicyBlock   = "policy_block"
	AuditProviderError = "provider_error"
	AuditChatAnswered  = "chat_answered"
	AuditExportBlocked = "export_blocked"
	AuditExportServed  = "export_served"
)

// AuditEvent is a structured audit record. It never carries the raw user
// message, only its length.
type AuditEvent struct {
	EventType     string
	TraceID       string
	Locale        string
	Mode          string
	MessageLength int
	Provider      string
	ErrorCode     string
}

// Auditor writes audit events to a dedicated structured log channel.
type Auditor struct {
	logger *slog.Logger
}

// NewAuditor builds an auditor writing JSON lines to w. A nil writer uses
// stderr.
func NewAuditor(w io.Writer) *Auditor {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{})
	return &Auditor{logger: slog.New(handler).With("channel", "audit")}
}

// Emit writes one audit event.
func (a *Auditor) Emit(ev AuditEvent) {
	attrs := []any{
		"event_type", ev.EventType,
		"trace_id", ev.TraceID,
		"locale", ev.Locale,
		"mode", ev.Mode,
		"message_length", ev.MessageLength,
	}
	if ev.Provider != "" {
		attrs = append(attrs, "provider", ev.Provider)
	}
	if ev.ErrorCode != "" {
		attrs = append(attrs, "provider_error_code", ev.ErrorCode)
	}
	a.logger.Info("audit", attrs...)
}
