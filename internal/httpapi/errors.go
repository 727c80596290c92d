// Package httpapi is the JSON surface: route wiring, request validation,
// and the error envelope.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/immcad/backend/internal/middleware"
)

// Error envelope codes.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeProviderError     = "PROVIDER_ERROR"
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodePolicyBlocked     = "POLICY_BLOCKED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeUnauthorized      = "UNAUTHORIZED"
)

type errorBody struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	TraceID      string `json:"trace_id"`
	PolicyReason string `json:"policy_reason,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message, policyReason string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:         code,
		Message:      message,
		TraceID:      middleware.TraceIDFrom(r.Context()),
		PolicyReason: policyReason,
	}})
}
