package core

import "time"

// Citation is an authoritative legal source attached to an answer. An answer
// without at least one citation never leaves the system as-is.
type Citation struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Pin      string `json:"pin"`     // section/paragraph locator, "n/a" when unknown
	Snippet  string `json:"snippet,omitempty"`
}

// ChatRequest is the payload for POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Locale    string `json:"locale"`
	Mode      string `json:"mode"`
}

// FallbackInfo describes whether a non-primary provider produced the answer.
type FallbackInfo struct {
	Used     bool   `json:"used"`
	Provider string `json:"provider,omitempty"`
	Reason   string `json:"reason,omitempty"` // timeout, rate_limit, policy_block, provider_error
}

// ChatResponse is the payload returned by POST /api/chat.
type ChatResponse struct {
	Answer       string       `json:"answer"`
	Citations    []Citation   `json:"citations"`
	Confidence   string       `json:"confidence"` // low, medium, high
	Disclaimer   string       `json:"disclaimer"`
	FallbackUsed FallbackInfo `json:"fallback_used"`
}

// Confidence levels for chat responses.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Supported locales.
const (
	LocaleEnCA = "en-CA"
	LocaleFrCA = "fr-CA"
)

// ModeStandard is the only chat mode currently supported.
const ModeStandard = "standard"

// CaseSearchRequest is the payload for POST /api/search/cases.
type CaseSearchRequest struct {
	Query        string `json:"query"`
	Jurisdiction string `json:"jurisdiction"`
	Court        string `json:"court,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// CaseSearchResult is one ranked decision in a case search response.
type CaseSearchResult struct {
	SourceID     string    `json:"source_id"`
	CourtCode    string    `json:"court_code"`
	CaseID       string    `json:"case_id"`
	Title        string    `json:"title"`
	Citation     string    `json:"citation"`
	DecisionDate time.Time `json:"decision_date"`
	DecisionURL  string    `json:"decision_url"`
	PDFURL       string    `json:"pdf_url,omitempty"`
}
