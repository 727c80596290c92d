package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/immcad/backend/internal/caselaw"
	"github.com/immcad/backend/internal/core"
	"github.com/immcad/backend/internal/middleware"
)

const (
	maxMessageChars = 8000
	maxSearchLimit  = 50
	maxBodyBytes    = 64 << 10
	minSessionIDLen = 8
	maxSessionIDLen = 128
)

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError, "request body is not valid JSON", "")
		return false
	}
	return true
}

func (s *Server) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req core.ChatRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if n := len(req.SessionID); n < minSessionIDLen || n > maxSessionIDLen {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"session_id must be 8-128 characters", "")
			return
		}
		if n := len(req.Message); n < 1 || n > maxMessageChars {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"message must be 1-8000 characters", "")
			return
		}
		switch req.Locale {
		case "", core.LocaleEnCA, core.LocaleFrCA:
		default:
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"locale must be en-CA or fr-CA", "")
			return
		}
		if req.Mode != "" && req.Mode != core.ModeStandard {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"mode must be standard", "")
			return
		}

		traceID := middleware.TraceIDFrom(r.Context())
		resp, provErr := s.chat.Handle(r.Context(), req, traceID)
		if provErr != nil {
			writeError(w, r, http.StatusBadGateway, CodeProviderError,
				"all text-generation providers failed", "")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleSearchCases() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg != nil && !s.cfg.EnableCaseSearch {
			writeError(w, r, http.StatusServiceUnavailable, CodeSourceUnavailable,
				"case search is disabled", "case_search_disabled")
			return
		}

		var req core.CaseSearchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Query == "" {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"query is required", "")
			return
		}
		if req.Jurisdiction != "" && req.Jurisdiction != "ca" {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"jurisdiction must be ca", "")
			return
		}
		if req.Limit < 0 || req.Limit > maxSearchLimit {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"limit must be 0-50", "")
			return
		}
		if s.search == nil {
			writeError(w, r, http.StatusServiceUnavailable, CodeSourceUnavailable,
				"no case-law client configured", "")
			return
		}

		records, err := s.search.Search(r.Context(), req.Query, req.Court, req.Limit)
		if err != nil {
			s.writeCaseLawError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"results": toSearchResults(records),
		})
	}
}

type researchRequest struct {
	MatterSummary string `json:"matter_summary"`
	Limit         int    `json:"limit,omitempty"`
}

func (s *Server) handleResearchCases() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg != nil && !s.cfg.EnableCaseSearch {
			writeError(w, r, http.StatusServiceUnavailable, CodeSourceUnavailable,
				"case search is disabled", "case_search_disabled")
			return
		}

		var req researchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.MatterSummary == "" {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"matter_summary is required", "")
			return
		}
		if caselaw.PlanResearch(req.MatterSummary).TooBroad() {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"matter summary is too broad; include a docket, citation, or legal issue",
				"case_search_query_too_broad")
			return
		}
		if s.research == nil {
			writeError(w, r, http.StatusServiceUnavailable, CodeSourceUnavailable,
				"no case-law client configured", "")
			return
		}

		result, err := s.research.Research(r.Context(), req.MatterSummary, req.Limit)
		if err != nil {
			s.writeCaseLawError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"plan":    result.Plan,
			"results": toSearchResults(result.Results),
		})
	}
}

func (s *Server) writeCaseLawError(w http.ResponseWriter, r *http.Request, err error) {
	var unavailable *caselaw.SourceUnavailableError
	if errors.As(err, &unavailable) {
		writeError(w, r, http.StatusServiceUnavailable, CodeSourceUnavailable,
			"all case-law sources are currently unavailable", "")
		return
	}
	writeError(w, r, http.StatusBadGateway, CodeProviderError, "case-law lookup failed", "")
}

func toSearchResults(records []caselaw.Decision) []core.CaseSearchResult {
	out := make([]core.CaseSearchResult, 0, len(records))
	for _, d := range records {
		out = append(out, core.CaseSearchResult{
			SourceID:     d.SourceID,
			CourtCode:    d.CourtCode,
			CaseID:       d.CaseID,
			Title:        d.Title,
			Citation:     d.Citation,
			DecisionDate: d.DecisionDate,
			DecisionURL:  d.DecisionURL,
			PDFURL:       d.PDFURL,
		})
	}
	return out
}

type transparencyEntry struct {
	SourceID      string `json:"source_id"`
	SourceType    string `json:"source_type"`
	Instrument    string `json:"instrument"`
	URL           string `json:"url"`
	UpdateCadence string `json:"update_cadence"`
	SourceClass   string `json:"source_class,omitempty"`
	Freshness     string `json:"freshness"`
	LastSuccessAt string `json:"last_success_at,omitempty"`
}

func (s *Server) handleTransparency() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.registry == nil {
			writeError(w, r, http.StatusServiceUnavailable, CodeSourceUnavailable,
				"source registry not loaded", "")
			return
		}

		now := time.Now().UTC()
		entries := s.registry.All()
		out := make([]transparencyEntry, 0, len(entries))
		for _, e := range entries {
			te := transparencyEntry{
				SourceID:      e.SourceID,
				SourceType:    string(e.SourceType),
				Instrument:    e.Instrument,
				URL:           e.URL,
				UpdateCadence: string(e.UpdateCadence),
				Freshness:     "missing",
			}
			if s.policies != nil {
				if p := s.policies.ForSource(e.SourceID); p != nil {
					te.SourceClass = string(p.SourceClass)
				}
			}
			if s.checkpoints != nil {
				te.Freshness = s.checkpoints.Freshness(e.SourceID, e.UpdateCadence, now)
				if cp, ok := s.checkpoints.Get(e.SourceID); ok && !cp.LastSuccessAt.IsZero() {
					te.LastSuccessAt = cp.LastSuccessAt.UTC().Format(time.RFC3339)
				}
			}
			out = append(out, te)
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"jurisdiction": s.registry.Jurisdiction,
			"sources":      out,
		})
	}
}

func (s *Server) handleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env := ""
		if s.cfg != nil {
			env = s.cfg.Environment
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":      "ok",
			"environment": env,
		})
	}
}

func (s *Server) handleMetricsSnapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]interface{}{}
		if s.metrics != nil {
			payload["counters"] = s.metrics.Snapshot()
			payload["latency_ms"] = map[string]float64{
				"p50": s.metrics.Percentile(50),
				"p95": s.metrics.Percentile(95),
				"p99": s.metrics.Percentile(99),
			}
		}
		if s.router != nil {
			payload["provider_circuits"] = s.router.CircuitSnapshot()
		}
		writeJSON(w, http.StatusOK, payload)
	}
}
