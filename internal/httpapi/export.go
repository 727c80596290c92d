package httpapi

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/immcad/backend/internal/middleware"
	"github.com/immcad/backend/internal/telemetry"
)

type exportRequest struct {
	SourceID      string `json:"source_id"`
	DocumentURL   string `json:"document_url"`
	ApprovalToken string `json:"approval_token,omitempty"`
}

var errRedirectNotAllowed = errors.New("redirect target host not allowed")

// handleExportCases proxies a court document download behind the source
// policy gate. Redirects to hosts outside the source's allow-list are
// refused before any byte is downloaded.
func (s *Server) handleExportCases() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exportRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.SourceID == "" || req.DocumentURL == "" {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"source_id and document_url are required", "")
			return
		}

		target, err := url.Parse(req.DocumentURL)
		if err != nil || target.Host == "" {
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"document_url is not a valid absolute URL", "")
			return
		}
		if s.cfg != nil && s.cfg.DocumentRequireHTTPS && target.Scheme != "https" {
			s.recordExport(r, "blocked")
			writeError(w, r, http.StatusUnprocessableEntity, CodeValidationError,
				"document_url must use https", "document_url_must_be_https")
			return
		}

		if s.cfg == nil || s.cfg.ExportPolicyGateEnabled {
			if s.policies == nil {
				s.recordExport(r, "blocked")
				writeError(w, r, http.StatusUnprocessableEntity, CodePolicyBlocked,
					"export policy is not loaded", "export_policy_unavailable")
				return
			}
			entry := s.policies.ForSource(req.SourceID)
			if entry == nil || !entry.ExportFulltextAllowed {
				s.recordExport(r, "blocked")
				writeError(w, r, http.StatusUnprocessableEntity, CodePolicyBlocked,
					"full-text export is not permitted for this source",
					"export_fulltext_not_allowed_for_source")
				return
			}
			if req.ApprovalToken == "" {
				s.recordExport(r, "blocked")
				writeError(w, r, http.StatusUnprocessableEntity, CodePolicyBlocked,
					"an approval token is required for document export",
					"export_approval_token_required")
				return
			}
		}

		allowed := s.allowedRedirectHosts(req.SourceID, target)
		resp, err := s.fetchDocument(r, req.DocumentURL, allowed)
		if err != nil {
			s.recordExport(r, "blocked")
			if errors.Is(err, errRedirectNotAllowed) {
				writeError(w, r, http.StatusUnprocessableEntity, CodePolicyBlocked,
					"document redirect target is not an approved host",
					"export_redirect_url_not_allowed_for_source")
				return
			}
			writeError(w, r, http.StatusServiceUnavailable, CodeSourceUnavailable,
				"document source did not respond", "")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			s.recordExport(r, "failed")
			writeError(w, r, http.StatusServiceUnavailable, CodeSourceUnavailable,
				"document source returned an error", "")
			return
		}

		s.recordExport(r, "served")
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/pdf"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		io.Copy(w, resp.Body)
	}
}

// allowedRedirectHosts is the requested document host plus the registered
// source's own host. Hosts compare including the port so a redirect to the
// same name on a different port is still refused.
func (s *Server) allowedRedirectHosts(sourceID string, target *url.URL) map[string]bool {
	allowed := map[string]bool{strings.ToLower(target.Host): true}
	if s.registry != nil {
		if entry := s.registry.Get(sourceID); entry != nil {
			if u, err := url.Parse(entry.URL); err == nil {
				allowed[strings.ToLower(u.Host)] = true
			}
		}
	}
	return allowed
}

func (s *Server) fetchDocument(r *http.Request, documentURL string, allowedHosts map[string]bool) (*http.Response, error) {
	base := s.exportHTTP
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}

	client := &http.Client{
		Transport: base.Transport,
		Timeout:   base.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			if s.cfg != nil && s.cfg.DocumentRequireHTTPS && req.URL.Scheme != "https" {
				return errRedirectNotAllowed
			}
			if !allowedHosts[strings.ToLower(req.URL.Host)] {
				return errRedirectNotAllowed
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, documentURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")
	return client.Do(req)
}

func (s *Server) recordExport(r *http.Request, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordExportOutcome(outcome)
	}
	if s.auditor != nil {
		eventType := telemetry.AuditExportBlocked
		if outcome == "served" {
			eventType = telemetry.AuditExportServed
		}
		s.auditor.Emit(telemetry.AuditEvent{
			EventType: eventType,
			TraceID:   middleware.TraceIDFrom(r.Context()),
		})
	}
}
