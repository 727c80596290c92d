// Package caselaw fetches, parses, and ranks Canadian court decisions from
// official feeds with a licensed fallback.
package caselaw

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Registered case-law source identifiers.
const (
	SourceSCC = "SCC_DECISIONS"
	SourceFC  = "FC_DECISIONS"
	SourceFCA = "FCA_DECISIONS"
)

// Court codes.
const (
	CourtSCC = "SCC"
	CourtFC  = "FC"
	CourtFCA = "FCA"
)

// Decision is one court decision record.
type Decision struct {
	SourceID     string    `json:"source_id"`
	CourtCode    string    `json:"court_code"`
	CaseID       string    `json:"case_id"`
	Title        string    `json:"title"`
	Citation     string    `json:"citation"`
	DecisionDate time.Time `json:"decision_date"`
	DecisionURL  string    `json:"decision_url"`
	PDFURL       string    `json:"pdf_url,omitempty"`
}

// Neutral-citation patterns per feed family.
var (
	sccCitationRe     = regexp.MustCompile(`\d{4}\s+SCC\s+\d+`)
	federalCitationRe = regexp.MustCompile(`\d{4}\s+(FC|FCA|CAF)\s+\d+`)
)

// SourceUnavailableError means no upstream case-law source produced records.
// PerSource carries the individual failures for diagnostics.
type SourceUnavailableError struct {
	Reason    string
	PerSource []string
}

func (e *SourceUnavailableError) Error() string {
	if len(e.PerSource) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.PerSource, "; "))
}
