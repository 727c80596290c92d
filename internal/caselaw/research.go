package caselaw

import (
	"context"
	"regexp"
	"strings"
)

// ResearchPlan is the structured reading of a lawyer's matter summary.
type ResearchPlan struct {
	IssueTags    []string `json:"issue_tags"`
	Court        string   `json:"court,omitempty"`
	Posture      string   `json:"posture,omitempty"`
	FactKeywords []string `json:"fact_keywords"`
	Queries      []string `json:"queries"`
	Specific     bool     `json:"specific"`
}

type issuePattern struct {
	tag string
	re  *regexp.Regexp
}

// Ordered: first match wins position, all matches are collected.
var issuePatterns = []issuePattern{
	{"procedural_fairness", regexp.MustCompile(`procedural fairness|natural justice|duty of fairness`)},
	{"inadmissibility", regexp.MustCompile(`\binadmissib`)},
	{"admissibility", regexp.MustCompile(`\badmissib`)},
	{"credibility", regexp.MustCompile(`\bcredibilit`)},
	{"refugee_protection", regexp.MustCompile(`\brefugee\b|\basylum\b|convention refugee|\bpersecution\b`)},
	{"humanitarian_compassionate", regexp.MustCompile(`\bhumanitarian\b|\bcompassionate\b|\bh&c\b`)},
	{"judicial_review", regexp.MustCompile(`judicial review`)},
	{"removal_order", regexp.MustCompile(`removal order|\bdeportation\b|exclusion order`)},
	{"residency_obligation", regexp.MustCompile(`residency obligation|residence requirement`)},
}

var (
	courtFCARe = regexp.MustCompile(`\b(fca|caf)\b|federal court of appeal`)
	courtSCCRe = regexp.MustCompile(`\bscc\b|supreme court`)
	courtFCRe  = regexp.MustCompile(`\b(fc|fct)\b|federal court`)

	appealRe         = regexp.MustCompile(`\bappeal\b`)
	judicialReviewRe = regexp.MustCompile(`judicial review|\bleave\b`)

	factTokenRe = regexp.MustCompile(`[a-z0-9]+`)

	// docket "A-1234-23" or a neutral citation marks a specific case query
	docketRe          = regexp.MustCompile(`\b[A-Za-z]-\d{1,5}-\d{2}\b`)
	neutralCitationRe = regexp.MustCompile(`(?i)\b\d{4}\s+(scc|fc|fca|caf)\s+\d+\b`)
)

var factStopwords = map[string]bool{
	"about": true, "after": true, "against": true, "applicant": true,
	"application": true, "before": true, "being": true, "canada": true,
	"case": true, "client": true, "could": true, "court": true,
	"decision": true, "federal": true, "filed": true, "having": true,
	"hearing": true, "matter": true, "officer": true, "other": true,
	"regarding": true, "review": true, "should": true, "their": true,
	"there": true, "these": true, "under": true, "where": true,
	"whether": true, "which": true, "while": true, "would": true,
}

const (
	maxFactKeywords     = 12
	maxExpandedQueries  = 5
	factKeywordsInQuery = 6
)

// PlanResearch reads a matter summary into issue tags, target court,
// procedural posture, fact keywords, and a ranked set of candidate queries.
func PlanResearch(summary string) ResearchPlan {
	lowered := strings.ToLower(summary)

	plan := ResearchPlan{
		Specific: docketRe.MatchString(summary) || neutralCitationRe.MatchString(summary),
	}

	for _, p := range issuePatterns {
		if p.re.MatchString(lowered) {
			plan.IssueTags = append(plan.IssueTags, p.tag)
		}
	}

	switch {
	case courtFCARe.MatchString(lowered):
		plan.Court = "fca"
	case courtSCCRe.MatchString(lowered):
		plan.Court = "scc"
	case courtFCRe.MatchString(lowered):
		plan.Court = "fc"
	}

	switch {
	case appealRe.MatchString(lowered):
		plan.Posture = "appeal"
	case judicialReviewRe.MatchString(lowered):
		plan.Posture = "judicial_review"
	}

	plan.FactKeywords = extractFactKeywords(lowered, plan.Specific)
	plan.Queries = expandQueries(strings.TrimSpace(summary), plan)
	return plan
}

// extractFactKeywords keeps tokens of five or more characters that are not
// stopwords, deduplicated in order, capped at twelve. A specific case query
// bypasses the stopword filter so docket and citation fragments survive.
func extractFactKeywords(lowered string, specific bool) []string {
	tokens := factTokenRe.FindAllString(lowered, -1)
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, tok := range tokens {
		if len(tok) < 5 && !specific {
			continue
		}
		if !specific && factStopwords[tok] {
			continue
		}
		if len(tok) < 2 {
			continue
		}
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
		if len(out) >= maxFactKeywords {
			break
		}
	}
	return out
}

func expandQueries(original string, plan ResearchPlan) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] || len(out) >= maxExpandedQueries {
			return
		}
		seen[q] = true
		out = append(out, q)
	}

	add(original)
	for _, tag := range plan.IssueTags {
		add(original + " " + strings.ReplaceAll(tag, "_", " "))
	}
	if plan.Court != "" {
		add(original + " " + strings.ToUpper(plan.Court))
	}
	if plan.Posture != "" {
		add(original + " " + strings.ReplaceAll(plan.Posture, "_", " "))
	}
	if len(plan.FactKeywords) > 0 {
		n := len(plan.FactKeywords)
		if n > factKeywordsInQuery {
			n = factKeywordsInQuery
		}
		add(strings.Join(plan.FactKeywords[:n], " "))
	}
	return out
}

// TooBroad reports whether the matter summary lacks the specificity needed
// for a useful case search. A docket or neutral citation, any recognized
// issue, or at least two fact keywords is enough.
func (p ResearchPlan) TooBroad() bool {
	if p.Specific {
		return false
	}
	if len(p.IssueTags) > 0 {
		return false
	}
	return len(p.FactKeywords) < 2
}

// ResearchService plans queries from a matter summary and runs them against
// the search service, merging deduplicated results.
type ResearchService struct {
	search *SearchService
}

func NewResearchService(search *SearchService) *ResearchService {
	return &ResearchService{search: search}
}

// ResearchResult pairs the plan with the merged ranked decisions.
type ResearchResult struct {
	Plan    ResearchPlan `json:"plan"`
	Results []Decision   `json:"results"`
}

// Research plans and executes the candidate queries. Per-query source
// failures only surface when every query failed and nothing was found.
func (s *ResearchService) Research(ctx context.Context, summary string, limit int) (*ResearchResult, error) {
	plan := PlanResearch(summary)
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var (
		merged  []Decision
		seen    = make(map[string]bool)
		lastErr error
	)
	for _, q := range plan.Queries {
		records, err := s.search.Search(ctx, q, plan.Court, limit)
		if err != nil {
			lastErr = err
			continue
		}
		for _, r := range records {
			key := r.SourceID + "|" + r.CaseID
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, r)
		}
	}

	if len(merged) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return &ResearchResult{Plan: plan, Results: truncate(merged, limit)}, nil
}
