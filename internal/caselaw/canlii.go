package caselaw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CanLIIClient is the licensed fallback when the official feeds are down.
// It browses the CanLII case database for the federal immigration courts.
type CanLIIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewCanLIIClient builds the fallback client. baseURL defaults to the
// public API host.
func NewCanLIIClient(apiKey, baseURL string, httpClient *http.Client) *CanLIIClient {
	if baseURL == "" {
		baseURL = "https://api.canlii.org/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &CanLIIClient{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// canliiDatabase maps court filters onto CanLII database ids.
func canliiDatabase(court string) string {
	switch strings.ToLower(strings.TrimSpace(court)) {
	case "scc":
		return "csc-scc"
	case "fca", "caf", "fca-caf":
		return "fca"
	default:
		return "fct"
	}
}

type canliiCaseList struct {
	Cases []struct {
		CaseID struct {
			EN string `json:"en"`
		} `json:"caseId"`
		Title    string `json:"title"`
		Citation string `json:"citation"`
	} `json:"cases"`
}

// Search browses recent decisions from the mapped database. CanLII browse
// results carry no decision date; records are returned with a zero date and
// rank purely on token score.
func (c *CanLIIClient) Search(ctx context.Context, court string) ([]Decision, error) {
	if c.apiKey == "" {
		return nil, &SourceUnavailableError{Reason: "canlii api key not configured"}
	}

	db := canliiDatabase(court)
	endpoint := fmt.Sprintf("%s/caseBrowse/en/%s/?offset=0&resultCount=100&api_key=%s",
		c.baseURL, db, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &SourceUnavailableError{Reason: "canlii unreachable", PerSource: []string{err.Error()}}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &SourceUnavailableError{Reason: fmt.Sprintf("canlii returned status %d", resp.StatusCode)}
	}

	var list canliiCaseList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, &SourceUnavailableError{Reason: "canlii payload parse error", PerSource: []string{err.Error()}}
	}

	out := make([]Decision, 0, len(list.Cases))
	for _, cs := range list.Cases {
		out = append(out, Decision{
			SourceID:    "CANLII",
			CourtCode:   courtCodeFromCitation(cs.Citation),
			CaseID:      cs.CaseID.EN,
			Title:       cs.Title,
			Citation:    cs.Citation,
			DecisionURL: fmt.Sprintf("https://www.canlii.org/en/ca/%s/doc/%s", db, cs.CaseID.EN),
		})
	}
	return out, nil
}

func courtCodeFromCitation(citation string) string {
	switch {
	case sccCitationRe.MatchString(citation):
		return CourtSCC
	case strings.Contains(citation, "FCA") || strings.Contains(citation, "CAF"):
		return CourtFCA
	default:
		return CourtFC
	}
}
