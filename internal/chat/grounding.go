package chat

import (
	"context"
	"net/url"
	"strings"

	"github.com/immcad/backend/internal/core"
)

// DefaultMaxCitations bounds the citations attached to an answer.
const DefaultMaxCitations = 3

// Fallback values used when a retriever omits optional citation fields.
const (
	fallbackCitationURL = "https://www.canada.ca/en/services/immigration-citizenship.html"
	fallbackCitationPin = "n/a"
)

// Grounder maps a message to an ordered list of candidate citations.
type Grounder interface {
	Ground(ctx context.Context, message, locale string) []core.Citation
}

// baselineCitation is the IRPA anchor every grounded answer can fall back on.
func baselineCitation() core.Citation {
	return core.Citation{
		SourceID: "IRPA",
		Title:    "Immigration and Refugee Protection Act, SC 2001, c 27",
		URL:      "https://laws-lois.justice.gc.ca/eng/acts/i-2.5/",
		Pin:      "s 3",
		Snippet:  "Objectives of the Act with respect to immigration and refugees.",
	}
}

// StaticGrounder always returns the fixed IRPA baseline.
type StaticGrounder struct{}

func (StaticGrounder) Ground(ctx context.Context, message, locale string) []core.Citation {
	return []core.Citation{baselineCitation()}
}

// KeywordBundle pairs trigger keywords with the citations they unlock.
type KeywordBundle struct {
	Keywords  []string
	Citations []core.Citation
}

// KeywordGrounder scans the message for configured keyword sets and returns
// their citation bundles, always including the baseline.
type KeywordGrounder struct {
	bundles []KeywordBundle
	max     int
}

// NewKeywordGrounder builds a keyword grounder. maxCitations <= 0 uses the
// default.
func NewKeywordGrounder(bundles []KeywordBundle, maxCitations int) *KeywordGrounder {
	if maxCitations <= 0 {
		maxCitations = DefaultMaxCitations
	}
	return &KeywordGrounder{bundles: bundles, max: maxCitations}
}

// DefaultKeywordBundles covers the common immigration topics.
func DefaultKeywordBundles() []KeywordBundle {
	return []KeywordBundle{
		{
			Keywords: []string{"refugee", "asylum", "protection claim"},
			Citations: []core.Citation{{
				SourceID: "IRPA",
				Title:    "Immigration and Refugee Protection Act, SC 2001, c 27",
				URL:      "https://laws-lois.justice.gc.ca/eng/acts/i-2.5/page-8.html",
				Pin:      "s 96",
				Snippet:  "Convention refugee definition.",
			}},
		},
		{
			Keywords: []string{"sponsor", "sponsorship", "family class"},
			Citations: []core.Citation{{
				SourceID: "IRPR",
				Title:    "Immigration and Refugee Protection Regulations, SOR/2002-227",
				URL:      "https://laws-lois.justice.gc.ca/eng/regulations/sor-2002-227/page-21.html",
				Pin:      "s 130",
				Snippet:  "Sponsorship requirements for the family class.",
			}},
		},
		{
			Keywords: []string{"citizenship", "naturalization", "citizenship test"},
			Citations: []core.Citation{{
				SourceID: "CITIZENSHIP_ACT",
				Title:    "Citizenship Act, RSC 1985, c C-29",
				URL:      "https://laws-lois.justice.gc.ca/eng/acts/c-29/page-1.html",
				Pin:      "s 5",
				Snippet:  "Grant of citizenship requirements.",
			}},
		},
		{
			Keywords: []string{"study permit", "student visa", "work permit"},
			Citations: []core.Citation{{
				SourceID: "IRPR",
				Title:    "Immigration and Refugee Protection Regulations, SOR/2002-227",
				URL:      "https://laws-lois.justice.gc.ca/eng/regulations/sor-2002-227/page-38.html",
				Pin:      "s 216",
				Snippet:  "Issuance of study permits.",
			}},
		},
	}
}

func (g *KeywordGrounder) Ground(ctx context.Context, message, locale string) []core.Citation {
	haystack := strings.ToLower(message)
	out := []core.Citation{baselineCitation()}
	seen := map[string]bool{out[0].SourceID + out[0].Pin: true}

	for _, bundle := range g.bundles {
		matched := false
		for _, kw := range bundle.Keywords {
			if strings.Contains(haystack, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, c := range bundle.Citations {
			key := c.SourceID + c.Pin
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
			if len(out) >= g.max {
				return out
			}
		}
	}
	return out
}

// RetrievedPassage is one hit from an external retrieval adapter.
type RetrievedPassage struct {
	TextSnippet string
	SourceID    string
	Title       string
	URL         string
	Pin         string
}

// Retriever is the external retrieval capability.
type Retriever interface {
	Retrieve(ctx context.Context, message, locale string, limit int) ([]RetrievedPassage, error)
}

// RetrieverGrounder delegates to an external retriever and fills missing
// optional fields with fallback values. Retrieval failure degrades to the
// static baseline rather than failing the chat request.
type RetrieverGrounder struct {
	retriever Retriever
	max       int
}

func NewRetrieverGrounder(r Retriever, maxCitations int) *RetrieverGrounder {
	if maxCitations <= 0 {
		maxCitations = DefaultMaxCitations
	}
	return &RetrieverGrounder{retriever: r, max: maxCitations}
}

func (g *RetrieverGrounder) Ground(ctx context.Context, message, locale string) []core.Citation {
	passages, err := g.retriever.Retrieve(ctx, message, locale, g.max)
	if err != nil || len(passages) == 0 {
		return []core.Citation{baselineCitation()}
	}

	out := make([]core.Citation, 0, g.max)
	for _, p := range passages {
		if p.SourceID == "" {
			continue
		}
		c := core.Citation{
			SourceID: p.SourceID,
			Title:    p.Title,
			URL:      p.URL,
			Pin:      p.Pin,
			Snippet:  p.TextSnippet,
		}
		if c.Title == "" {
			c.Title = p.SourceID
		}
		if c.URL == "" {
			c.URL = fallbackCitationURL
		}
		if c.Pin == "" {
			c.Pin = fallbackCitationPin
		}
		out = append(out, c)
		if len(out) >= g.max {
			break
		}
	}
	if len(out) == 0 {
		return []core.Citation{baselineCitation()}
	}
	return out
}

// FilterTrustedDomains drops citations whose URL host is not in the
// allow-list. An empty allow-list disables filtering (hardened mode off).
func FilterTrustedDomains(citations []core.Citation, trusted []string) []core.Citation {
	if len(trusted) == 0 {
		return citations
	}
	var out []core.Citation
	for _, c := range citations {
		u, err := url.Parse(c.URL)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		for _, domain := range trusted {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
