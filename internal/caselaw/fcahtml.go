package caselaw

import (
	"html"
	"regexp"
	"strings"
)

// The FCA decision list page is used as a fallback when the RSS feed does
// not parse. The markup is a plain anchor list; a lenient regex scan is
// enough and tolerates attribute reordering and surrounding noise.
var (
	fcaAnchorRe = regexp.MustCompile(`(?is)<a[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	fcaDateRe   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	htmlTagRe   = regexp.MustCompile(`(?s)<[^>]+>`)
)

// ParseFCAHTML extracts decision records from the FCA decisions HTML list.
// Only anchors whose text carries a federal neutral citation are kept.
func ParseFCAHTML(payload []byte) []Decision {
	doc := string(payload)
	matches := fcaAnchorRe.FindAllStringSubmatchIndex(doc, -1)

	var out []Decision
	for _, m := range matches {
		href := doc[m[2]:m[3]]
		text := strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(doc[m[4]:m[5]], " ")))
		citation := federalCitationRe.FindString(text)
		if citation == "" {
			continue
		}

		d := Decision{
			SourceID:    SourceFCA,
			CourtCode:   CourtFCA,
			CaseID:      href,
			Title:       text,
			Citation:    citation,
			DecisionURL: href,
		}
		// a nearby ISO date, scanned from the anchor to the next anchor
		tail := doc[m[1]:]
		if next := fcaAnchorRe.FindStringIndex(tail); next != nil {
			tail = tail[:next[0]]
		}
		if raw := fcaDateRe.FindString(tail); raw != "" {
			if t, err := parseFeedDate(raw); err == nil {
				d.DecisionDate = t
			}
		}
		out = append(out, d)
	}
	return out
}
