package caselaw

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The SCC publishes its decisions feed as RSS serialized to JSON. Item ids
// arrive as either strings or numbers depending on the feed generation path.

type sccFeed struct {
	RSS struct {
		Channel struct {
			Item []sccItem `json:"item"`
		} `json:"channel"`
	} `json:"rss"`
}

type sccItem struct {
	ID      flexString `json:"id"`
	Link    string     `json:"link"`
	Title   string     `json:"title"`
	PubDate string     `json:"pubDate"`
}

// flexString accepts a JSON string or number and normalizes to string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	return fmt.Errorf("id is neither string nor number: %s", string(data))
}

var sccDateLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC822,
	time.RFC822Z,
	"2006-01-02",
}

func parseFeedDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range sccDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

// ParseSCCFeed decodes the SCC JSON feed into decision records. Items
// without a recognizable neutral citation or date are skipped here; the
// validator reports them.
func ParseSCCFeed(payload []byte) ([]Decision, error) {
	var feed sccFeed
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	if err := dec.Decode(&feed); err != nil {
		return nil, fmt.Errorf("scc feed decode: %w", err)
	}

	out := make([]Decision, 0, len(feed.RSS.Channel.Item))
	for _, item := range feed.RSS.Channel.Item {
		citation := sccCitationRe.FindString(item.Title)
		date, dateErr := parseFeedDate(item.PubDate)

		caseID := string(item.ID)
		if caseID == "" {
			caseID = item.Link
		}
		url := item.Link
		if url == "" && caseID != "" {
			if _, err := strconv.Atoi(caseID); err == nil {
				url = "https://decisions.scc-csc.ca/scc-csc/scc-csc/en/item/" + caseID + "/index.do"
			}
		}

		d := Decision{
			SourceID:    SourceSCC,
			CourtCode:   CourtSCC,
			CaseID:      caseID,
			Title:       strings.TrimSpace(item.Title),
			Citation:    citation,
			DecisionURL: url,
		}
		if dateErr == nil {
			d.DecisionDate = date
		}
		out = append(out, d)
	}
	return out, nil
}
