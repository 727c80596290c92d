package caselaw

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Decisia serves the Federal Court and Federal Court of Appeal feeds as
// plain RSS 2.0 with RFC 822 publication dates.

type decisiaRSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []decisiaItem `xml:"item"`
	} `xml:"channel"`
}

type decisiaItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	GUID    string `xml:"guid"`
}

// ParseDecisiaFeed decodes an FC/FCA RSS payload into decision records for
// the given source and court.
func ParseDecisiaFeed(payload []byte, sourceID, courtCode string) ([]Decision, error) {
	var feed decisiaRSS
	if err := xml.Unmarshal(payload, &feed); err != nil {
		return nil, fmt.Errorf("decisia feed decode: %w", err)
	}

	out := make([]Decision, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		citation := federalCitationRe.FindString(item.Title)
		date, dateErr := parseFeedDate(item.PubDate)

		caseID := strings.TrimSpace(item.GUID)
		if caseID == "" {
			caseID = item.Link
		}

		d := Decision{
			SourceID:    sourceID,
			CourtCode:   courtCode,
			CaseID:      caseID,
			Title:       strings.TrimSpace(item.Title),
			Citation:    citation,
			DecisionURL: strings.TrimSpace(item.Link),
		}
		if dateErr == nil {
			d.DecisionDate = date
		}
		out = append(out, d)
	}
	return out, nil
}
