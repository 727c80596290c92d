package caselaw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sccFeedJSON = `{
  "rss": {
    "channel": {
      "item": [
        {
          "id": 20103,
          "link": "https://decisions.scc-csc.ca/scc-csc/scc-csc/en/item/20103/index.do",
          "title": "R. v. Doe, 2024 SCC 3",
          "pubDate": "Fri, 19 Jan 2024 00:00:00 GMT"
        },
        {
          "id": "20104",
          "title": "Reference re Something, 2024 SCC 4",
          "pubDate": "Mon, 05 Feb 2024 00:00:00 GMT"
        }
      ]
    }
  }
}`

func TestParseSCCFeed(t *testing.T) {
	records, err := ParseSCCFeed([]byte(sccFeedJSON))
	require.NoError(t, err)
	require.Len(t, records, 2)

	// numeric id coerced to string
	assert.Equal(t, "20103", records[0].CaseID)
	assert.Equal(t, "2024 SCC 3", records[0].Citation)
	assert.Equal(t, CourtSCC, records[0].CourtCode)
	assert.Equal(t, time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC), records[0].DecisionDate)

	// string id, missing link derives the canonical item URL
	assert.Equal(t, "20104", records[1].CaseID)
	assert.Contains(t, records[1].DecisionURL, "/item/20104/")
}

func TestParseSCCFeedRejectsGarbage(t *testing.T) {
	_, err := ParseSCCFeed([]byte("<html>not json</html>"))
	require.Error(t, err)

	report := ParseErrorReport(err)
	assert.Equal(t, 1, report.RecordsInvalid)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "payload_parse_error")
}

const fcFeedRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Federal Court Decisions</title>
    <item>
      <title>Doe v Canada (Citizenship and Immigration), 2024 FC 10</title>
      <link>https://decisions.fct-cf.gc.ca/fc-cf/decisions/en/item/525001/index.do</link>
      <guid>525001</guid>
      <pubDate>Tue, 16 Jan 2024 05:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Untitled minute entry</title>
      <link>https://decisions.fct-cf.gc.ca/fc-cf/decisions/en/item/525002/index.do</link>
      <pubDate>not a date</pubDate>
    </item>
  </channel>
</rss>`

func TestParseDecisiaFeed(t *testing.T) {
	records, err := ParseDecisiaFeed([]byte(fcFeedRSS), SourceFC, CourtFC)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "2024 FC 10", records[0].Citation)
	assert.Equal(t, "525001", records[0].CaseID)
	assert.Equal(t, time.Date(2024, 1, 16, 5, 0, 0, 0, time.UTC), records[0].DecisionDate)

	// second record has no citation and a bad date
	assert.Empty(t, records[1].Citation)
	assert.True(t, records[1].DecisionDate.IsZero())
}

func TestValidateDecisions(t *testing.T) {
	records, err := ParseDecisiaFeed([]byte(fcFeedRSS), SourceFC, CourtFC)
	require.NoError(t, err)

	report := ValidateDecisions(records)
	assert.Equal(t, 2, report.RecordsTotal)
	assert.Equal(t, 1, report.RecordsValid)
	assert.Equal(t, 1, report.RecordsInvalid)
	assert.Len(t, report.Errors, 2) // missing citation + unparseable date

	valid := Valid(records)
	require.Len(t, valid, 1)
	assert.Equal(t, "2024 FC 10", valid[0].Citation)
}

const fcaHTMLList = `<html><body>
<ul>
  <li><a href="/fca-caf/decisions/en/item/600001/index.do">Smith v Canada, 2024 FCA 22</a> 2024-02-01</li>
  <li><a href="/fca-caf/decisions/en/item/600002/index.do">Practice direction (no citation)</a></li>
  <li><a href="/fca-caf/decisions/en/item/600003/index.do"><b>Tremblay c Canada, 2024 CAF 30</b></a> 2024-03-15</li>
</ul>
</body></html>`

func TestParseFCAHTML(t *testing.T) {
	records := ParseFCAHTML([]byte(fcaHTMLList))
	require.Len(t, records, 2)

	assert.Equal(t, "2024 FCA 22", records[0].Citation)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), records[0].DecisionDate)
	assert.Equal(t, CourtFCA, records[0].CourtCode)

	// nested markup stripped, CAF citation accepted
	assert.Equal(t, "2024 CAF 30", records[1].Citation)
	assert.Equal(t, "Tremblay c Canada, 2024 CAF 30", records[1].Title)
}

func TestDecisionRoundTripPreservesIdentity(t *testing.T) {
	records, err := ParseSCCFeed([]byte(sccFeedJSON))
	require.NoError(t, err)

	for _, r := range records {
		again := Decision{
			SourceID:     r.SourceID,
			CourtCode:    r.CourtCode,
			CaseID:       r.CaseID,
			Citation:     r.Citation,
			DecisionDate: r.DecisionDate,
		}
		assert.Equal(t, r.CaseID, again.CaseID)
		assert.Equal(t, r.CourtCode, again.CourtCode)
		assert.Equal(t, r.Citation, again.Citation)
		assert.True(t, r.DecisionDate.Equal(again.DecisionDate))
	}
}
