package caselaw

import "fmt"

// ValidationReport summarizes a parsed feed payload.
type ValidationReport struct {
	RecordsTotal   int      `json:"records_total"`
	RecordsValid   int      `json:"records_valid"`
	RecordsInvalid int      `json:"records_invalid"`
	Errors         []string `json:"errors,omitempty"`
}

// ValidateDecisions checks parsed records. A record is invalid when the
// citation is missing, the date failed to parse, or the title is empty.
func ValidateDecisions(records []Decision) ValidationReport {
	report := ValidationReport{RecordsTotal: len(records)}
	for i, r := range records {
		var problems []string
		if r.Citation == "" {
			problems = append(problems, "missing citation")
		}
		if r.DecisionDate.IsZero() {
			problems = append(problems, "unparseable date")
		}
		if r.Title == "" {
			problems = append(problems, "empty title")
		}
		if len(problems) == 0 {
			report.RecordsValid++
			continue
		}
		report.RecordsInvalid++
		for _, p := range problems {
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: %s", i, p))
		}
	}
	return report
}

// ParseErrorReport is the report shape for a payload that failed to parse at
// all.
func ParseErrorReport(err error) ValidationReport {
	return ValidationReport{
		RecordsTotal:   1,
		RecordsInvalid: 1,
		Errors:         []string{"payload_parse_error: " + err.Error()},
	}
}

// Valid filters records down to the ones a validation pass accepts.
func Valid(records []Decision) []Decision {
	out := make([]Decision, 0, len(records))
	for _, r := range records {
		if r.Citation != "" && !r.DecisionDate.IsZero() && r.Title != "" {
			out = append(out, r)
		}
	}
	return out
}
