// Package chat composes the grounded answering pipeline: policy refusal
// gate, grounding citation selection, provider routing, and citation
// enforcement.
package chat

import (
	"regexp"
	"strings"
)

// PolicyGate classifies messages that solicit legal representation,
// substitutive filing, personalized strategy, or outcome guarantees.
// Patterns are fixed and compiled once; adding one requires a positive
// scenario and a negative example in the tests.
type PolicyGate struct {
	patterns []*regexp.Regexp
}

var refusalPatterns = []string{
	// representation
	`\brepresent\s+(me|my\s+(case|file|application|appeal))\b`,
	`\bbe\s+my\s+(lawyer|counsel|representative|consultant)\b`,
	`\bact\s+(as\s+my|on\s+my\s+behalf\s+as)\s+(lawyer|counsel|representative)\b`,
	// substitutive filing
	`\b(file|submit|lodge|complete)\b[\w\s,]{0,40}\bon\s+my\s+behalf\b`,
	`\bfill\s+(in|out)\s+(my|the)\s+(forms?|application)\s+for\s+me\b`,
	// personalized strategy or plan
	`\b(personali[sz]ed|custom|tailored|individual)\b[\w\s]{0,30}\b(strategy|plan|advice|roadmap)\b`,
	`\bwhat\s+should\s+i\s+do\s+in\s+my\s+(case|situation)\b`,
	// outcome guarantees
	`\bguarantee[ds]?\b[\w\s]{0,30}\b(approval|outcome|success|visa|permit|citizenship)\b`,
	`\bwill\s+i\s+(win|be\s+approved|get\s+the\s+visa)\b`,
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NewPolicyGate compiles the refusal taxonomy.
func NewPolicyGate() *PolicyGate {
	compiled := make([]*regexp.Regexp, len(refusalPatterns))
	for i, p := range refusalPatterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return &PolicyGate{patterns: compiled}
}

// Refused reports whether the message solicits representation or advice.
func (g *PolicyGate) Refused(message string) bool {
	normalized := whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(message)), " ")
	for _, p := range g.patterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}
