package chat

import "github.com/immcad/backend/internal/core"

// Fixed response texts. These are part of the external contract and must not
// be reworded without updating the clients.
const (
	PolicyRefusalText = "I can't act as your legal representative or provide personalized " +
		"immigration advice, file applications on your behalf, or predict the outcome of " +
		"your case. I can explain Canadian immigration and citizenship law in general " +
		"terms, with citations to the governing statutes and regulations. For advice about " +
		"your specific situation, consult a licensed immigration lawyer or a regulated " +
		"Canadian immigration consultant."

	SafeConstrainedResponse = "I couldn't ground an answer to that question in the " +
		"authoritative sources I rely on, so I won't speculate. Please consult the " +
		"official Immigration, Refugees and Citizenship Canada resources at " +
		"https://www.canada.ca/en/services/immigration-citizenship.html, or rephrase " +
		"your question about Canadian immigration or citizenship law."

	Disclaimer = "This is general legal information about Canadian immigration and " +
		"citizenship law, not legal advice. No solicitor-client relationship is created. " +
		"Consult a licensed lawyer or regulated immigration consultant for advice about " +
		"your situation."
)

// EnforceCitations guarantees no ungrounded answer leaves the pipeline. An
// answer with at least one citation passes through at medium confidence;
// anything else is replaced with the safe constrained response at low
// confidence. Runs on the final citation list, after provider generation.
func EnforceCitations(answer string, citations []core.Citation) (string, []core.Citation, string) {
	if len(citations) > 0 {
		return answer, citations, core.ConfidenceMedium
	}
	return SafeConstrainedResponse, []core.Citation{}, core.ConfidenceLow
}
