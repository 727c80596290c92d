package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/immcad/backend/internal/core"
)

func TestEnforceCitationsPassThrough(t *testing.T) {
	cits := []core.Citation{{SourceID: "IRPA", URL: "https://laws-lois.justice.gc.ca", Pin: "s 3"}}

	answer, out, confidence := EnforceCitations("grounded answer", cits)

	assert.Equal(t, "grounded answer", answer)
	assert.Equal(t, cits, out)
	assert.Equal(t, core.ConfidenceMedium, confidence)
}

func TestEnforceCitationsReplacesUngrounded(t *testing.T) {
	answer, out, confidence := EnforceCitations("some hallucinated answer", nil)

	assert.Equal(t, SafeConstrainedResponse, answer)
	assert.Empty(t, out)
	assert.NotNil(t, out)
	assert.Equal(t, core.ConfidenceLow, confidence)
}
