package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/immcad/backend/internal/core"
)

// Provider is the capability a text generator must offer to be routable.
type Provider interface {
	Name() string
	Generate(ctx context.Context, message string, citations []core.Citation, locale string) (string, error)
}

// buildPrompt renders the grounding citations into the instruction block
// shared by all HTTP adapters.
func buildPrompt(message string, citations []core.Citation, locale string) string {
	var b strings.Builder
	b.WriteString("You are an informational assistant for Canadian immigration and citizenship topics. ")
	b.WriteString("Answer using only the authoritative sources listed below. ")
	b.WriteString("Do not provide legal advice, representation, or outcome predictions.\n")
	if locale == core.LocaleFrCA {
		b.WriteString("Respond in Canadian French.\n")
	}
	if len(citations) > 0 {
		b.WriteString("\nSources:\n")
		for _, c := range citations {
			fmt.Fprintf(&b, "- [%s] %s (%s) %s\n", c.SourceID, c.Title, c.Pin, c.URL)
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(message)
	return b.String()
}

// Scaffold is a deterministic local provider for development and tests.
// The factory refuses to install it in production.
type Scaffold struct {
	name string
}

// NewScaffold creates the scaffold provider.
func NewScaffold() *Scaffold {
	return &Scaffold{name: "scaffold"}
}

func (s *Scaffold) Name() string { return s.name }

func (s *Scaffold) Generate(ctx context.Context, message string, citations []core.Citation, locale string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if locale == core.LocaleFrCA {
		return "Réponse informative fondée sur les sources officielles citées.", nil
	}
	return "Informational answer grounded in the cited official sources.", nil
}
