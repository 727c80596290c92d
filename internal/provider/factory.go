package provider

import (
	"fmt"
	"time"

	"github.com/immcad/backend/internal/config"
)

// BuildProviders assembles the ordered provider list from configuration.
// The primary provider goes first, the other configured generator second,
// and the scaffold provider last when enabled outside production. At least
// one provider must be installable.
func BuildProviders(cfg *config.Settings) ([]Provider, error) {
	timeout := 30 * time.Second

	var openai, gemini Provider
	if cfg.OpenAIAPIKey != "" {
		openai = NewOpenAIProvider(cfg.OpenAIAPIKey, "", "", timeout)
	}
	if cfg.GeminiAPIKey != "" {
		gemini = NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel, "", timeout)
	}

	var ordered []Provider
	appendIf := func(p Provider) {
		if p != nil {
			ordered = append(ordered, p)
		}
	}
	if cfg.PrimaryProvider == "gemini" {
		appendIf(gemini)
		appendIf(openai)
	} else {
		appendIf(openai)
		appendIf(gemini)
	}

	if cfg.EnableScaffoldProvider && !cfg.IsProduction() {
		ordered = append(ordered, NewScaffold())
	}

	if len(ordered) == 0 {
		return nil, fmt.Errorf("provider: no provider configured (set OPENAI_API_KEY, GEMINI_API_KEY, or enable the scaffold outside production)")
	}
	return ordered, nil
}
