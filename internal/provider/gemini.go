package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/immcad/backend/internal/core"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider is a generateContent HTTP adapter.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiProvider builds the adapter. baseURL overrides the API host for
// tests; empty means the public endpoint.
func NewGeminiProvider(apiKey, model, baseURL string, timeout time.Duration) *GeminiProvider {
	if model == "" {
		model = "gemini-1.5-pro"
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (p *GeminiProvider) Generate(ctx context.Context, message string, citations []core.Citation, locale string) (string, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: buildPrompt(message, citations, locale)}}}},
	})
	if err != nil {
		return "", Classify(p.Name(), err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", Classify(p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", Classify(p.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Classify(p.Name(), err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &Error{Provider: p.Name(), Code: CodeRateLimit, Message: fmt.Sprintf("http 429: %s", truncate(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Provider: p.Name(), Code: CodeProviderError, Message: fmt.Sprintf("http %d: %s", resp.StatusCode, truncate(body))}
	}

	var out geminiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", Classify(p.Name(), err)
	}
	if out.Error != nil {
		return "", Classify(p.Name(), fmt.Errorf("%s: %s", out.Error.Status, out.Error.Message))
	}
	if len(out.Candidates) == 0 {
		return "", &Error{Provider: p.Name(), Code: CodeProviderError, Message: ErrNoChoices.Error()}
	}
	parts := out.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == "" {
		return "", &Error{Provider: p.Name(), Code: CodeProviderError, Message: ErrNoMessageContent.Error()}
	}
	return parts[0].Text, nil
}
