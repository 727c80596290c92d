package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/immcad/backend/internal/core"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider is a chat-completions HTTP adapter.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIProvider builds the adapter. baseURL overrides the API host for
// tests; empty means the public endpoint.
func NewOpenAIProvider(apiKey, model, baseURL string, timeout time.Duration) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *OpenAIProvider) Generate(ctx context.Context, message string, citations []core.Citation, locale string) (string, error) {
	payload, err := json.Marshal(openAIRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "user", Content: buildPrompt(message, citations, locale)},
		},
	})
	if err != nil {
		return "", Classify(p.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", Classify(p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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

	var out openAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", Classify(p.Name(), err)
	}
	if out.Error != nil {
		return "", Classify(p.Name(), fmt.Errorf("%s: %s", out.Error.Type, out.Error.Message))
	}
	if len(out.Choices) == 0 {
		return "", &Error{Provider: p.Name(), Code: CodeProviderError, Message: ErrNoChoices.Error()}
	}
	content := out.Choices[0].Message.Content
	if content == "" {
		return "", &Error{Provider: p.Name(), Code: CodeProviderError, Message: ErrNoMessageContent.Error()}
	}
	return content, nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
