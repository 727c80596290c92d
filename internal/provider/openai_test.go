package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerate(t *testing.T) {
	srv := openAIServer(t, 200, `{"choices":[{"message":{"content":"Informational answer."}}]}`)
	p := NewOpenAIProvider("test-key", "", srv.URL, time.Second)

	answer, err := p.Generate(context.Background(), "q", nil, "en-CA")
	require.NoError(t, err)
	assert.Equal(t, "Informational answer.", answer)
}

func TestOpenAIRateLimit(t *testing.T) {
	srv := openAIServer(t, 429, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	p := NewOpenAIProvider("test-key", "", srv.URL, time.Second)

	_, err := p.Generate(context.Background(), "q", nil, "en-CA")
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeRateLimit, pe.Code)
}

func TestOpenAINoChoices(t *testing.T) {
	srv := openAIServer(t, 200, `{"choices":[]}`)
	p := NewOpenAIProvider("test-key", "", srv.URL, time.Second)

	_, err := p.Generate(context.Background(), "q", nil, "en-CA")
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeProviderError, pe.Code)
	assert.Contains(t, pe.Message, "no choices")
}

func TestOpenAIEmptyContent(t *testing.T) {
	srv := openAIServer(t, 200, `{"choices":[{"message":{"content":""}}]}`)
	p := NewOpenAIProvider("test-key", "", srv.URL, time.Second)

	_, err := p.Generate(context.Background(), "q", nil, "en-CA")
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Message, "no message content")
}

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Réponse."}]}}]}`))
	}))
	defer srv.Close()
	p := NewGeminiProvider("test-key", "gemini-1.5-pro", srv.URL, time.Second)

	answer, err := p.Generate(context.Background(), "q", nil, "fr-CA")
	require.NoError(t, err)
	assert.Equal(t, "Réponse.", answer)
}

func TestGeminiServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()
	p := NewGeminiProvider("test-key", "", srv.URL, time.Second)

	_, err := p.Generate(context.Background(), "q", nil, "en-CA")
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeProviderError, pe.Code)
}
