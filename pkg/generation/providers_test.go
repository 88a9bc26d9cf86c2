package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "json_object", body.ResponseFormat["type"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```json\\n{}\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL})
	out, err := p.Generate(context.Background(), "sys", "user", Options{JSON: true})

	require.NoError(t, err)
	assert.Equal(t, "```json\n{}\n```", out)
}

func TestAnthropicGenerateJoinsTextParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"a\":"},{"type":"tool_use"},{"type":"text","text":"1}"}]}`))
	}))
	defer srv.Close()

	p := NewAnthropic(ProviderConfig{APIKey: "key", BaseURL: srv.URL})
	out, err := p.Generate(context.Background(), "sys", "user", Options{})

	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[1]"}]}}]}`))
	}))
	defer srv.Close()

	p := NewGemini(ProviderConfig{APIKey: "g-key", Model: "gemini-test", BaseURL: srv.URL})
	out, err := p.Generate(context.Background(), "sys", "user", Options{JSON: true})

	require.NoError(t, err)
	assert.Equal(t, "[1]", out)
}

func TestProviderErrorsBecomeAPIFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenAI(ProviderConfig{APIKey: "sk", BaseURL: srv.URL})
	_, err := p.Generate(context.Background(), "", "", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestProvidersWithoutKeyAreUnconfigured(t *testing.T) {
	assert.False(t, NewOpenAI(ProviderConfig{}).Configured())
	assert.False(t, NewAnthropic(ProviderConfig{}).Configured())
	assert.False(t, NewGemini(ProviderConfig{}).Configured())
	assert.True(t, NewGemini(ProviderConfig{APIKey: "k"}).Configured())
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(ProviderConfig{APIKey: "sk", BaseURL: srv.URL}).Generate(context.Background(), "", "", Options{})
	assert.ErrorIs(t, err, ErrEmptyResult)
}
