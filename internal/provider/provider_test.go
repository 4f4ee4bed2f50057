package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthinsight/internal/config"
)

func TestOllamaGenerateSendsPromptVerbatim(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","response":"**SUMMARY** all good","done":true,"eval_count":12}`))
	}))
	defer srv.Close()

	o := NewOllama("local", srv.URL+"/", "llama3", Options{Temperature: 0.7, TopP: 0.9, NumPredict: 256})
	text, err := o.Generate(context.Background(), "  prompt with\nnewlines ")
	require.NoError(t, err)

	assert.Equal(t, "**SUMMARY** all good", text)
	assert.Equal(t, "  prompt with\nnewlines ", got.Prompt)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	assert.Equal(t, 256, got.Options.NumPredict)
}

func TestOllamaNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllama("local", srv.URL, "", Options{}).Generate(context.Background(), "hi")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Equal(t, "local", statusErr.Provider)
	assert.Contains(t, statusErr.Error(), "model not loaded")
}

func TestOllamaProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	assert.NoError(t, NewOllama("local", srv.URL, "", Options{}).Probe(context.Background()))
	assert.ErrorIs(t, NewOllama("local", "", "", Options{}).Probe(context.Background()), ErrNotConfigured)
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if !assert.Len(t, req.Messages, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "user", req.Messages[0].Role)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"echo: ` + req.Messages[0].Content + `"}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI("cloud", srv.URL, "sk-test", "", Options{})
	text, err := o.Generate(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", text)
	assert.Equal(t, "gpt-4o-mini", o.Model())
}

func TestOpenAIWithoutKeyIsUnconfigured(t *testing.T) {
	o := NewOpenAI("cloud", "", "", "", Options{})
	assert.False(t, o.Configured())
	_, err := o.Generate(context.Background(), "ping")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGeminiWithoutKeyIsUnconfigured(t *testing.T) {
	g, err := NewGemini(context.Background(), "", "", "", Options{})
	require.NoError(t, err)
	assert.False(t, g.Configured())
	assert.Equal(t, "gemini", g.Name())
	assert.ErrorIs(t, g.Probe(context.Background()), ErrNotConfigured)
}

func TestNewDispatchesOnKind(t *testing.T) {
	b, err := New(context.Background(), config.Provider{Name: "a", Kind: "ollama", BaseURL: "http://x"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ollama", b.Kind())
	assert.Equal(t, "a", b.Name())

	_, err = New(context.Background(), config.Provider{Name: "b", Kind: "telegraph"}, Options{})
	assert.Error(t, err)
}
