// Package provider adapts generation backends behind a single Backend
// interface. Each call sends the prompt verbatim and returns raw text.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"healthinsight/internal/config"
)

var ErrNotConfigured = errors.New("provider not configured")

type Backend interface {
	Name() string
	Kind() string
	Model() string
	// Configured reports whether the backend has what it needs to attempt a call.
	Configured() bool
	Generate(ctx context.Context, prompt string) (string, error)
	// Probe is a lightweight reachability check.
	Probe(ctx context.Context) error
}

// Options are sampling parameters forwarded to every backend.
type Options struct {
	Temperature float64
	TopP        float64
	NumPredict  int
}

// StatusError is a non-2xx answer from a backend.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Code, e.Body)
}

// New builds the backend described by p.
func New(ctx context.Context, p config.Provider, opts Options) (Backend, error) {
	switch p.Kind {
	case "ollama":
		return NewOllama(p.Name, p.BaseURL, p.Model, opts), nil
	case "openai":
		return NewOpenAI(p.Name, p.BaseURL, p.APIKey, p.Model, opts), nil
	case "gemini":
		return NewGemini(ctx, p.Name, p.APIKey, p.Model, opts)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", p.Kind)
	}
}

func newHTTPClient() *http.Client {
	// Per-attempt deadlines come from the caller's context.
	return &http.Client{Timeout: 5 * time.Minute}
}

func checkStatus(name string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Provider: name, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
