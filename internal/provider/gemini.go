package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type Gemini struct {
	name   string
	model  string
	opts   Options
	client *genai.Client
}

// NewGemini returns an unconfigured backend when apiKey is empty rather than
// failing, so a missing key only removes it from the fallthrough order.
func NewGemini(ctx context.Context, name, apiKey, model string, opts Options) (*Gemini, error) {
	if name == "" {
		name = "gemini"
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	g := &Gemini{name: name, model: model, opts: opts}
	if apiKey == "" {
		return g, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Name() string     { return g.name }
func (g *Gemini) Kind() string     { return "gemini" }
func (g *Gemini) Model() string    { return g.model }
func (g *Gemini) Configured() bool { return g.client != nil }

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	cfg := &genai.GenerateContentConfig{}
	if g.opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(g.opts.Temperature))
	}
	if g.opts.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(g.opts.TopP))
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", g.name, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New(g.name + ": empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// Probe only checks configuration; listing models would spend quota.
func (g *Gemini) Probe(context.Context) error {
	if !g.Configured() {
		return ErrNotConfigured
	}
	return nil
}
