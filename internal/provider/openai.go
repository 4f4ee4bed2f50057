package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// OpenAI talks to any server exposing the chat completions API.
type OpenAI struct {
	name    string
	BaseURL string
	APIKey  string
	model   string
	opts    Options
	Client  *http.Client
}

func NewOpenAI(name, baseURL, apiKey, model string, opts Options) *OpenAI {
	if name == "" {
		name = "openai"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		name:    name,
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		model:   model,
		opts:    opts,
		Client:  newHTTPClient(),
	}
}

func (o *OpenAI) Name() string     { return o.name }
func (o *OpenAI) Kind() string     { return "openai" }
func (o *OpenAI) Model() string    { return o.model }
func (o *OpenAI) Configured() bool { return o.APIKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	if !o.Configured() {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(chatRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: o.opts.Temperature,
		TopP:        o.opts.TopP,
		MaxTokens:   o.opts.NumPredict,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(o.name, resp); err != nil {
		return "", err
	}

	var decoded struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", o.name, err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New(o.name + ": response has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func (o *OpenAI) Probe(ctx context.Context) error {
	if !o.Configured() {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	resp, err := o.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(o.name, resp)
}
