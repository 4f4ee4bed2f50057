package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type Ollama struct {
	name    string
	BaseURL string
	model   string
	opts    Options
	Client  *http.Client
}

func NewOllama(name, baseURL, model string, opts Options) *Ollama {
	if name == "" {
		name = "ollama"
	}
	if model == "" {
		model = "llama3"
	}
	return &Ollama{
		name:    name,
		BaseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		opts:    opts,
		Client:  newHTTPClient(),
	}
}

func (o *Ollama) Name() string     { return o.name }
func (o *Ollama) Kind() string     { return "ollama" }
func (o *Ollama) Model() string    { return o.model }
func (o *Ollama) Configured() bool { return o.BaseURL != "" }

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	if !o.Configured() {
		return "", ErrNotConfigured
	}
	payload := ollamaRequest{Model: o.model, Prompt: prompt}
	if o.opts != (Options{}) {
		payload.Options = &ollamaOptions{
			Temperature: o.opts.Temperature,
			TopP:        o.opts.TopP,
			NumPredict:  o.opts.NumPredict,
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/api/generate", o.BaseURL), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(o.name, resp); err != nil {
		return "", err
	}
	// Only the response field matters; everything else the server sends is ignored.
	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", o.name, err)
	}
	return decoded.Response, nil
}

func (o *Ollama) Probe(ctx context.Context) error {
	if !o.Configured() {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/tags", o.BaseURL), nil)
	if err != nil {
		return err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(o.name, resp)
}
