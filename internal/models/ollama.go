package models

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultOllamaURL is where a local Ollama listens.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaProvider calls a local Ollama server. It needs no key, only a URL.
type OllamaProvider struct {
	baseURL string
	http    *http.Client
}

func NewOllama(baseURL string, hc *http.Client) *OllamaProvider {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &OllamaProvider{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (p *OllamaProvider) Name() string    { return "ollama" }
func (p *OllamaProvider) Available() bool { return p.baseURL != "" }

type ollamaRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options"`
}

func (p *OllamaProvider) Generate(ctx context.Context, model string, req Request) (*Response, error) {
	body := ollamaRequest{Model: model, Prompt: req.Prompt}
	body.Options.Temperature = req.Temperature
	body.Options.NumPredict = req.MaxTokens

	var out struct {
		Response string `json:"response"`
	}
	if err := postJSON(ctx, p.http, p.baseURL+"/api/generate", body, &out); err != nil {
		return nil, fmt.Errorf("%w: ollama: %v", ErrProviderFailed, err)
	}
	return &Response{Text: out.Response, Provider: "OLLAMA - " + model, Model: model}, nil
}
