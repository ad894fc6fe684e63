package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultGeminiURL is the public Generative Language endpoint.
const DefaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider calls generateContent over plain HTTP.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewGemini builds a provider. An empty key leaves it unavailable.
func NewGemini(apiKey, baseURL string, hc *http.Client) *GeminiProvider {
	if baseURL == "" {
		baseURL = DefaultGeminiURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &GeminiProvider{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (p *GeminiProvider) Name() string    { return "gemini" }
func (p *GeminiProvider) Available() bool { return p.apiKey != "" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature,omitempty"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) Generate(ctx context.Context, model string, req Request) (*Response, error) {
	body := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}}}
	body.GenerationConfig.Temperature = req.Temperature
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, url.PathEscape(model), url.QueryEscape(p.apiKey))
	var out geminiResponse
	if err := postJSON(ctx, p.http, endpoint, body, &out); err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", ErrProviderFailed, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no candidates", ErrProviderFailed)
	}
	return &Response{
		Text:     out.Candidates[0].Content.Parts[0].Text,
		Provider: "GEMINI - " + model,
		Model:    model,
	}, nil
}

// postJSON sends body and decodes a 2xx reply into out.
func postJSON(ctx context.Context, hc *http.Client, endpoint string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
