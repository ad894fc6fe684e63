// Package models routes prompts to one of several model providers: the
// editor bridge, hosted APIs, or a local Ollama server.
package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/HendryAvila/devmind/internal/logging"
)

// BridgeKey is the model key served by the editor extension.
const BridgeKey = "vscode-bridge"

var (
	ErrUnknownModel        = errors.New("unknown model")
	ErrProviderUnavailable = errors.New("provider not configured")
	ErrProviderFailed      = errors.New("provider returned an error")
)

// Request is one generation request.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Response is the text a provider produced.
type Response struct {
	Text     string
	Provider string
	Model    string
}

// Provider generates text for a concrete model name.
type Provider interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, model string, req Request) (*Response, error)
}

// Route maps a public model key to a provider and its model name.
type Route struct {
	Key         string
	Provider    string
	Model       string
	CostType    string
	Description string
}

// Routes is the routing table, in display order.
var Routes = []Route{
	{BridgeKey, "vscode", "VS Code Copilot", "subscription", "GitHub Copilot via VS Code extension"},
	{"openai-gpt4", "openai", "gpt-4", "pay-per-use", "Most capable OpenAI model, best for complex tasks"},
	{"openai-gpt4-turbo", "openai", "gpt-4-turbo-preview", "pay-per-use", "Faster GPT-4 variant with better performance"},
	{"openai-gpt3.5", "openai", "gpt-3.5-turbo", "pay-per-use", "Fast and cost-effective OpenAI model"},
	{"claude-opus", "claude", "claude-3-opus-20240229", "pay-per-use", "Most capable Claude model, excellent for analysis"},
	{"claude-sonnet", "claude", "claude-3-sonnet-20240229", "pay-per-use", "Balanced Claude model, good for most tasks"},
	{"claude-haiku", "claude", "claude-3-haiku-20240307", "pay-per-use", "Fastest Claude model, good for simple tasks"},
	{"gemini-pro", "gemini", "gemini-pro", "pay-per-use", "Google's multimodal model"},
	{"gemini-pro-vision", "gemini", "gemini-pro-vision", "pay-per-use", "Google's multimodal model with image input"},
	{"ollama-llama2", "ollama", "llama2", "local-free", "Local Llama 2 model via Ollama"},
	{"ollama-mistral", "ollama", "mistral", "local-free", "Local Mistral model via Ollama"},
	{"ollama-codellama", "ollama", "codellama", "local-free", "Local Code Llama model via Ollama"},
}

// ModelInfo describes a routable model and whether it can serve now.
type ModelInfo struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	Provider    string `json:"provider"`
	Available   bool   `json:"available"`
	CostType    string `json:"cost_type"`
	Description string `json:"description"`
}

// Router dispatches requests by model key.
type Router struct {
	providers map[string]Provider
	routes    map[string]Route
	log       *slog.Logger
}

// NewRouter registers providers by their Name().
func NewRouter(log *slog.Logger, providers ...Provider) *Router {
	r := &Router{
		providers: make(map[string]Provider, len(providers)),
		routes:    make(map[string]Route, len(Routes)),
		log:       logging.OrDefault(log).With("component", "models"),
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	for _, rt := range Routes {
		r.routes[rt.Key] = rt
	}
	return r
}

// Chat sends req to the model behind key.
func (r *Router) Chat(ctx context.Context, key string, req Request) (*Response, error) {
	rt, ok := r.routes[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, key)
	}
	p, ok := r.providers[rt.Provider]
	if !ok || (rt.Provider != "vscode" && !p.Available()) {
		return nil, fmt.Errorf("%w: %s is not configured. Please set up API key.", ErrProviderUnavailable, strings.ToUpper(rt.Provider))
	}

	if req.Timeout > 0 && rt.Provider != "vscode" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	r.log.Info("routing prompt", "model", key, "provider", rt.Provider, "target", rt.Model)
	resp, err := p.Generate(ctx, rt.Model, req)
	if err != nil {
		r.log.Error("provider failed", "model", key, "err", err)
		return nil, err
	}
	return resp, nil
}

// Models lists every route with its current availability.
func (r *Router) Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(Routes))
	for _, rt := range Routes {
		p, ok := r.providers[rt.Provider]
		provider := strings.ToUpper(rt.Provider)
		if rt.Key == BridgeKey {
			provider = "GitHub Copilot"
		}
		out = append(out, ModelInfo{
			Name:        rt.Model,
			Key:         rt.Key,
			Provider:    provider,
			Available:   ok && p.Available(),
			CostType:    rt.CostType,
			Description: rt.Description,
		})
	}
	return out
}

// Availability reports each registered provider's state.
func (r *Router) Availability() map[string]bool {
	out := make(map[string]bool, len(r.providers))
	for name, p := range r.providers {
		out[name] = p.Available()
	}
	return out
}
