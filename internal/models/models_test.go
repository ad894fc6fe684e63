package models

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	aoption "github.com/anthropics/anthropic-sdk-go/option"
	ooption "github.com/openai/openai-go/option"

	"github.com/HendryAvila/devmind/internal/bridge"
	"github.com/HendryAvila/devmind/internal/logging"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type fakePrompter struct {
	connected bool
	reply     *bridge.Message
	err       error
	gotOpts   bridge.Options
	gotPrompt string
}

func (f *fakePrompter) SendPrompt(_ context.Context, prompt string, _ time.Duration, opts bridge.Options) (*bridge.Message, error) {
	f.gotPrompt = prompt
	f.gotOpts = opts
	return f.reply, f.err
}

func (f *fakePrompter) Connected() bool { return f.connected }

func newTestRouter(providers ...Provider) *Router {
	return NewRouter(logging.Discard(), providers...)
}

// ─── Router ─────────────────────────────────────────────────────────────────

func TestRouter_UnknownModel(t *testing.T) {
	r := newTestRouter()
	_, err := r.Chat(context.Background(), "gpt-17", Request{Prompt: "hi"})
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("err = %v, want ErrUnknownModel", err)
	}
}

func TestRouter_UnconfiguredProvider(t *testing.T) {
	r := newTestRouter(NewOpenAI("", ""))
	_, err := r.Chat(context.Background(), "openai-gpt4", Request{Prompt: "hi"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if !strings.Contains(err.Error(), "OPENAI is not configured") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestRouter_MissingProviderRegistration(t *testing.T) {
	r := newTestRouter()
	_, err := r.Chat(context.Background(), "claude-haiku", Request{Prompt: "hi"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestRouter_BridgeTriedWhileDisconnected(t *testing.T) {
	fp := &fakePrompter{reply: &bridge.Message{Type: bridge.TypeResponse, Response: "done"}}
	r := newTestRouter(NewBridgeProvider(fp))

	resp, err := r.Chat(context.Background(), BridgeKey, Request{Prompt: "hi", Temperature: 0.2, MaxTokens: 50})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text != "done" || resp.Provider != "VS Code Copilot" {
		t.Errorf("resp = %+v", resp)
	}
	if fp.gotOpts.Temperature == nil || *fp.gotOpts.Temperature != 0.2 {
		t.Errorf("temperature not forwarded: %+v", fp.gotOpts)
	}
	if fp.gotOpts.MaxTokens == nil || *fp.gotOpts.MaxTokens != 50 {
		t.Errorf("max tokens not forwarded: %+v", fp.gotOpts)
	}
}

func TestBridgeProvider_ErrorReply(t *testing.T) {
	fp := &fakePrompter{reply: &bridge.Message{Type: bridge.TypeError, Error: "rate limited"}}
	_, err := NewBridgeProvider(fp).Generate(context.Background(), BridgeKey, Request{Prompt: "x"})
	if !errors.Is(err, ErrProviderFailed) {
		t.Fatalf("err = %v, want ErrProviderFailed", err)
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestBridgeProvider_TransportErrorPassesThrough(t *testing.T) {
	fp := &fakePrompter{err: bridge.ErrTimeout}
	_, err := NewBridgeProvider(fp).Generate(context.Background(), BridgeKey, Request{Prompt: "x"})
	if !errors.Is(err, bridge.ErrTimeout) {
		t.Fatalf("err = %v, want bridge.ErrTimeout", err)
	}
}

func TestRouter_Models(t *testing.T) {
	fp := &fakePrompter{connected: true}
	r := newTestRouter(NewBridgeProvider(fp), NewOpenAI("sk-test", ""), NewOllama(DefaultOllamaURL, nil))

	models := r.Models()
	if len(models) != len(Routes) {
		t.Fatalf("got %d models, want %d", len(models), len(Routes))
	}
	byKey := map[string]ModelInfo{}
	for _, m := range models {
		byKey[m.Key] = m
	}

	tests := []struct {
		key       string
		available bool
		provider  string
		costType  string
	}{
		{BridgeKey, true, "GitHub Copilot", "subscription"},
		{"openai-gpt4", true, "OPENAI", "pay-per-use"},
		{"claude-opus", false, "CLAUDE", "pay-per-use"},
		{"gemini-pro", false, "GEMINI", "pay-per-use"},
		{"ollama-mistral", true, "OLLAMA", "local-free"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m, ok := byKey[tt.key]
			if !ok {
				t.Fatalf("missing %s", tt.key)
			}
			if m.Available != tt.available || m.Provider != tt.provider || m.CostType != tt.costType {
				t.Errorf("got %+v", m)
			}
		})
	}
}

func TestRouter_Availability(t *testing.T) {
	r := newTestRouter(NewClaude("", ""), NewGemini("g-key", "", nil))
	got := r.Availability()
	if got["claude"] || !got["gemini"] {
		t.Errorf("availability = %v", got)
	}
}

// ─── HTTP providers ─────────────────────────────────────────────────────────

func TestOpenAIProvider_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", srv.URL+"/", ooption.WithMaxRetries(0))
	r := newTestRouter(p)
	resp, err := r.Chat(context.Background(), "openai-gpt4", Request{Prompt: "hi", Temperature: 0.5, MaxTokens: 10})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text != "hello" || resp.Provider != "OPENAI - gpt-4" {
		t.Errorf("resp = %+v", resp)
	}
	if body["model"] != "gpt-4" || body["temperature"] != 0.5 || body["max_tokens"] != float64(10) {
		t.Errorf("request body = %v", body)
	}
}

func TestClaudeProvider_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"x",
			"content":[{"type":"text","text":"hel"},{"type":"text","text":"lo"}],
			"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	p := NewClaude("ak-test", srv.URL+"/", aoption.WithMaxRetries(0))
	resp, err := p.Generate(context.Background(), "claude-3-haiku-20240307", Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("text = %q", resp.Text)
	}
	if body["max_tokens"] != float64(claudeDefaultMaxTokens) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}
}

func TestGeminiProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-pro:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"gem"}]}}]}`))
	}))
	defer srv.Close()

	resp, err := NewGemini("g-key", srv.URL, srv.Client()).Generate(context.Background(), "gemini-pro", Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "gem" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestGeminiProvider_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := NewGemini("g-key", srv.URL, srv.Client()).Generate(context.Background(), "gemini-pro", Request{Prompt: "hi"})
	if !errors.Is(err, ErrProviderFailed) {
		t.Fatalf("err = %v, want ErrProviderFailed", err)
	}
}

func TestOllamaProvider_Generate(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"response":"local"}`))
	}))
	defer srv.Close()

	resp, err := NewOllama(srv.URL, srv.Client()).Generate(context.Background(), "mistral", Request{Prompt: "hi", MaxTokens: 7})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "local" || got.Model != "mistral" || got.Stream || got.Options.NumPredict != 7 {
		t.Errorf("resp = %+v, request = %+v", resp, got)
	}
}

func TestOllamaProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, srv.Client()).Generate(context.Background(), "nope", Request{Prompt: "hi"})
	if !errors.Is(err, ErrProviderFailed) || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v", err)
	}
}
