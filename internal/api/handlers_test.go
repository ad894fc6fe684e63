package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/devmind/internal/bridge"
	"github.com/HendryAvila/devmind/internal/dashboard"
	"github.com/HendryAvila/devmind/internal/dbexec"
	"github.com/HendryAvila/devmind/internal/logging"
	"github.com/HendryAvila/devmind/internal/models"
)

// ─── Mocks ──────────────────────────────────────────────────────────────────

type mockBridge struct {
	connected      bool
	SendPromptFunc func(ctx context.Context, prompt string, timeout time.Duration) (*bridge.Message, error)
	SendFunc       func(ctx context.Context, prompt string) (string, error)
	sent           []string
}

func (m *mockBridge) SendPrompt(ctx context.Context, prompt string, timeout time.Duration, _ bridge.Options) (*bridge.Message, error) {
	if m.SendPromptFunc != nil {
		return m.SendPromptFunc(ctx, prompt, timeout)
	}
	return &bridge.Message{Type: bridge.TypeResponse, Response: "ok"}, nil
}

func (m *mockBridge) Send(ctx context.Context, prompt string, _ bridge.Options) (string, error) {
	m.sent = append(m.sent, prompt)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, prompt)
	}
	return "req-1", nil
}

func (m *mockBridge) Connected() bool { return m.connected }

type mockStore struct {
	jiras     map[string]bool
	template  string
	existsErr error
	cards     []dashboard.Card
	cardsErr  error
	saved     map[string]string
}

func (m *mockStore) JiraExists(_ context.Context, id string) (bool, error) {
	return m.jiras[id], m.existsErr
}

func (m *mockStore) PromptTemplate(_ context.Context, key string) (string, error) {
	if m.template == "" {
		return "", fmt.Errorf("%w: %s", dashboard.ErrTemplateNotFound, key)
	}
	return m.template, nil
}

func (m *mockStore) SaveTmpPrompt(_ context.Context, id, prompt string) bool {
	if m.saved == nil {
		m.saved = map[string]string{}
	}
	m.saved[id] = prompt
	return true
}

func (m *mockStore) ListCards(context.Context) ([]dashboard.Card, error) {
	return m.cards, m.cardsErr
}

type mockDB struct{ err error }

func (m mockDB) Ping(context.Context) error { return m.err }
func (m mockDB) Path() string               { return "/data/jira_dashboard.db" }

type mockRouter struct {
	ChatFunc func(ctx context.Context, key string, req models.Request) (*models.Response, error)
	last     models.Request
}

func (m *mockRouter) Chat(ctx context.Context, key string, req models.Request) (*models.Response, error) {
	m.last = req
	return m.ChatFunc(ctx, key, req)
}

func (m *mockRouter) Models() []models.ModelInfo {
	return []models.ModelInfo{
		{Key: models.BridgeKey, Available: true},
		{Key: "openai-gpt4", Available: false},
		{Key: "ollama-llama2", Available: true},
	}
}

func (m *mockRouter) Availability() map[string]bool { return map[string]bool{"openai": false} }

// ─── Helpers ────────────────────────────────────────────────────────────────

type testServer struct {
	*Server
	bridge *mockBridge
	store  *mockStore
	router *mockRouter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		bridge: &mockBridge{connected: true},
		store:  &mockStore{jiras: map[string]bool{"PROJ-1": true}, template: "Analyze ? now"},
		router: &mockRouter{},
	}
	ts.Server = NewServer(Deps{
		Bridge: ts.bridge,
		Store:  ts.store,
		DB:     mockDB{},
		Models: ts.router,
		Logger: logging.Discard(),
	})
	return ts
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %q: %v", w.Body.String(), err)
		}
	}
	return w, out
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestRoot(t *testing.T) {
	ts := newTestServer(t)
	w, body := do(t, ts.Handler(), http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	endpoints := body["endpoints"].(map[string]any)
	if endpoints["chat"] != "/api/v1/ai/chat" {
		t.Errorf("endpoints = %v", endpoints)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		dbErr  error
		status string
	}{
		{"healthy", nil, "healthy"},
		{"degraded", dbexec.ErrCorrupted, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			s := NewServer(Deps{Bridge: &mockBridge{}, Store: &mockStore{}, DB: mockDB{err: tt.dbErr}, Logger: logging.Discard()})
			w, body := do(t, s.Handler(), http.MethodGet, "/health", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if body["status"] != tt.status || body["bridge_connected"] != false {
				t.Errorf("body = %v", body)
			}
			if body["database_path"] != "/data/jira_dashboard.db" {
				t.Errorf("database_path = %v", body["database_path"])
			}
		})
	}
}

func TestCopilotChat_Success(t *testing.T) {
	ts := newTestServer(t)
	var gotPrompt string
	var gotTimeout time.Duration
	ts.bridge.SendPromptFunc = func(_ context.Context, p string, timeout time.Duration) (*bridge.Message, error) {
		gotPrompt, gotTimeout = p, timeout
		return &bridge.Message{Type: bridge.TypeResponse, Response: "answer"}, nil
	}

	w, body := do(t, ts.Handler(), http.MethodPost, "/api/v1/copilot/chat", map[string]any{"prompt": "  explain  ", "timeout": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%v", w.Code, body)
	}
	if body["success"] != true || body["response"] != "answer" || body["prompt"] != "explain" {
		t.Errorf("body = %v", body)
	}
	if gotPrompt != "explain" || gotTimeout != 5*time.Second {
		t.Errorf("bridge got %q %v", gotPrompt, gotTimeout)
	}
}

func TestCopilotChat_EmptyPromptRejected(t *testing.T) {
	ts := newTestServer(t)
	called := false
	ts.bridge.SendPromptFunc = func(context.Context, string, time.Duration) (*bridge.Message, error) {
		called = true
		return nil, nil
	}
	for _, p := range []string{"", "   \n\t"} {
		w, _ := do(t, ts.Handler(), http.MethodPost, "/api/v1/copilot/chat", map[string]any{"prompt": p})
		if w.Code != http.StatusBadRequest {
			t.Errorf("prompt %q: status = %d, want 400", p, w.Code)
		}
	}
	if called {
		t.Error("bridge called for an empty prompt")
	}
}

func TestCopilotChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"unavailable", bridge.ErrUnavailable, http.StatusServiceUnavailable, "not available"},
		{"closed", bridge.ErrClosed, http.StatusServiceUnavailable, "was closed"},
		{"timeout", bridge.ErrTimeout, http.StatusGatewayTimeout, "after 60 seconds"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.bridge.SendPromptFunc = func(context.Context, string, time.Duration) (*bridge.Message, error) {
				return nil, tt.err
			}
			w, body := do(t, ts.Handler(), http.MethodPost, "/api/v1/copilot/chat", map[string]any{"prompt": "hi"})
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if d, _ := body["detail"].(string); !strings.Contains(d, tt.detail) {
				t.Errorf("detail = %q, want substring %q", d, tt.detail)
			}
		})
	}
}

func TestCopilotChat_ErrorReply(t *testing.T) {
	ts := newTestServer(t)
	ts.bridge.SendPromptFunc = func(context.Context, string, time.Duration) (*bridge.Message, error) {
		return &bridge.Message{Type: bridge.TypeError, Error: "copilot offline"}, nil
	}
	w, body := do(t, ts.Handler(), http.MethodPost, "/api/v1/copilot/chat", map[string]any{"prompt": "hi"})
	if w.Code != http.StatusOK || body["success"] != false || body["error"] != "copilot offline" {
		t.Errorf("status=%d body=%v", w.Code, body)
	}
}

func TestInjectAndSave(t *testing.T) {
	ts := newTestServer(t)
	w, body := do(t, ts.Handler(), http.MethodPost, "/api/v1/injectAndSavePrompt", map[string]any{"jira_id": " PROJ-1 "})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["isValidJiraId"] != true || body["isPromptInjectVScode"] != true {
		t.Errorf("body = %v", body)
	}
	if body["genratedPrompt"] != "Analyze PROJ-1 now" || body["error"] != nil {
		t.Errorf("body = %v", body)
	}
	if ts.store.saved["PROJ-1"] != "Analyze PROJ-1 now" {
		t.Errorf("saved = %v", ts.store.saved)
	}
	if len(ts.bridge.sent) != 1 {
		t.Errorf("sent = %v", ts.bridge.sent)
	}
}

func TestInjectAndSave_BridgeDownStillSaves(t *testing.T) {
	ts := newTestServer(t)
	ts.bridge.SendFunc = func(context.Context, string) (string, error) { return "", bridge.ErrUnavailable }

	_, body := do(t, ts.Handler(), http.MethodPost, "/api/v1/injectAndSavePrompt", map[string]any{"jira_id": "PROJ-1"})
	if body["isValidJiraId"] != true || body["isPromptInjectVScode"] != false {
		t.Errorf("body = %v", body)
	}
	if body["error"] != bridgeDownMessage {
		t.Errorf("error = %v", body["error"])
	}
	if _, ok := ts.store.saved["PROJ-1"]; !ok {
		t.Error("prompt not saved")
	}
}

func TestInjectAndSave_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		jiraID string
		setup  func(*testServer)
		errSub string
	}{
		{"empty", "  ", nil, "cannot be empty"},
		{"unknown", "NOPE-9", nil, "'NOPE-9' not found"},
		{"corrupted", "PROJ-1", func(ts *testServer) { ts.store.existsErr = dbexec.ErrCorrupted }, "administrator"},
		{"no template", "PROJ-1", func(ts *testServer) { ts.store.template = "" }, "template not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			if tt.setup != nil {
				tt.setup(ts)
			}
			w, body := do(t, ts.Handler(), http.MethodPost, "/api/v1/injectAndSavePrompt", map[string]any{"jira_id": tt.jiraID})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if body["isValidJiraId"] != false || body["genratedPrompt"] != nil {
				t.Errorf("body = %v", body)
			}
			if e, _ := body["error"].(string); !strings.Contains(e, tt.errSub) {
				t.Errorf("error = %q, want substring %q", e, tt.errSub)
			}
			if len(ts.bridge.sent) != 0 || len(ts.store.saved) != 0 {
				t.Error("side effects on invalid request")
			}
		})
	}
}

func TestJiraCards(t *testing.T) {
	ts := newTestServer(t)
	heading := "Add index"
	ts.store.cards = []dashboard.Card{{ID: 1, JiraNumber: "PROJ-1", JiraHeading: &heading}}

	w, body := do(t, ts.Handler(), http.MethodGet, "/api/v1/jiraCards", nil)
	if w.Code != http.StatusOK || body["total_count"] != float64(1) {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
	data := body["data"].([]any)
	if data[0].(map[string]any)["jira_heading"] != "Add index" {
		t.Errorf("data = %v", data)
	}
}

func TestJiraCards_Empty(t *testing.T) {
	ts := newTestServer(t)
	_, body := do(t, ts.Handler(), http.MethodGet, "/api/v1/jiraCards", nil)
	if data, ok := body["data"].([]any); !ok || len(data) != 0 {
		t.Errorf("data = %v, want empty list", body["data"])
	}
}

func TestJiraCards_SchemaMissing(t *testing.T) {
	ts := newTestServer(t)
	ts.store.cardsErr = &dbexec.Error{Kind: dbexec.KindSchemaMissing, Attempts: 1, Err: errors.New("no such table: jira_dashboard")}

	w, body := do(t, ts.Handler(), http.MethodGet, "/api/v1/jiraCards", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	detail := body["detail"].(map[string]any)
	if detail["error"] != "Database Error" || !strings.Contains(detail["message"].(string), "administrator") {
		t.Errorf("detail = %v", detail)
	}
}

func TestModels(t *testing.T) {
	ts := newTestServer(t)
	_, body := do(t, ts.Handler(), http.MethodGet, "/api/v1/models", nil)
	if body["total_models"] != float64(3) || body["available_count"] != float64(2) {
		t.Errorf("body = %v", body)
	}
}

func TestAIChat_Defaults(t *testing.T) {
	ts := newTestServer(t)
	var gotKey string
	ts.router.ChatFunc = func(_ context.Context, key string, req models.Request) (*models.Response, error) {
		gotKey = key
		return &models.Response{Text: "hi", Provider: "VS Code Copilot"}, nil
	}

	w, body := do(t, ts.Handler(), http.MethodPost, "/api/v1/ai/chat", map[string]any{"prompt": "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%v", w.Code, body)
	}
	if gotKey != models.BridgeKey {
		t.Errorf("model = %q", gotKey)
	}
	if ts.router.last.Temperature != 0.7 || ts.router.last.MaxTokens != 2000 || ts.router.last.Timeout != time.Minute {
		t.Errorf("request = %+v", ts.router.last)
	}
	meta := body["metadata"].(map[string]any)
	if meta["temperature"] != 0.7 || meta["max_tokens"] != float64(2000) {
		t.Errorf("metadata = %v", meta)
	}
}

func TestAIChat_Validation(t *testing.T) {
	ts := newTestServer(t)
	ts.router.ChatFunc = func(context.Context, string, models.Request) (*models.Response, error) {
		t.Fatal("router reached")
		return nil, nil
	}
	bodies := []string{
		`{"prompt":"x","temperature":2.5}`,
		`{"prompt":"x","max_tokens":0}`,
		`{"prompt":"x","max_tokens":4001}`,
		`{"prompt":" "}`,
		`{"prompt":`,
	}
	for _, b := range bodies {
		w, _ := do(t, ts.Handler(), http.MethodPost, "/api/v1/ai/chat", b)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", b, w.Code)
		}
	}
}

func TestAIChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		err     error
		status  int
		success any
	}{
		{"unknown model", "gpt-17", fmt.Errorf("%w: gpt-17", models.ErrUnknownModel), http.StatusBadRequest, nil},
		{"unconfigured", "claude-opus", fmt.Errorf("%w: CLAUDE is not configured", models.ErrProviderUnavailable), http.StatusServiceUnavailable, nil},
		{"bridge error reply", models.BridgeKey, fmt.Errorf("%w: quota", models.ErrProviderFailed), http.StatusInternalServerError, nil},
		{"provider failure", "openai-gpt4", fmt.Errorf("%w: 500", models.ErrProviderFailed), http.StatusOK, false},
		{"bridge timeout", models.BridgeKey, bridge.ErrTimeout, http.StatusGatewayTimeout, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.router.ChatFunc = func(context.Context, string, models.Request) (*models.Response, error) {
				return nil, tt.err
			}
			w, body := do(t, ts.Handler(), http.MethodPost, "/api/v1/ai/chat", map[string]any{"prompt": "hi", "model": tt.model})
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %v)", w.Code, tt.status, body)
			}
			if body["success"] != tt.success {
				t.Errorf("success = %v, want %v", body["success"], tt.success)
			}
		})
	}
}

func TestModelsDisabledWithoutRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(Deps{Bridge: &mockBridge{}, Store: &mockStore{}, DB: mockDB{}, Logger: logging.Discard()})
	w, _ := do(t, s.Handler(), http.MethodGet, "/api/v1/models", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jiraCards", nil)
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("status=%d headers=%v", w.Code, w.Header())
	}
}
