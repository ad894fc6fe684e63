// Package bridge talks to the editor extension's local WebSocket.
//
// A Manager owns at most one physical connection. Exchanges are
// serialized: one prompt is outstanding at a time, and replies whose
// requestId does not match the outstanding request are dropped as stale.
// A reader goroutine per connection feeds an inbox so that a response
// timeout leaves the connection usable.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HendryAvila/devmind/internal/logging"
)

// DefaultURL is where the extension listens.
const DefaultURL = "ws://127.0.0.1:8765"

// Message types on the wire.
const (
	TypeRequest  = "copilot_request"
	TypeResponse = "copilot_response"
	TypeError    = "error"
)

var (
	// ErrUnavailable means the extension could not be reached.
	ErrUnavailable = errors.New("bridge: extension unavailable")
	// ErrTimeout means no reply arrived in time. The connection stays open.
	ErrTimeout = errors.New("bridge: response timeout")
	// ErrClosed means the connection dropped mid-exchange.
	ErrClosed = errors.New("bridge: connection closed")
	// ErrMalformed means the reply was not a JSON object.
	ErrMalformed = errors.New("bridge: malformed response")
)

const (
	inboxSize      = 16
	writeTimeout   = 10 * time.Second
	handshakeLimit = 10 * time.Second
)

// ─── Wire types ──────────────────────────────────────────────────────────────

// Options are the optional generation parameters forwarded to the extension.
type Options struct {
	Temperature *float64
	MaxTokens   *int
}

// Request is the outbound envelope.
type Request struct {
	Type        string   `json:"type"`
	RequestID   string   `json:"requestId"`
	Prompt      string   `json:"prompt"`
	Timestamp   string   `json:"timestamp"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// Message is an inbound frame. Raw holds the frame as received so callers
// can read fields this type does not name.
type Message struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Response  string          `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// ─── Manager ─────────────────────────────────────────────────────────────────

// Manager is the single bridge connection shared by every caller.
type Manager struct {
	url    string
	dialer *websocket.Dialer
	log    *slog.Logger
	now    func() time.Time

	// exchange serializes SendPrompt and Send and guards lastStamp.
	exchange  sync.Mutex
	lastStamp time.Time

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	inbox     chan []byte
	done      chan struct{}
}

// New returns a disconnected Manager for url ("" means DefaultURL).
func New(url string, log *slog.Logger) *Manager {
	if url == "" {
		url = DefaultURL
	}
	return &Manager{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeLimit},
		log:    logging.OrDefault(log).With("component", "bridge"),
		now:    time.Now,
	}
}

// URL returns the extension address.
func (m *Manager) URL() string { return m.url }

// Connected reports whether the last connect succeeded and no closure
// has been observed since.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Connect makes one connection attempt, replacing any existing connection.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) error {
	m.closeLocked()

	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		m.log.Warn("extension not reachable", "url", m.url, "err", err)
		return fmt.Errorf("%w at %s: %v", ErrUnavailable, m.url, err)
	}

	inbox := make(chan []byte, inboxSize)
	done := make(chan struct{})
	m.conn, m.inbox, m.done, m.connected = conn, inbox, done, true
	go m.readLoop(conn, inbox, done)

	m.log.Info("connected to extension", "url", m.url)
	return nil
}

// Disconnect closes the connection. Safe to call repeatedly.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	return nil
}

func (m *Manager) closeLocked() {
	m.connected = false
	if m.conn == nil {
		return
	}
	_ = m.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		m.now().Add(time.Second))
	_ = m.conn.Close()
	m.conn = nil
	m.log.Info("disconnected from extension")
}

// markClosed records that conn died, unless it was already replaced.
func (m *Manager) markClosed(conn *websocket.Conn, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != conn {
		return
	}
	m.connected = false
	_ = conn.Close()
	m.conn = nil
	m.log.Error("extension connection closed", "err", err)
}

func (m *Manager) readLoop(conn *websocket.Conn, inbox chan<- []byte, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.markClosed(conn, err)
			return
		}
		select {
		case inbox <- data:
		default:
			m.log.Warn("inbox full, dropping extension message", "bytes", len(data))
		}
	}
}

// ensure returns the live connection, connecting once if needed.
func (m *Manager) ensure(ctx context.Context) (*websocket.Conn, chan []byte, chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected || m.conn == nil {
		if err := m.connectLocked(ctx); err != nil {
			return nil, nil, nil, err
		}
	}
	return m.conn, m.inbox, m.done, nil
}

// ─── Exchanges ───────────────────────────────────────────────────────────────

// SendPrompt sends prompt and waits up to timeout for the reply. The
// reply is returned as received; a "type":"error" frame is not a Go error.
func (m *Manager) SendPrompt(ctx context.Context, prompt string, timeout time.Duration, opts Options) (*Message, error) {
	m.exchange.Lock()
	defer m.exchange.Unlock()

	conn, inbox, done, err := m.ensure(ctx)
	if err != nil {
		return nil, err
	}
	drain(inbox)

	req := m.newRequest(prompt, opts)
	if err := m.write(conn, req); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case data := <-inbox:
			msg, ok, err := m.match(data, req.RequestID)
			if ok || err != nil {
				return msg, err
			}
		case <-done:
			return m.lastFrames(inbox, req.RequestID)
		case <-timer.C:
			m.log.Warn("no reply from extension", "request_id", req.RequestID, "timeout", timeout)
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Send writes prompt without waiting for a reply and returns its requestId.
// Any later reply is discarded as stale by the next SendPrompt.
func (m *Manager) Send(ctx context.Context, prompt string, opts Options) (string, error) {
	m.exchange.Lock()
	defer m.exchange.Unlock()

	conn, _, _, err := m.ensure(ctx)
	if err != nil {
		return "", err
	}
	req := m.newRequest(prompt, opts)
	if err := m.write(conn, req); err != nil {
		return "", err
	}
	return req.RequestID, nil
}

func (m *Manager) newRequest(prompt string, opts Options) Request {
	// Request ids are timestamps; keep them strictly increasing.
	t := m.now()
	if !t.After(m.lastStamp) {
		t = m.lastStamp.Add(time.Nanosecond)
	}
	m.lastStamp = t
	ts := t.Format(time.RFC3339Nano)
	return Request{
		Type:        TypeRequest,
		RequestID:   ts,
		Prompt:      prompt,
		Timestamp:   ts,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

func (m *Manager) write(conn *websocket.Conn, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("bridge: encoding request: %w", err)
	}
	_ = conn.SetWriteDeadline(m.now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.markClosed(conn, err)
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// match decodes data and reports whether it answers requestID.
// Frames without a requestId are accepted.
func (m *Manager) match(data []byte, requestID string) (*Message, bool, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msg.Raw = append(json.RawMessage(nil), data...)
	if msg.RequestID != "" && msg.RequestID != requestID {
		m.log.Warn("discarding stale extension reply", "request_id", msg.RequestID, "want", requestID)
		return nil, false, nil
	}
	return &msg, true, nil
}

// lastFrames checks frames read just before the connection closed.
func (m *Manager) lastFrames(inbox <-chan []byte, requestID string) (*Message, error) {
	for {
		select {
		case data := <-inbox:
			msg, ok, err := m.match(data, requestID)
			if ok || err != nil {
				return msg, err
			}
		default:
			return nil, ErrClosed
		}
	}
}

func drain(inbox <-chan []byte) {
	for {
		select {
		case <-inbox:
		default:
			return
		}
	}
}
