package models

import (
	"context"
	"fmt"
	"time"

	"github.com/HendryAvila/devmind/internal/bridge"
)

// Prompter is the part of *bridge.Manager the router uses.
type Prompter interface {
	SendPrompt(ctx context.Context, prompt string, timeout time.Duration, opts bridge.Options) (*bridge.Message, error)
	Connected() bool
}

// BridgeProvider serves the editor extension.
type BridgeProvider struct {
	bridge Prompter
}

// NewBridgeProvider wraps the bridge manager.
func NewBridgeProvider(b Prompter) *BridgeProvider {
	return &BridgeProvider{bridge: b}
}

func (p *BridgeProvider) Name() string { return "vscode" }

// Available is the bridge's connection state. The router still tries a
// disconnected bridge, since SendPrompt connects on demand.
func (p *BridgeProvider) Available() bool { return p.bridge.Connected() }

func (p *BridgeProvider) Generate(ctx context.Context, _ string, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opts := bridge.Options{}
	if req.Temperature > 0 {
		opts.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		opts.MaxTokens = &req.MaxTokens
	}

	msg, err := p.bridge.SendPrompt(ctx, req.Prompt, timeout, opts)
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case bridge.TypeResponse:
		return &Response{Text: msg.Response, Provider: "VS Code Copilot", Model: BridgeKey}, nil
	case bridge.TypeError:
		errText := msg.Error
		if errText == "" {
			errText = "unknown error from VS Code bridge"
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderFailed, errText)
	default:
		return nil, fmt.Errorf("%w: unexpected reply type %q", ErrProviderFailed, msg.Type)
	}
}
