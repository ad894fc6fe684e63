package models

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
)

const claudeDefaultMaxTokens = 2000

// ClaudeProvider calls the Anthropic Messages API.
type ClaudeProvider struct {
	apiKey string
	client anthropic.Client
}

// NewClaude builds a provider. An empty key leaves it unavailable.
func NewClaude(apiKey, baseURL string, extra ...aoption.RequestOption) *ClaudeProvider {
	opts := []aoption.RequestOption{aoption.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, aoption.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &ClaudeProvider{apiKey: apiKey, client: anthropic.NewClient(opts...)}
}

func (p *ClaudeProvider) Name() string    { return "claude" }
func (p *ClaudeProvider) Available() bool { return p.apiKey != "" }

func (p *ClaudeProvider) Generate(ctx context.Context, model string, req Request) (*Response, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = claudeDefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: claude: %v", ErrProviderFailed, err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			b.WriteString(v.Text)
		}
	}
	return &Response{Text: b.String(), Provider: "CLAUDE - " + model, Model: model}, nil
}
