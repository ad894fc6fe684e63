package models

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

// OpenAIProvider calls the Chat Completions API.
type OpenAIProvider struct {
	apiKey string
	client openai.Client
}

// NewOpenAI builds a provider. An empty key leaves it unavailable.
// baseURL may be empty; extra options are appended last.
func NewOpenAI(apiKey, baseURL string, extra ...ooption.RequestOption) *OpenAIProvider {
	opts := []ooption.RequestOption{ooption.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, ooption.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &OpenAIProvider{apiKey: apiKey, client: openai.NewClient(opts...)}
}

func (p *OpenAIProvider) Name() string    { return "openai" }
func (p *OpenAIProvider) Available() bool { return p.apiKey != "" }

func (p *OpenAIProvider) Generate(ctx context.Context, model string, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", ErrProviderFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", ErrProviderFailed)
	}
	return &Response{
		Text:     resp.Choices[0].Message.Content,
		Provider: "OPENAI - " + model,
		Model:    model,
	}, nil
}
