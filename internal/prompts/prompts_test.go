package prompts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/devmind/internal/dashboard"
)

type fakeTemplates struct {
	text string
	err  error
}

func (f fakeTemplates) PromptTemplate(context.Context, string) (string, error) { return f.text, f.err }

func promptReq(args map[string]string) mcp.GetPromptRequest {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = args
	return req
}

func messageText(t *testing.T, res *mcp.GetPromptResult) string {
	t.Helper()
	if len(res.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(res.Messages))
	}
	tc, ok := res.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", res.Messages[0].Content)
	}
	return tc.Text
}

func TestAnalysisPrompt(t *testing.T) {
	tests := []struct {
		name  string
		store fakeTemplates
		want  string
	}{
		{"stored template", fakeTemplates{text: "Work on ? now, then save ?"}, "Work on CMU-1 now, then save CMU-1"},
		{"default template", fakeTemplates{err: dashboard.ErrTemplateNotFound}, "Analyze Jira issue CMU-1 end to end."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewAnalysisPrompt(tt.store).Handle(context.Background(), promptReq(map[string]string{"jira_id": " CMU-1 "}))
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if got := messageText(t, res); !strings.HasPrefix(got, tt.want) {
				t.Errorf("text = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestAnalysisPrompt_Errors(t *testing.T) {
	p := NewAnalysisPrompt(fakeTemplates{err: errors.New("disk I/O error")})
	if _, err := p.Handle(context.Background(), promptReq(map[string]string{"jira_id": "CMU-1"})); err == nil {
		t.Error("expected store error")
	}
	if _, err := p.Handle(context.Background(), promptReq(nil)); err == nil {
		t.Error("expected missing jira_id error")
	}
}

func TestStatusPrompt(t *testing.T) {
	res, err := NewStatusPrompt().Handle(context.Background(), promptReq(map[string]string{"jira_id": "CMU-2"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if text := messageText(t, res); !strings.Contains(text, "issue_key='CMU-2'") {
		t.Errorf("text = %q", text)
	}
}
