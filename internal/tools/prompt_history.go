package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/devmind/internal/dashboard"
)

// artifactParams are shared by insert_jira_prompt and update_jira_prompt.
func artifactParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("category", mcp.Description("Requirement category")),
		mcp.WithString("analysis_prompt", mcp.Description("Analysis text, or a path to a file holding it")),
		mcp.WithString("gen_code", mcp.Description("Generated code, or a file path")),
		mcp.WithString("gen_test_case", mcp.Description("Generated test cases, or a file path")),
		mcp.WithString("deployment_prompt", mcp.Description("Deployment notes, or a file path")),
		mcp.WithNumber("rewards", mcp.Description("Quality score for the generated artifacts")),
	}
}

func recordFrom(req mcp.CallToolRequest, jiraID string) dashboard.PromptRecord {
	return dashboard.PromptRecord{
		JiraNumber:       jiraID,
		Category:         optString(req, "category"),
		AnalysisPrompt:   optString(req, "analysis_prompt"),
		GenCode:          optString(req, "gen_code"),
		GenTestCase:      optString(req, "gen_test_case"),
		DeploymentPrompt: optString(req, "deployment_prompt"),
		Rewards:          optFloat(req, "rewards"),
	}
}

// ─── get_latest_jira_tmp_prompt ─────────────────────────────────────────────

// TmpPromptTool handles get_latest_jira_tmp_prompt.
type TmpPromptTool struct {
	store *dashboard.Store
}

func NewTmpPromptTool(store *dashboard.Store) *TmpPromptTool { return &TmpPromptTool{store: store} }

func (t *TmpPromptTool) Definition() mcp.Tool {
	return mcp.NewTool("get_latest_jira_tmp_prompt",
		mcp.WithDescription("Get the most recently staged prompt for a Jira issue."),
		mcp.WithString("jira_id", mcp.Required(), mcp.Description("Jira issue key")),
		mcp.WithString("prompt_type", mcp.Description("analysis, deployment or both (default: analysis)")),
	)
}

func (t *TmpPromptTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jiraID, bad := required(req, "jira_id")
	if bad != nil {
		return bad, nil
	}
	kind, err := dashboard.ParsePromptKind(req.GetString("prompt_type", string(dashboard.KindAnalysis)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tp, err := t.store.LatestTmpPrompt(ctx, jiraID, kind)
	if err != nil {
		if errors.Is(err, dashboard.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no staged prompt found for %s", jiraID)), nil
		}
		return errResult("loading staged prompt: %v", err), nil
	}
	return jsonResult(tp)
}

// ─── get_jira_prompt ────────────────────────────────────────────────────────

// GetPromptTool handles get_jira_prompt.
type GetPromptTool struct {
	store *dashboard.Store
}

func NewGetPromptTool(store *dashboard.Store) *GetPromptTool { return &GetPromptTool{store: store} }

func (t *GetPromptTool) Definition() mcp.Tool {
	return mcp.NewTool("get_jira_prompt",
		mcp.WithDescription("Get the latest prompt history entry (analysis, code, tests, deployment) for a Jira issue."),
		mcp.WithString("jira_id", mcp.Required(), mcp.Description("Jira issue key")),
	)
}

func (t *GetPromptTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jiraID, bad := required(req, "jira_id")
	if bad != nil {
		return bad, nil
	}
	rec, err := t.store.LatestPrompt(ctx, jiraID)
	if err != nil {
		if errors.Is(err, dashboard.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no prompt history found for %s", jiraID)), nil
		}
		return errResult("loading prompt history: %v", err), nil
	}
	return jsonResult(rec)
}

// ─── insert_jira_prompt ─────────────────────────────────────────────────────

// InsertPromptTool handles insert_jira_prompt.
type InsertPromptTool struct {
	store  *dashboard.Store
	notify Notifier
}

func NewInsertPromptTool(store *dashboard.Store, n Notifier) *InsertPromptTool {
	return &InsertPromptTool{store: store, notify: orNop(n)}
}

func (t *InsertPromptTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Append a prompt history entry for a Jira issue. Artifact fields accept text or a file path."),
		mcp.WithString("jira_id", mcp.Required(), mcp.Description("Jira issue key")),
	}, artifactParams()...)
	return mcp.NewTool("insert_jira_prompt", opts...)
}

func (t *InsertPromptTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jiraID, bad := required(req, "jira_id")
	if bad != nil {
		return bad, nil
	}
	pid, err := t.store.InsertPrompt(ctx, recordFrom(req, jiraID))
	if err != nil {
		return errResult("inserting prompt: %v", err), nil
	}
	t.notify.Notify(ctx, jiraID, "prompt", "saved", "Prompt history entry created", 0)
	return mcp.NewToolResultText(fmt.Sprintf("Inserted prompt %d for %s", pid, jiraID)), nil
}

// ─── update_jira_prompt ─────────────────────────────────────────────────────

// UpdatePromptTool handles update_jira_prompt.
type UpdatePromptTool struct {
	store  *dashboard.Store
	notify Notifier
}

func NewUpdatePromptTool(store *dashboard.Store, n Notifier) *UpdatePromptTool {
	return &UpdatePromptTool{store: store, notify: orNop(n)}
}

func (t *UpdatePromptTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Update the latest prompt history entry of a Jira issue. Only the given fields change."),
		mcp.WithString("jira_id", mcp.Required(), mcp.Description("Jira issue key")),
	}, artifactParams()...)
	return mcp.NewTool("update_jira_prompt", opts...)
}

func (t *UpdatePromptTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jiraID, bad := required(req, "jira_id")
	if bad != nil {
		return bad, nil
	}
	pid, n, err := t.store.UpdateLatestPrompt(ctx, recordFrom(req, jiraID))
	switch {
	case errors.Is(err, dashboard.ErrNothingToUpdate):
		return mcp.NewToolResultError("no fields provided to update"), nil
	case errors.Is(err, dashboard.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("no existing prompt for %s; use insert_jira_prompt first", jiraID)), nil
	case err != nil:
		return errResult("updating prompt: %v", err), nil
	}
	t.notify.Notify(ctx, jiraID, "prompt", "updated", fmt.Sprintf("Updated %s", plural(n, "field")), 0)
	return mcp.NewToolResultText(fmt.Sprintf("Updated %s on prompt %d for %s", plural(n, "field"), pid, jiraID)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult("encoding result: %v", err), nil
	}
	return mcp.NewToolResultText(strings.TrimSpace(string(out))), nil
}
