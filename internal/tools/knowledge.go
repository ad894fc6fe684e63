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

// ─── search_similar_jira_requirements ───────────────────────────────────────

// KnowledgeSearchTool handles search_similar_jira_requirements.
type KnowledgeSearchTool struct {
	store *dashboard.Store
}

func NewKnowledgeSearchTool(store *dashboard.Store) *KnowledgeSearchTool {
	return &KnowledgeSearchTool{store: store}
}

func (t *KnowledgeSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_similar_jira_requirements",
		mcp.WithDescription("Search the knowledge base of solved Jira requirements by keyword. "+
			"Matches module, requirement description, solution summary and key objects."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Keyword, e.g. 'UPI', 'settlement', 'audit table'")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default: 5)")),
	)
}

func (t *KnowledgeSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, bad := required(req, "query")
	if bad != nil {
		return bad, nil
	}
	entries, err := t.store.SearchKnowledge(ctx, query, intArg(req, "limit", 5))
	if err != nil {
		return errResult("knowledge base search failed: %v", err), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No similar requirements found for '%s'.", query)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %s for '%s':\n%s\n", plural(len(entries), "similar requirement"), query, rule)
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s [%s]\n", i+1, e.JiraID, e.Module)
		fmt.Fprintf(&b, "   Requirement: %s\n", e.RequirementDescription)
		fmt.Fprintf(&b, "   Solution: %s\n", e.SolutionSummary)
		if e.KeyObjects != "" {
			fmt.Fprintf(&b, "   Key objects: %s\n", e.KeyObjects)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── add_to_jira_kb ─────────────────────────────────────────────────────────

// KnowledgeAddTool handles add_to_jira_kb.
type KnowledgeAddTool struct {
	store *dashboard.Store
}

func NewKnowledgeAddTool(store *dashboard.Store) *KnowledgeAddTool {
	return &KnowledgeAddTool{store: store}
}

func (t *KnowledgeAddTool) Definition() mcp.Tool {
	return mcp.NewTool("add_to_jira_kb",
		mcp.WithDescription("Add a completed Jira requirement to the knowledge base so later analyses can reuse it."),
		mcp.WithString("jira_id", mcp.Required(), mcp.Description("Jira issue key")),
		mcp.WithString("module", mcp.Required(), mcp.Description("Functional module")),
		mcp.WithString("requirement_description", mcp.Required(), mcp.Description("What was asked")),
		mcp.WithString("solution_summary", mcp.Required(), mcp.Description("How it was solved")),
		mcp.WithString("key_objects", mcp.Required(), mcp.Description("Database objects touched, comma separated")),
		mcp.WithString("project_name", mcp.Description("Project name")),
		mcp.WithString("code_snippet", mcp.Description("Representative code")),
	)
}

func (t *KnowledgeAddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var e dashboard.KnowledgeEntry
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"jira_id", &e.JiraID},
		{"module", &e.Module},
		{"requirement_description", &e.RequirementDescription},
		{"solution_summary", &e.SolutionSummary},
		{"key_objects", &e.KeyObjects},
	} {
		v, bad := required(req, f.key)
		if bad != nil {
			return bad, nil
		}
		*f.dst = v
	}
	e.Project = req.GetString("project_name", "")
	e.CodeSnippet = req.GetString("code_snippet", "")

	if err := t.store.AddKnowledge(ctx, e); err != nil {
		if errors.Is(err, dashboard.ErrDuplicate) {
			return mcp.NewToolResultError(fmt.Sprintf("%s already exists in the knowledge base", e.JiraID)), nil
		}
		return errResult("adding to knowledge base: %v", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added %s to the knowledge base (module: %s)", e.JiraID, e.Module)), nil
}

// ─── analyze_oracle_standards ───────────────────────────────────────────────

// StandardsTool handles analyze_oracle_standards.
type StandardsTool struct {
	standards *dashboard.Standards
}

func NewStandardsTool(s *dashboard.Standards) *StandardsTool { return &StandardsTool{standards: s} }

func (t *StandardsTool) Definition() mcp.Tool {
	return mcp.NewTool("analyze_oracle_standards",
		mcp.WithDescription("Return the Oracle development standards: SVN layout, standard utility procedures, "+
			"DDL templates and naming conventions. Call before generating database code."),
	)
}

func (t *StandardsTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := t.standards.Analyze(ctx)
	if err != nil {
		return errResult("analyzing oracle standards: %v", err), nil
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errResult("encoding report: %v", err), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
