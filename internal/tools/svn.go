package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/devmind/internal/dashboard"
	"github.com/HendryAvila/devmind/internal/svn"
)

// ─── get_committed_file_version ─────────────────────────────────────────────

// FileVersionTool handles get_committed_file_version.
type FileVersionTool struct {
	svn *svn.Client
}

func NewFileVersionTool(c *svn.Client) *FileVersionTool { return &FileVersionTool{svn: c} }

func (t *FileVersionTool) Definition() mcp.Tool {
	return mcp.NewTool("get_committed_file_version",
		mcp.WithDescription("Show the recent SVN history (svn log -v) of a file in a component."),
		mcp.WithString("component", mcp.Required(), mcp.Description("Component name, e.g. FZGDPR")),
		mcp.WithString("svn_path", mcp.Required(), mcp.Description("Path inside the component")),
		mcp.WithNumber("history_limit", mcp.Description("Number of revisions (default: 5)")),
	)
}

func (t *FileVersionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	component, bad := required(req, "component")
	if bad != nil {
		return bad, nil
	}
	path, bad := required(req, "svn_path")
	if bad != nil {
		return bad, nil
	}
	out, err := t.svn.Log(ctx, component, path, intArg(req, "history_limit", 5))
	if err != nil {
		return errResult("failed to get version: %v", err), nil
	}
	return mcp.NewToolResultText(out), nil
}

// ─── get_latest_component_version ───────────────────────────────────────────

// LatestVersionTool handles get_latest_component_version.
type LatestVersionTool struct {
	svn *svn.Client
}

func NewLatestVersionTool(c *svn.Client) *LatestVersionTool { return &LatestVersionTool{svn: c} }

func (t *LatestVersionTool) Definition() mcp.Tool {
	return mcp.NewTool("get_latest_component_version",
		mcp.WithDescription("Get the latest SVN revision of a component's DB directory."),
		mcp.WithString("component", mcp.Required(), mcp.Description("Component name")),
		mcp.WithString("repo_path", mcp.Description("trunk or branches/<name> (default: trunk)")),
		mcp.WithString("db_subdirectory", mcp.Description("Subdirectory under DB, e.g. OraBE/WEBLOGIC_DBA")),
	)
}

func (t *LatestVersionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	component, bad := required(req, "component")
	if bad != nil {
		return bad, nil
	}
	dir := strings.Trim(req.GetString("repo_path", "trunk"), "/") + "/DB"
	if sub := strings.Trim(req.GetString("db_subdirectory", ""), "/"); sub != "" {
		dir += "/" + sub
	}

	info, err := t.svn.Info(ctx, component, dir)
	if err != nil {
		return errResult("failed to get info: %v", err), nil
	}
	line := strings.Repeat("=", 70)
	return mcp.NewToolResultText(fmt.Sprintf(
		"Latest Version Info: %s/%s\n%s\nCurrent Revision: %s\nLast Changed Revision: %s\n"+
			"Last Changed Author: %s\nLast Changed Date: %s\n%s\n",
		component, dir, line, info.Revision, info.LastChangedRev,
		info.LastChangedAuthor, info.LastChangedDate, line)), nil
}

// ─── get_svn_path_for_requirement ───────────────────────────────────────────

// SVNPathTool handles get_svn_path_for_requirement.
type SVNPathTool struct {
	store *dashboard.Store
	svn   *svn.Client
}

func NewSVNPathTool(store *dashboard.Store, c *svn.Client) *SVNPathTool {
	return &SVNPathTool{store: store, svn: c}
}

func (t *SVNPathTool) Definition() mcp.Tool {
	return mcp.NewTool("get_svn_path_for_requirement",
		mcp.WithDescription("Get the SVN path where a kind of change lives for a component. "+
			"Requirement types include table_creation, table_alter, table_update, table_insert, table_delete, "+
			"table_grants, view_creation, procedure_creation and package_creation (spec and body paths)."),
		mcp.WithString("component_name", mcp.Required(), mcp.Description("Component name, e.g. FZGDPR")),
		mcp.WithString("requirement_type", mcp.Required(), mcp.Description("Requirement type")),
	)
}

func (t *SVNPathTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	component, bad := required(req, "component_name")
	if bad != nil {
		return bad, nil
	}
	reqType, bad := required(req, "requirement_type")
	if bad != nil {
		return bad, nil
	}

	m, err := t.store.SVNPath(ctx, component, reqType)
	if err != nil {
		var miss *dashboard.SVNPathMissError
		if errors.As(err, &miss) {
			var b strings.Builder
			b.WriteString(miss.Error())
			if len(miss.Available) > 0 {
				fmt.Fprintf(&b, "\n\nAvailable requirement types for '%s':\n", component)
				for _, a := range miss.Available {
					fmt.Fprintf(&b, "  - %s\n", a)
				}
			} else {
				b.WriteString("\n\nUse list_svn_path_mappings to see configured components.")
			}
			return mcp.NewToolResultError(b.String()), nil
		}
		return errResult("looking up svn path: %v", err), nil
	}

	paths := m.Paths()
	var b strings.Builder
	if len(paths) > 1 {
		fmt.Fprintf(&b, "SVN Paths for %s - %s\n%s\nThis requirement type has multiple paths:\n\n", m.Component, m.RequirementType, rule)
		for i, p := range paths {
			fmt.Fprintf(&b, "%d. %s\n", i+1, p)
		}
		fmt.Fprintf(&b, "\n%s\nFull URLs:\n", rule)
		for i, p := range paths {
			fmt.Fprintf(&b, "%d. %s\n", i+1, t.svn.PathURL(p))
		}
		return mcp.NewToolResultText(b.String()), nil
	}

	path := strings.TrimSpace(m.Path)
	fmt.Fprintf(&b, "SVN Path for %s - %s\n%s\nPath: %s\nFull URL: %s\n%s\n",
		m.Component, m.RequirementType, rule, path, t.svn.PathURL(path), rule)
	return mcp.NewToolResultText(b.String()), nil
}

// ─── list_svn_path_mappings ─────────────────────────────────────────────────

// SVNMappingsTool handles list_svn_path_mappings.
type SVNMappingsTool struct {
	store *dashboard.Store
}

func NewSVNMappingsTool(store *dashboard.Store) *SVNMappingsTool {
	return &SVNMappingsTool{store: store}
}

func (t *SVNMappingsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_svn_path_mappings",
		mcp.WithDescription("List the configured SVN path mappings, optionally for one component."),
		mcp.WithString("component_name", mcp.Description("Only list this component")),
	)
}

func (t *SVNMappingsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	component := strings.TrimSpace(req.GetString("component_name", ""))
	mappings, err := t.store.SVNMappings(ctx, component)
	if err != nil {
		return errResult("listing svn paths: %v", err), nil
	}
	if len(mappings) == 0 {
		if component != "" {
			return mcp.NewToolResultText(fmt.Sprintf("No SVN path mappings found for component '%s'", component)), nil
		}
		return mcp.NewToolResultText("No SVN path mappings configured"), nil
	}

	var b strings.Builder
	title := "All SVN Path Mappings"
	if component != "" {
		title = "SVN Path Mappings for " + component
	}
	fmt.Fprintf(&b, "%s (%d)\n%s\n", title, len(mappings), rule)
	current := ""
	for _, m := range mappings {
		if m.Component != current {
			current = m.Component
			fmt.Fprintf(&b, "\n%s\n", current)
		}
		paths := m.Paths()
		if len(paths) == 1 {
			fmt.Fprintf(&b, "  %s: %s\n", m.RequirementType, paths[0])
			continue
		}
		fmt.Fprintf(&b, "  %s:\n", m.RequirementType)
		for _, p := range paths {
			fmt.Fprintf(&b, "    - %s\n", p)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
