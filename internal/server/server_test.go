package server

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/devmind/internal/config"
	"github.com/HendryAvila/devmind/internal/dashboard"
	"github.com/HendryAvila/devmind/internal/dbexec"
	"github.com/HendryAvila/devmind/internal/jira"
	"github.com/HendryAvila/devmind/internal/logging"
	"github.com/HendryAvila/devmind/internal/svn"
	"github.com/HendryAvila/devmind/internal/tools"
)

func newStore(t *testing.T) (*dashboard.Store, *dbexec.Executor) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jira_dashboard.db")
	if err := dbexec.EnsureFile(path); err != nil {
		t.Fatal(err)
	}
	exec := dbexec.New(path, dbexec.Options{BaseDelay: time.Millisecond, Logger: logging.Discard()})
	if err := dashboard.Init(context.Background(), exec); err != nil {
		t.Fatal(err)
	}
	return dashboard.New(exec, logging.Discard()), exec
}

// call sends one JSON-RPC request through the server and returns the
// decoded result member.
func call(t *testing.T, d Deps, method string, params any) map[string]any {
	t.Helper()
	s := New(d)
	ctx := context.Background()
	for i, m := range []struct {
		method string
		params any
	}{
		{"initialize", map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "0"},
		}},
		{method, params},
	} {
		raw, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": i + 1, "method": m.method, "params": m.params})
		resp := s.HandleMessage(ctx, raw)
		if i == 0 {
			continue
		}
		buf, err := json.Marshal(resp)
		if err != nil {
			t.Fatalf("marshal response: %v", err)
		}
		var out struct {
			Result map[string]any `json:"result"`
			Error  any            `json:"error"`
		}
		if err := json.Unmarshal(buf, &out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if out.Error != nil {
			t.Fatalf("%s failed: %v", method, out.Error)
		}
		return out.Result
	}
	return nil
}

func names(t *testing.T, result map[string]any, key string) []string {
	t.Helper()
	list, _ := result[key].([]any)
	var out []string
	for _, item := range list {
		m, _ := item.(map[string]any)
		if n, ok := m["name"].(string); ok {
			out = append(out, n)
		} else if u, ok := m["uri"].(string); ok {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

func noJira() tools.JiraSource {
	return tools.LazyJira(func() (*jira.Client, error) { return nil, config.ErrNoCredentials })
}

func TestNew_RegistersEverything(t *testing.T) {
	store, exec := newStore(t)
	d := Deps{
		Store:       store,
		DashboardDB: exec,
		Standards:   dashboard.NewStandards(exec),
		StandardsDB: exec,
		Jira:        noJira(),
		SVN:         svn.New(config.SVNCredentials{BaseURL: "https://svn.example.com"}),
		SVNBaseURL:  "https://svn.example.com",
		Logger:      logging.Discard(),
	}

	got := names(t, call(t, d, "tools/list", map[string]any{}), "tools")
	want := []string{
		"add_comment_to_issue", "add_or_update_jira_dashboard", "add_to_jira_kb",
		"analyze_oracle_standards", "get_committed_file_version", "get_issue_comments",
		"get_issue_transitions", "get_jira_issue", "get_jira_prompt", "get_latest_component_version",
		"get_latest_jira_tmp_prompt", "get_svn_path_for_requirement", "insert_jira_prompt",
		"list_svn_path_mappings", "search_issues_by_assignee", "search_issues_by_jql",
		"search_similar_jira_requirements", "update_issue_status", "update_jira_prompt",
	}
	if len(got) != len(want) {
		t.Fatalf("tools = %v\nwant %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if p := names(t, call(t, d, "prompts/list", map[string]any{}), "prompts"); len(p) != 2 || p[0] != "jira-analysis" {
		t.Errorf("prompts = %v", p)
	}
	if r := names(t, call(t, d, "resources/list", map[string]any{}), "resources"); len(r) != 2 || r[0] != "devmind://health" {
		t.Errorf("resources = %v", r)
	}
}

func TestNew_OptionalComponentsSkipped(t *testing.T) {
	store, exec := newStore(t)
	d := Deps{Store: store, DashboardDB: exec, Jira: noJira(), Logger: logging.Discard()}

	for _, n := range names(t, call(t, d, "tools/list", map[string]any{}), "tools") {
		switch n {
		case "analyze_oracle_standards", "get_committed_file_version", "get_latest_component_version", "get_svn_path_for_requirement":
			t.Errorf("tool %q registered without its dependency", n)
		}
	}
}

func TestNew_PromptRendersStoredTemplate(t *testing.T) {
	store, exec := newStore(t)
	d := Deps{Store: store, DashboardDB: exec, Jira: noJira(), Logger: logging.Discard()}

	res := call(t, d, "prompts/get", map[string]any{"name": "jira-analysis", "arguments": map[string]string{"jira_id": "CMU-5"}})
	msgs, _ := res["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", res)
	}
	content := msgs[0].(map[string]any)["content"].(map[string]any)
	if text, _ := content["text"].(string); !strings.HasPrefix(text, "Analyze Jira issue CMU-5") {
		t.Errorf("text = %q", text)
	}
}
