// Package tools implements the DevMind MCP tool handlers.
//
// Each tool is a struct holding its dependencies, with Definition()
// returning the mcp.Tool schema and Handle() serving the call. Failures
// the model should see are returned as tool errors, never as Go errors.
package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/devmind/internal/jira"
)

const rule = "================================================================================"

// JiraSource yields a connected Jira client, or an error explaining why
// none is available.
type JiraSource func(ctx context.Context) (*jira.Client, error)

// LazyJira builds the client on first use and verifies it on every call.
// A failed build is retried on the next call.
func LazyJira(build func() (*jira.Client, error)) JiraSource {
	var (
		mu     sync.Mutex
		client *jira.Client
	)
	return func(ctx context.Context) (*jira.Client, error) {
		mu.Lock()
		if client == nil {
			c, err := build()
			if err != nil {
				mu.Unlock()
				return nil, fmt.Errorf("jira connection error: %w; verify that ~/.devmind/credentials.ini exists "+
					"and that base URL, username and token are correct", err)
			}
			client = c
		}
		c := client
		mu.Unlock()

		if err := c.Ping(ctx); err != nil {
			return nil, fmt.Errorf("jira authentication failed (%v); check your credentials in ~/.devmind/credentials.ini", err)
		}
		return c, nil
	}
}

// Notifier reports task progress to the monitoring service.
type Notifier interface {
	Notify(ctx context.Context, jiraNumber, stage, status, message string, progress int)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string, string, int) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// optString returns nil when key is absent or empty.
func optString(req mcp.CallToolRequest, key string) *string {
	v, ok := req.GetArguments()[key].(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}

// optFloat returns nil when key is absent or not a number.
func optFloat(req mcp.CallToolRequest, key string) *float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return nil
	}
	return &v
}

// required trims a string argument and reports a tool error when empty.
func required(req mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	v := strings.TrimSpace(req.GetString(key, ""))
	if v == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("'%s' is required", key))
	}
	return v, nil
}

func errResult(format string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf(format, err))
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
