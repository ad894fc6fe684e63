// Package jira is a small client for the Jira REST API v2.
package jira

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/devmind/internal/config"
	"github.com/HendryAvila/devmind/internal/logging"
)

// ErrNoCredentials is returned when the Jira section lacks a base URL or a
// token/password.
var ErrNoCredentials = errors.New("jira: no valid credentials found")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira: HTTP %d: %s", e.StatusCode, e.Body)
}

// ─── Types ──────────────────────────────────────────────────────────────────

type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type User struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

type IssueFields struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Status      *Named `json:"status"`
	Priority    *Named `json:"priority"`
	IssueType   *Named `json:"issuetype"`
	Assignee    *User  `json:"assignee"`
	Created     string `json:"created"`
	Updated     string `json:"updated"`
}

type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// StatusName returns the status name or "Unknown".
func (i *Issue) StatusName() string {
	if i.Fields.Status == nil || i.Fields.Status.Name == "" {
		return "Unknown"
	}
	return i.Fields.Status.Name
}

// AssigneeName returns the assignee display name or "Unassigned".
func (i *Issue) AssigneeName() string {
	if i.Fields.Assignee == nil || i.Fields.Assignee.DisplayName == "" {
		return "Unassigned"
	}
	return i.Fields.Assignee.DisplayName
}

// PriorityName returns the priority name or "Unknown".
func (i *Issue) PriorityName() string {
	if i.Fields.Priority == nil || i.Fields.Priority.Name == "" {
		return "Unknown"
	}
	return i.Fields.Priority.Name
}

type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   Named  `json:"to"`
}

type Comment struct {
	ID      string `json:"id"`
	Body    string `json:"body"`
	Created string `json:"created"`
	Author  User   `json:"author"`
}

type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// ─── Client ─────────────────────────────────────────────────────────────────

const (
	maxSearchResults = 100
	searchFields     = "key,summary,status,assignee,priority,issuetype,created,updated"
)

// Client talks to one Jira server with basic auth.
type Client struct {
	apiBase  string
	username string
	secret   string
	http     *http.Client
	log      *slog.Logger
}

// New builds a client from credentials. VerifySSL=false disables TLS
// certificate verification.
func New(creds config.JiraCredentials, log *slog.Logger) (*Client, error) {
	if creds.BaseURL == "" || creds.Secret() == "" {
		return nil, ErrNoCredentials
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !creds.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &Client{
		apiBase:  strings.TrimRight(creds.BaseURL, "/") + "/rest/api/2",
		username: creds.Username,
		secret:   creds.Secret(),
		http:     &http.Client{Transport: transport, Timeout: 30 * time.Second},
		log:      logging.OrDefault(log).With("component", "jira"),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jira: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		c.log.Warn("request failed", "method", method, "path", path, "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		b, err := io.ReadAll(resp.Body)
		*raw = b
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Myself returns the authenticated user.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/myself", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Ping verifies the credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Myself(ctx)
	return err
}

// IssueRaw returns the issue JSON as sent by the server.
func (c *Client) IssueRaw(ctx context.Context, key string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/issue/"+url.PathEscape(key), nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Issue fetches one issue.
func (c *Client) Issue(ctx context.Context, key string) (*Issue, error) {
	var is Issue
	if err := c.do(ctx, http.MethodGet, "/issue/"+url.PathEscape(key), nil, nil, &is); err != nil {
		return nil, err
	}
	return &is, nil
}

// Search runs a JQL query. maxResults is capped at 100.
func (c *Client) Search(ctx context.Context, jql string, maxResults, startAt int) (*SearchResult, error) {
	if maxResults <= 0 || maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}
	q := url.Values{
		"jql":        {jql},
		"maxResults": {strconv.Itoa(maxResults)},
		"startAt":    {strconv.Itoa(startAt)},
		"fields":     {searchFields},
	}
	var res SearchResult
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AddComment posts a comment.
func (c *Client) AddComment(ctx context.Context, key, body string) error {
	return c.do(ctx, http.MethodPost, "/issue/"+url.PathEscape(key)+"/comment", nil, map[string]string{"body": body}, nil)
}

// Comments returns the issue comments, newest first.
func (c *Client) Comments(ctx context.Context, key string) ([]Comment, error) {
	var out struct {
		Comments []Comment `json:"comments"`
	}
	if err := c.do(ctx, http.MethodGet, "/issue/"+url.PathEscape(key)+"/comment", nil, nil, &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out.Comments, func(i, j int) bool {
		return out.Comments[i].Created > out.Comments[j].Created
	})
	return out.Comments, nil
}

// Transitions lists the transitions available from the current status.
func (c *Client) Transitions(ctx context.Context, key string) ([]Transition, error) {
	var out struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := c.do(ctx, http.MethodGet, "/issue/"+url.PathEscape(key)+"/transitions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Transitions, nil
}

// DoTransition executes a transition, optionally adding a comment.
func (c *Client) DoTransition(ctx context.Context, key, transitionID, comment string) error {
	payload := map[string]any{"transition": map[string]string{"id": transitionID}}
	if comment != "" {
		payload["update"] = map[string]any{
			"comment": []any{map[string]any{"add": map[string]string{"body": comment}}},
		}
	}
	return c.do(ctx, http.MethodPost, "/issue/"+url.PathEscape(key)+"/transitions", nil, payload, nil)
}

// FindTransition picks the transition whose target status equals status,
// case-insensitively, falling back to a substring match. It returns nil
// when none matches.
func FindTransition(transitions []Transition, status string) *Transition {
	want := strings.ToLower(status)
	for i := range transitions {
		if strings.ToLower(transitions[i].To.Name) == want {
			return &transitions[i]
		}
	}
	for i := range transitions {
		if strings.Contains(strings.ToLower(transitions[i].To.Name), want) {
			return &transitions[i]
		}
	}
	return nil
}
