package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HendryAvila/devmind/internal/config"
	"github.com/HendryAvila/devmind/internal/logging"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(config.JiraCredentials{BaseURL: srv.URL + "/", Username: "bob", APIToken: "tok", VerifySSL: true}, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	tests := []config.JiraCredentials{
		{Username: "bob", Password: "pw"},
		{BaseURL: "https://jira", Username: "bob"},
	}
	for _, creds := range tests {
		if _, err := New(creds, nil); !errors.Is(err, ErrNoCredentials) {
			t.Errorf("New(%+v) err = %v", creds, err)
		}
	}
}

func TestIssue_BasicAuthAndDecode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bob" || pass != "tok" {
			t.Errorf("auth = %q/%q", user, pass)
		}
		if r.URL.Path != "/rest/api/2/issue/CMU-105" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"key":"CMU-105","fields":{"summary":"Fix it","status":{"name":"To Do"},"assignee":null}}`))
	})

	is, err := c.Issue(context.Background(), "CMU-105")
	if err != nil {
		t.Fatal(err)
	}
	if is.Fields.Summary != "Fix it" || is.StatusName() != "To Do" || is.AssigneeName() != "Unassigned" || is.PriorityName() != "Unknown" {
		t.Errorf("issue = %+v", is)
	}
}

func TestIssueRaw(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"key":"A-1","extra":true}`))
	})
	raw, err := c.IssueRaw(context.Background(), "A-1")
	if err != nil || !strings.Contains(string(raw), `"extra":true`) {
		t.Errorf("raw = %s, err = %v", raw, err)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Issue does not exist", http.StatusNotFound)
	})
	_, err := c.Issue(context.Background(), "NOPE-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded against a failing server")
	}
}

func TestSearch_CapsMaxResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("jql") != `assignee = "Ann"` || q.Get("maxResults") != "100" || q.Get("fields") != searchFields {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"total":2,"issues":[{"key":"A-1","fields":{"summary":"one"}},{"key":"A-2","fields":{"summary":"two"}}]}`))
	})
	res, err := c.Search(context.Background(), `assignee = "Ann"`, 500, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 || len(res.Issues) != 2 || res.Issues[1].Fields.Summary != "two" {
		t.Errorf("res = %+v", res)
	}
}

func TestComments_NewestFirst(t *testing.T) {
	var posted map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&posted)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"comments":[
			{"body":"old","created":"2025-01-01T00:00:00.000+0000","author":{"displayName":"A"}},
			{"body":"new","created":"2025-02-01T00:00:00.000+0000","author":{"displayName":"B"}}]}`))
	})

	if err := c.AddComment(context.Background(), "A-1", "hello"); err != nil {
		t.Fatal(err)
	}
	if posted["body"] != "hello" {
		t.Errorf("posted = %v", posted)
	}
	comments, err := c.Comments(context.Background(), "A-1")
	if err != nil {
		t.Fatal(err)
	}
	if comments[0].Body != "new" || comments[1].Author.DisplayName != "A" {
		t.Errorf("comments = %+v", comments)
	}
}

func TestTransitions(t *testing.T) {
	var payload map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&payload)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"transitions":[
			{"id":"11","name":"Start","to":{"name":"In Progress"}},
			{"id":"31","name":"Finish","to":{"name":"Development Done"}}]}`))
	})

	ts, err := c.Transitions(context.Background(), "A-1")
	if err != nil {
		t.Fatal(err)
	}
	if tr := FindTransition(ts, "in progress"); tr == nil || tr.ID != "11" {
		t.Errorf("exact match = %+v", tr)
	}
	if tr := FindTransition(ts, "done"); tr == nil || tr.ID != "31" {
		t.Errorf("substring match = %+v", tr)
	}
	if tr := FindTransition(ts, "Closed"); tr != nil {
		t.Errorf("unexpected match %+v", tr)
	}

	if err := c.DoTransition(context.Background(), "A-1", "31", "shipped"); err != nil {
		t.Fatal(err)
	}
	if payload["transition"].(map[string]any)["id"] != "31" || payload["update"] == nil {
		t.Errorf("payload = %v", payload)
	}
}
