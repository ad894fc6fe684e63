package monitor

import (
	"context"
	"testing"

	"github.com/HendryAvila/devmind/internal/logging"
)

func TestNotifier_DeliversTaskUpdate(t *testing.T) {
	s, srv := newTestService(t, newFakeStore())
	conn := dial(t, srv, "/ws/monitor")
	readJSON(t, conn)
	waitFor(t, func() bool { return s.hub.Connections() == 1 })

	NewNotifier(srv.URL+"/", logging.Discard()).Notify(context.Background(), "CMU-9", "dashboard", "created", "added", 25)

	msg := readJSON(t, conn)
	data, _ := msg["data"].(map[string]any)
	if msg["type"] != "task_update" || data["jira_number"] != "CMU-9" || data["progress"] != float64(25) {
		t.Fatalf("broadcast = %v", msg)
	}
	if ts, _ := data["timestamp"].(string); ts == "" {
		t.Error("timestamp not set")
	}
}

func TestNotifier_UnreachableIsSilent(t *testing.T) {
	n := NewNotifier("http://127.0.0.1:1", logging.Discard())
	n.Notify(context.Background(), "CMU-9", "dashboard", "created", "added", 0)
}

func TestNotifier_RejectedUpdate(t *testing.T) {
	_, srv := newTestService(t, newFakeStore())
	n := NewNotifier(srv.URL, logging.Discard())
	if err := n.post(context.Background(), TaskUpdate{JiraNumber: "CMU-9"}); err == nil {
		t.Fatal("expected error for update without status and stage")
	}
}
