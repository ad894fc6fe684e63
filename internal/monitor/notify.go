package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HendryAvila/devmind/internal/logging"
)

// DefaultNotifyTimeout bounds one notification request.
const DefaultNotifyTimeout = 2 * time.Second

// Notifier posts task updates to a running monitoring service. Failures
// are logged and otherwise ignored: tools must not fail because nobody
// is watching.
type Notifier struct {
	baseURL string
	hc      *http.Client
	log     *slog.Logger
	now     func() time.Time
}

// NewNotifier returns a Notifier for the service at baseURL
// (e.g. http://localhost:5002).
func NewNotifier(baseURL string, log *slog.Logger) *Notifier {
	return &Notifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: DefaultNotifyTimeout},
		log:     logging.OrDefault(log).With("component", "monitor-notify"),
		now:     time.Now,
	}
}

// Notify sends one task_update.
func (n *Notifier) Notify(ctx context.Context, jiraNumber, stage, status, message string, progress int) {
	if err := n.post(ctx, TaskUpdate{
		JiraNumber: jiraNumber,
		Status:     status,
		Stage:      stage,
		Message:    message,
		Timestamp:  n.now().Format(timestampLayout),
		Progress:   progress,
	}); err != nil {
		n.log.Debug("monitor notification not delivered", "jira", jiraNumber, "err", err)
	}
}

func (n *Notifier) post(ctx context.Context, u TaskUpdate) error {
	body, err := json.Marshal(u)
	if err != nil {
		return err
	}
	endpoint := n.baseURL + "/api/tasks/" + url.PathEscape(u.JiraNumber) + "/notify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("monitor returned status %d", resp.StatusCode)
	}
	return nil
}
