package monitor

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/HendryAvila/devmind/internal/dashboard"
)

type clientMessage struct {
	Type       string `json:"type"`
	JiraNumber string `json:"jira_number"`
}

func (s *Service) upgrade(c *gin.Context) (*client, bool) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return nil, false
	}
	conn.SetReadLimit(maxReadSize)
	cl := newClient(conn)
	go cl.writePump(s.log)
	return cl, true
}

// handleMonitorWS streams task changes to a dashboard client.
func (s *Service) handleMonitorWS(c *gin.Context) {
	cl, ok := s.upgrade(c)
	if !ok {
		return
	}
	s.hub.register(cl)
	defer s.hub.unregister(cl)

	ctx := c.Request.Context()
	tasks, err := s.store.Tasks(ctx)
	if err != nil {
		s.log.Error("loading initial tasks", "err", err)
		tasks = []dashboard.Task{}
	}
	s.hub.send(cl, gin.H{"type": "initial_data", "data": tasks, "timestamp": s.timestamp()})

	done := make(chan struct{})
	defer close(done)
	go s.keepAlive(cl, done)

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("monitor client read failed", "client", cl.id, "err", err)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug("ignoring malformed client message", "client", cl.id, "err", err)
			continue
		}
		switch msg.Type {
		case "subscribe":
			if msg.JiraNumber == "" {
				continue
			}
			task, err := s.store.Task(ctx, msg.JiraNumber)
			if err != nil {
				continue
			}
			s.hub.send(cl, gin.H{"type": "task_status", "data": task, "timestamp": s.timestamp()})
		case "ping":
			s.hub.send(cl, gin.H{"type": "pong", "timestamp": s.timestamp()})
		}
	}
}

func (s *Service) keepAlive(cl *client, done <-chan struct{}) {
	t := time.NewTicker(s.opts.KeepAlive)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if !s.hub.send(cl, gin.H{"type": "keepalive", "timestamp": s.timestamp()}) {
				return
			}
		}
	}
}

// handleProgressWS streams progress updates for one Jira. Text "ping" is
// answered with "pong".
func (s *Service) handleProgressWS(c *gin.Context) {
	cl, ok := s.upgrade(c)
	if !ok {
		return
	}
	jira := c.Param("jira")
	if cached, ok := s.hub.registerProgress(cl, jira); ok {
		s.hub.send(cl, cached)
	}
	defer s.hub.unregisterProgress(cl, jira)

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		if string(data) == "ping" {
			cl.enqueue([]byte("pong"))
		}
	}
}
