package monitor

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Poll broadcasts task_changed whenever a row's last_updated moves. It
// skips ticks with no monitor clients and returns when ctx is done.
func (s *Service) Poll(ctx context.Context) {
	t := time.NewTicker(s.opts.PollInterval)
	defer t.Stop()
	seen := make(map[string]string)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s.hub.Connections() == 0 {
				continue
			}
			s.checkChanges(ctx, seen)
		}
	}
}

// checkChanges compares stamps against seen, updating it, and returns the
// number of tasks broadcast.
func (s *Service) checkChanges(ctx context.Context, seen map[string]string) int {
	stamps, err := s.store.LastUpdated(ctx)
	if err != nil {
		s.log.Error("polling database", "err", err)
		return 0
	}
	changed := 0
	for jira, stamp := range stamps {
		if prev, ok := seen[jira]; ok && prev == stamp {
			continue
		}
		seen[jira] = stamp
		task, err := s.store.Task(ctx, jira)
		if err != nil {
			s.log.Warn("loading changed task", "jira", jira, "err", err)
			continue
		}
		s.hub.Broadcast(gin.H{"type": "task_changed", "data": task, "timestamp": s.timestamp()})
		s.log.Info("detected change in task", "jira", jira)
		changed++
	}
	return changed
}
