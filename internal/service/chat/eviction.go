package chat

import (
	"context"
	"time"

	"github.com/zhouzirui/travel-assistant/backend/internal/metrics"
)

// RunEvictionLoop closes idle sessions every EvictInterval until ctx is done.
// With eviction disabled it only waits for ctx.
func (s *Service) RunEvictionLoop(ctx context.Context) error {
	if s.cfg.IdleTTL <= 0 || s.cfg.EvictInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.cfg.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.evictIdleOnce(s.now()); n > 0 {
				s.log.Info().Int("evicted", n).Msg("evicted idle sessions")
			}
		}
	}
}

func (s *Service) evictIdleOnce(now time.Time) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	var stale []*entry
	for id, e := range s.sessions {
		// a pending reply counts as activity
		if e.conv.Busy() {
			continue
		}
		if now.Sub(e.conv.LastActive()) < s.cfg.IdleTTL {
			continue
		}
		stale = append(stale, e)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, e := range stale {
		e.conv.Close()
		metrics.SessionsActive.Dec()
		metrics.SessionsEvicted.Inc()
		s.log.Debug().Str("session_id", e.session.ID).Msg("session evicted")
	}
	return len(stale)
}
