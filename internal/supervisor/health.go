package supervisor

import (
	"context"
	"time"
)

// healthLoop polls every agent once per heartbeatInterval, counting
// consecutive missed beats. Two consecutive misses degrade an agent; four
// consecutive misses stop it and let its restart policy decide whether to
// bring it back (§4.7).
func (s *Supervisor) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepHeartbeats()
		}
	}
}

func (s *Supervisor) sweepHeartbeats() {
	s.mu.Lock()
	agents := make([]*managedAgent, 0, len(s.agents))
	for _, ma := range s.agents {
		agents = append(agents, ma)
	}
	s.mu.Unlock()

	now := time.Now()
	for _, ma := range agents {
		ma.mu.Lock()
		state := ma.record.State
		stale := now.Sub(ma.record.LastHeartbeat) >= heartbeatInterval
		if state == StateReady || state == StateDegraded {
			if stale {
				ma.record.missedBeats++
			}
		}
		misses := ma.record.missedBeats
		cancel := ma.cancel
		switch {
		case misses >= stoppedAfterMisses && state != StateStopped:
			ma.record.State = StateStopped
			ma.record.lastExitFailed = true
		case misses >= degradedAfterMisses && state == StateReady:
			ma.record.State = StateDegraded
		}
		needsForcedExit := misses >= stoppedAfterMisses
		ma.mu.Unlock()

		if needsForcedExit && cancel != nil {
			// Force the stalled RunFunc to return so the supervised loop's
			// restart-policy check runs; this is not a Stop() request, so
			// on-failure/always policies still restart it.
			cancel()
		}
	}
}
