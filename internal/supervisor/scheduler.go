package supervisor

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// SubmitTask routes task to agentID if set, otherwise to the ready agent
// with the highest priority whose capabilities are a superset of
// task.Capability; ties break by lowest current queue depth, then by
// lowest agent id. If no agent currently qualifies, the task is retried
// for up to the supervisor's grace period before failing with NoAgent.
func (s *Supervisor) SubmitTask(ctx context.Context, task Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	deadline := time.Now().Add(s.queueGrace)
	for {
		ma, err := s.pickAgent(task)
		if err == nil {
			ma.queueDepth.Add(1)
			select {
			case ma.tasks <- task:
				return task.ID, nil
			default:
				ma.queueDepth.Add(-1)
				return "", jerr.New(jerr.Unavailable, "supervisor", "SubmitTask", "agent queue is full: "+ma.record.ID)
			}
		}

		if time.Now().After(deadline) {
			return "", jerr.New(jerr.NoAgent, "supervisor", "SubmitTask", "no agent available for capabilities")
		}
		select {
		case <-ctx.Done():
			return "", jerr.Wrap(jerr.Cancelled, "supervisor", "SubmitTask", ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (s *Supervisor) pickAgent(task Task) (*managedAgent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.AgentID != "" {
		ma, ok := s.agents[task.AgentID]
		if !ok {
			return nil, jerr.New(jerr.NotFound, "supervisor", "pickAgent", "no such agent: "+task.AgentID)
		}
		ma.mu.Lock()
		ready := ma.record.State == StateReady && !ma.record.Limits.exceeds(ma.lastUsage)
		ma.mu.Unlock()
		if !ready {
			return nil, jerr.New(jerr.NoAgent, "supervisor", "pickAgent", "target agent not ready: "+task.AgentID)
		}
		return ma, nil
	}

	var candidates []*managedAgent
	for _, ma := range s.agents {
		ma.mu.Lock()
		ready := ma.record.State == StateReady && ma.record.hasCapabilities(task.Capability) && !ma.record.Limits.exceeds(ma.lastUsage)
		ma.mu.Unlock()
		if ready {
			candidates = append(candidates, ma)
		}
	}
	if len(candidates) == 0 {
		return nil, jerr.New(jerr.NoAgent, "supervisor", "pickAgent", "no ready agent has the requested capabilities")
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.record.Priority != b.record.Priority {
			return a.record.Priority > b.record.Priority
		}
		aq, bq := a.queueDepth.Load(), b.queueDepth.Load()
		if aq != bq {
			return aq < bq
		}
		return a.record.ID < b.record.ID
	})
	return candidates[0], nil
}

// Tasks returns the channel an agent's RunFunc should read dispatched
// Tasks from.
func (s *Supervisor) Tasks(agentID string) (<-chan Task, error) {
	ma, err := s.lookup(agentID)
	if err != nil {
		return nil, err
	}
	return ma.tasks, nil
}

// CompleteTask signals that agentID has finished processing one task,
// decrementing its queue depth for future scheduling decisions.
func (s *Supervisor) CompleteTask(agentID string) error {
	ma, err := s.lookup(agentID)
	if err != nil {
		return err
	}
	ma.queueDepth.Add(-1)
	return nil
}
