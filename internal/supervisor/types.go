// Package supervisor implements the Agent Supervisor (C7): lifecycle
// control, health tracking, restart policy, and capability-based task
// dispatch for long-running specialized agents (monitor, diagnoser,
// maintainer).
package supervisor

import (
	"context"
	"time"
)

// AgentState is a point in an AgentRecord's health lifecycle.
type AgentState string

const (
	StateStarting AgentState = "starting"
	StateReady    AgentState = "ready"
	StateDegraded AgentState = "degraded"
	StateStopped  AgentState = "stopped"
)

// RestartPolicy governs what the supervisor does when a supervised
// agent's run loop returns.
type RestartPolicy string

const (
	RestartNever     RestartPolicy = "never"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartAlways    RestartPolicy = "always"
)

// heartbeatInterval is the default cadence agents are expected to beat at.
const heartbeatInterval = 30 * time.Second

// degradedAfterMisses / stoppedAfterMisses count consecutive missed
// heartbeat windows before a state transition fires.
const (
	degradedAfterMisses = 2
	stoppedAfterMisses  = 4
)

// maxBackoff caps the exponential restart delay.
const maxBackoff = 5 * time.Minute

// ResourceLimits are optional per-agent caps enforced by the scheduler
// before dispatching new work.
type ResourceLimits struct {
	CPUShare    float64
	MemoryCapMB int64
	TaskTimeout time.Duration
}

// exceeds reports whether the agent's last observed usage sample is over
// any configured cap. A zero-value limit field means "no cap".
func (r ResourceLimits) exceeds(usage ResourceUsage) bool {
	if r.CPUShare > 0 && usage.CPUShare > r.CPUShare {
		return true
	}
	if r.MemoryCapMB > 0 && usage.MemoryMB > r.MemoryCapMB {
		return true
	}
	return false
}

// ResourceUsage is a point-in-time sample an agent can report about
// itself; the zero value never exceeds any limit.
type ResourceUsage struct {
	CPUShare float64
	MemoryMB int64
}

// AgentRecord is the supervisor's view of a registered agent.
type AgentRecord struct {
	ID             string
	Kind           string
	Capabilities   []string
	State          AgentState
	LastHeartbeat  time.Time
	RestartPolicy  RestartPolicy
	Priority       int
	Limits         ResourceLimits
	RestartCount   int
	missedBeats    int
	lastExitFailed bool
}

// hasCapabilities reports whether the agent's capability set is a
// superset of want.
func (a *AgentRecord) hasCapabilities(want []string) bool {
	have := make(map[string]struct{}, len(a.Capabilities))
	for _, c := range a.Capabilities {
		have[c] = struct{}{}
	}
	for _, w := range want {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}

// RunFunc is the body of a supervised agent. It must return promptly when
// ctx is cancelled. A nil error return is treated as a clean (non-failure)
// exit for restart-policy purposes.
type RunFunc func(ctx context.Context, agentID string) error

// Task is a unit of work dispatched to an agent.
type Task struct {
	ID         string
	Capability []string
	AgentID    string // set if targeting a specific agent rather than a capability set
	Priority   int
	Payload    map[string]any
}
