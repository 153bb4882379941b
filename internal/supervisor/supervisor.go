package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// managedAgent is the supervisor's private bookkeeping for a registered
// agent, kept separate from AgentRecord so the public snapshot stays a
// plain value type.
type managedAgent struct {
	mu     sync.Mutex
	record AgentRecord
	run    RunFunc

	cancel           context.CancelFunc
	stopRequested    atomic.Bool
	restartRequested atomic.Bool
	queueDepth       atomic.Int64
	lastUsage        ResourceUsage

	tasks chan Task
}

// Supervisor owns the lifecycle of registered agents: starting their
// supervised run loops, tracking heartbeats, applying restart policy, and
// routing submitted tasks to a capable, healthy agent.
//
// Each agent runs as a goroutine joined by an errgroup.Group rather than a
// detached "spawn and forget" goroutine: Wait blocks until every
// supervised loop has actually returned.
type Supervisor struct {
	mu     sync.Mutex
	agents map[string]*managedAgent
	log    *slog.Logger

	ctx context.Context
	eg  *errgroup.Group

	queueGrace time.Duration
}

// New builds a Supervisor. Start must be called before agents begin
// running their RunFunc.
func New(log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		agents:     make(map[string]*managedAgent),
		log:        log,
		queueGrace: 5 * time.Second,
	}
}

// Start launches the health-monitor loop and the supervised goroutine for
// every agent registered so far. Agents registered after Start are started
// immediately as part of RegisterAgent.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return jerr.New(jerr.Invariant, "supervisor", "Start", "already started")
	}
	s.ctx = ctx
	eg, _ := errgroup.WithContext(context.Background())
	s.eg = eg

	agents := make([]*managedAgent, 0, len(s.agents))
	for _, ma := range s.agents {
		agents = append(agents, ma)
	}
	s.mu.Unlock()

	for _, ma := range agents {
		s.spawn(ma)
	}
	s.eg.Go(func() error {
		s.healthLoop(ctx)
		return nil
	})
	return nil
}

// Wait blocks until every supervised goroutine (agents plus the health
// loop) has returned. Callers typically cancel the Start context first.
func (s *Supervisor) Wait() error {
	s.mu.Lock()
	eg := s.eg
	s.mu.Unlock()
	if eg == nil {
		return nil
	}
	return eg.Wait()
}

// RegisterAgent adds a new agent record and, if the supervisor is already
// started, immediately launches its supervised run loop.
func (s *Supervisor) RegisterAgent(kind string, capabilities []string, policy RestartPolicy, priority int, limits ResourceLimits, run RunFunc) (string, error) {
	if run == nil {
		return "", jerr.New(jerr.BadArgs, "supervisor", "RegisterAgent", "run function is required")
	}

	id := uuid.NewString()
	ma := &managedAgent{
		record: AgentRecord{
			ID:            id,
			Kind:          kind,
			Capabilities:  append([]string{}, capabilities...),
			State:         StateStarting,
			RestartPolicy: policy,
			Priority:      priority,
			Limits:        limits,
		},
		run:   run,
		tasks: make(chan Task, 64),
	}

	s.mu.Lock()
	s.agents[id] = ma
	started := s.ctx != nil
	s.mu.Unlock()

	if started {
		s.spawn(ma)
	}
	return id, nil
}

// spawn starts ma's supervised run loop as a joinable goroutine.
func (s *Supervisor) spawn(ma *managedAgent) {
	s.eg.Go(func() error {
		s.runSupervised(ma)
		return nil
	})
}

// runSupervised drives one agent's RunFunc through its restart policy
// until a stop is requested or the policy decides not to restart.
func (s *Supervisor) runSupervised(ma *managedAgent) {
	attempt := 0
	for {
		agentCtx, cancel := context.WithCancel(s.ctx)
		ma.mu.Lock()
		ma.cancel = cancel
		ma.record.State = StateReady
		ma.record.LastHeartbeat = time.Now()
		id := ma.record.ID
		ma.mu.Unlock()

		err := ma.run(agentCtx, id)
		cancel()

		if ma.stopRequested.Load() {
			s.setState(ma, StateStopped)
			return
		}

		restartRequested := ma.restartRequested.Swap(false)
		ma.mu.Lock()
		forcedByHealth := ma.record.lastExitFailed
		ma.record.lastExitFailed = false
		ma.mu.Unlock()
		failed := err != nil || forcedByHealth
		if !restartRequested && !policyAllowsRestart(ma.record.RestartPolicy, failed) {
			s.setState(ma, StateStopped)
			return
		}

		if !restartRequested {
			delay := backoffDelay(attempt)
			s.log.Warn("supervisor: agent exited, restarting", "agent_id", id, "failed", failed, "delay", delay)
			select {
			case <-s.ctx.Done():
				s.setState(ma, StateStopped)
				return
			case <-time.After(delay):
			}
		}

		attempt++
		ma.mu.Lock()
		ma.record.RestartCount++
		ma.record.missedBeats = 0
		ma.mu.Unlock()
	}
}

func policyAllowsRestart(policy RestartPolicy, failed bool) bool {
	switch policy {
	case RestartAlways:
		return true
	case RestartOnFailure:
		return failed
	default:
		return false
	}
}

func (s *Supervisor) setState(ma *managedAgent, state AgentState) {
	ma.mu.Lock()
	ma.record.State = state
	ma.mu.Unlock()
}

// Stop requests that the given agent's current run stop and not restart.
func (s *Supervisor) Stop(agentID string) error {
	ma, err := s.lookup(agentID)
	if err != nil {
		return err
	}
	ma.stopRequested.Store(true)
	ma.mu.Lock()
	cancel := ma.cancel
	ma.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Restart interrupts the agent's current run (if any) and has the
// supervisor relaunch it immediately, bypassing the restart backoff.
func (s *Supervisor) Restart(agentID string) error {
	ma, err := s.lookup(agentID)
	if err != nil {
		return err
	}
	ma.mu.Lock()
	cancel := ma.cancel
	running := cancel != nil && ma.record.State != StateStopped
	ma.mu.Unlock()
	if running {
		ma.restartRequested.Store(true)
		cancel()
		return nil
	}
	// Agent isn't currently running (already stopped); relaunch it.
	ma.stopRequested.Store(false)
	s.spawn(ma)
	return nil
}

// StartAgent (re)launches a stopped agent by id. It is a no-op if the agent
// is already running.
func (s *Supervisor) StartAgent(agentID string) error {
	ma, err := s.lookup(agentID)
	if err != nil {
		return err
	}
	ma.mu.Lock()
	running := ma.cancel != nil && ma.record.State != StateStopped
	ma.mu.Unlock()
	if running {
		return nil
	}
	ma.stopRequested.Store(false)
	s.spawn(ma)
	return nil
}

// Heartbeat records a liveness beat for agentID. last_heartbeat is
// monotonically non-decreasing for a live agent; an out-of-order beat is
// ignored rather than rejected.
func (s *Supervisor) Heartbeat(agentID string) error {
	ma, err := s.lookup(agentID)
	if err != nil {
		return err
	}
	ma.mu.Lock()
	defer ma.mu.Unlock()
	now := time.Now()
	if now.After(ma.record.LastHeartbeat) {
		ma.record.LastHeartbeat = now
	}
	ma.record.missedBeats = 0
	if ma.record.State == StateDegraded {
		ma.record.State = StateReady
	}
	return nil
}

// ReportUsage records the agent's most recent self-reported resource
// usage, consulted by the scheduler before dispatching new work.
func (s *Supervisor) ReportUsage(agentID string, usage ResourceUsage) error {
	ma, err := s.lookup(agentID)
	if err != nil {
		return err
	}
	ma.mu.Lock()
	ma.lastUsage = usage
	ma.mu.Unlock()
	return nil
}

// List returns a snapshot of every registered AgentRecord.
func (s *Supervisor) List() []AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AgentRecord, 0, len(s.agents))
	for _, ma := range s.agents {
		ma.mu.Lock()
		out = append(out, ma.record)
		ma.mu.Unlock()
	}
	return out
}

func (s *Supervisor) lookup(agentID string) (*managedAgent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ma, ok := s.agents[agentID]
	if !ok {
		return nil, jerr.New(jerr.NotFound, "supervisor", "lookup", "no such agent: "+agentID)
	}
	return ma, nil
}
