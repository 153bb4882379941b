package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndStartRunsAgent(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	started := make(chan struct{})

	id, err := s.RegisterAgent("monitor", []string{"diagnose"}, RestartNever, 1, ResourceLimits{}, func(ctx context.Context, agentID string) error {
		runs.Add(1)
		close(started)
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	<-started
	require.Equal(t, int32(1), runs.Load())

	records := s.List()
	require.Len(t, records, 1)
	require.Equal(t, id, records[0].ID)
	require.Equal(t, StateReady, records[0].State)
}

func TestStopPreventsRestart(t *testing.T) {
	s := New(nil)
	exitCh := make(chan struct{}, 10)

	id, err := s.RegisterAgent("worker", nil, RestartAlways, 0, ResourceLimits{}, func(ctx context.Context, agentID string) error {
		<-ctx.Done()
		exitCh <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Stop(id))
	<-exitCh

	require.Eventually(t, func() bool {
		for _, rec := range s.List() {
			if rec.ID == id {
				return rec.State == StateStopped
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestStartAgentRelaunchesStoppedAgent(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32

	id, err := s.RegisterAgent("worker", nil, RestartNever, 0, ResourceLimits{}, func(ctx context.Context, agentID string) error {
		runs.Add(1)
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Stop(id))
	require.Eventually(t, func() bool {
		for _, rec := range s.List() {
			if rec.ID == id {
				return rec.State == StateStopped
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.StartAgent(id))
	require.Eventually(t, func() bool {
		return runs.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestRestartPolicyNeverDoesNotRelaunch(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32

	_, err := s.RegisterAgent("worker", nil, RestartNever, 0, ResourceLimits{}, func(ctx context.Context, agentID string) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), runs.Load())
}

func TestHeartbeatClearsDegraded(t *testing.T) {
	s := New(nil)
	id, err := s.RegisterAgent("worker", nil, RestartNever, 0, ResourceLimits{}, func(ctx context.Context, agentID string) error {
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	time.Sleep(10 * time.Millisecond)
	ma, err := s.lookup(id)
	require.NoError(t, err)
	ma.mu.Lock()
	ma.record.State = StateDegraded
	ma.mu.Unlock()

	require.NoError(t, s.Heartbeat(id))

	records := s.List()
	require.Equal(t, StateReady, records[0].State)
}

func TestSubmitTaskPicksHighestPriorityCapableAgent(t *testing.T) {
	s := New(nil)
	low, err := s.RegisterAgent("worker", []string{"diagnose"}, RestartNever, 1, ResourceLimits{}, func(ctx context.Context, agentID string) error {
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)
	high, err := s.RegisterAgent("worker", []string{"diagnose"}, RestartNever, 10, ResourceLimits{}, func(ctx context.Context, agentID string) error {
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)
	_ = low

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	time.Sleep(10 * time.Millisecond)

	taskID, err := s.SubmitTask(context.Background(), Task{Capability: []string{"diagnose"}})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	ch, err := s.Tasks(high)
	require.NoError(t, err)
	select {
	case task := <-ch:
		require.Equal(t, taskID, task.ID)
	default:
		t.Fatal("expected task to be queued on the higher-priority agent")
	}
}

func TestSubmitTaskNoAgentFailsAfterGrace(t *testing.T) {
	s := New(nil)
	s.queueGrace = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	_, err := s.SubmitTask(context.Background(), Task{Capability: []string{"nothing-has-this"}})
	require.Error(t, err)
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	require.Equal(t, maxBackoff, backoffDelay(20))
	require.Less(t, backoffDelay(0), backoffDelay(5))
}
