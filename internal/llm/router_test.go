package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

type fakeBackend struct {
	name    string
	healthy bool
	err     error
	reply   string
	calls   int
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Health(ctx context.Context) Status {
	return Status{Healthy: f.healthy}
}
func (f *fakeBackend) ListModels(ctx context.Context) []string { return nil }
func (f *fakeBackend) Chat(ctx context.Context, req Request) (Response, error) {
	f.calls++
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: f.reply}}}}, nil
}
func (f *fakeBackend) ChatStream(ctx context.Context, req Request, onChunk func(ChunkEvent)) error {
	if f.err != nil {
		return f.err
	}
	onChunk(ChunkEvent{Kind: ChunkDelta, Text: f.reply})
	onChunk(ChunkEvent{Kind: ChunkDone})
	return nil
}

func TestRouterPrefersHealthyGateway(t *testing.T) {
	gw := &fakeBackend{name: "gateway", healthy: true, reply: "from gateway"}
	local := &fakeBackend{name: "local", healthy: true, reply: "from local"}
	r := NewRouter(RouterOptions{Gateway: gw, Local: local})

	text, err := r.Complete(context.Background(), IntentCode, "hello", Options{})
	require.NoError(t, err)
	require.Equal(t, "from gateway", text)
	require.Equal(t, 1, gw.calls)
	require.Equal(t, 0, local.calls)
}

func TestRouterFallsBackToLocalWhenGatewayUnhealthy(t *testing.T) {
	gw := &fakeBackend{name: "gateway", healthy: false}
	local := &fakeBackend{name: "local", healthy: true, reply: "from local"}
	r := NewRouter(RouterOptions{Gateway: gw, Local: local, DefaultModels: map[string]string{"code": "qwen2.5-coder:7b"}})

	text, err := r.Complete(context.Background(), IntentCode, "hello", Options{})
	require.NoError(t, err)
	require.Equal(t, "from local", text)
}

func TestRouterRetriesOnceOnUnavailable(t *testing.T) {
	gw := &fakeBackend{name: "gateway", healthy: true, err: jerr.New(jerr.Unavailable, "llm.gateway", "Chat", "connection refused")}
	local := &fakeBackend{name: "local", healthy: true, reply: "from local"}
	r := NewRouter(RouterOptions{Gateway: gw, Local: local, DefaultModels: map[string]string{"code": "qwen2.5-coder:7b"}})

	text, err := r.Complete(context.Background(), IntentCode, "hello", Options{})
	require.NoError(t, err)
	require.Equal(t, "from local", text)
	require.Equal(t, 1, gw.calls)
}

func TestRouterDoesNotRetryOnBadArgs(t *testing.T) {
	gw := &fakeBackend{name: "gateway", healthy: true, err: jerr.New(jerr.BadArgs, "llm.gateway", "Chat", "bad model")}
	local := &fakeBackend{name: "local", healthy: true, reply: "from local"}
	r := NewRouter(RouterOptions{Gateway: gw, Local: local})

	_, err := r.Complete(context.Background(), IntentCode, "hello", Options{})
	require.True(t, jerr.Is(err, jerr.BadArgs))
}

func TestRouterNoHealthyBackendFails(t *testing.T) {
	gw := &fakeBackend{name: "gateway", healthy: false}
	local := &fakeBackend{name: "local", healthy: false}
	r := NewRouter(RouterOptions{Gateway: gw, Local: local})

	_, err := r.Complete(context.Background(), IntentCode, "hello", Options{})
	require.True(t, jerr.Is(err, jerr.Unavailable))
}

type slowBackend struct {
	fakeBackend
	delay time.Duration
}

func (s *slowBackend) Chat(ctx context.Context, req Request) (Response, error) {
	select {
	case <-time.After(s.delay):
		return Response{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: "late"}}}}, nil
	case <-ctx.Done():
		<-time.After(s.delay)
		return Response{}, ctx.Err()
	}
}

func TestRouterDropsWithinBoundedTime(t *testing.T) {
	local := &slowBackend{fakeBackend: fakeBackend{name: "local", healthy: true}, delay: 2 * time.Second}
	r := NewRouter(RouterOptions{Local: local, DefaultModels: map[string]string{"code": "m"}, DropTimeout: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := r.Complete(ctx, IntentCode, "hello", Options{})
	elapsed := time.Since(start)

	require.Error(t, err)
	require.Less(t, elapsed, 500*time.Millisecond)
}
