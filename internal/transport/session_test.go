package transport

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jarvis-hq/jarvis/internal/tools"
)

type recordingSender struct {
	mu  sync.Mutex
	msg []Envelope
}

func (r *recordingSender) Send(e Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msg = append(r.msg, e)
	return nil
}

func (r *recordingSender) responses() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.msg))
	copy(out, r.msg)
	return out
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.Tool{
		Descriptor: tools.Descriptor{Name: "echo", Args: []tools.ArgSpec{{Name: "text", Kind: tools.ArgString, Required: true}}},
		Risk:       tools.RiskReadonly,
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			return tools.Result{Text: args["text"].(string)}, nil
		},
	}))
	return reg
}

func TestSessionToolsList(t *testing.T) {
	sender := &recordingSender{}
	session := NewSession(testRegistry(t), sender, nil)

	session.Handle(context.Background(), Envelope{ID: json.RawMessage(`"1"`), Method: MethodToolsList})

	resp := sender.responses()
	require.Len(t, resp, 1)
	require.Nil(t, resp[0].Error)
	require.Contains(t, string(resp[0].Result), "echo")
}

func TestSessionToolsCall(t *testing.T) {
	sender := &recordingSender{}
	session := NewSession(testRegistry(t), sender, nil)

	params, _ := json.Marshal(map[string]any{"name": "echo", "arguments": map[string]any{"text": "hi"}})
	session.Handle(context.Background(), Envelope{ID: json.RawMessage(`"1"`), Method: MethodToolsCall, Params: params})

	require.Eventually(t, func() bool { return len(sender.responses()) >= 2 }, time.Second, 5*time.Millisecond)
	resp := sender.responses()
	var found bool
	for _, r := range resp {
		if r.Method == "" && string(r.ID) == `"1"` {
			found = true
			require.Nil(t, r.Error)
			require.Contains(t, string(r.Result), "hi")
		}
	}
	require.True(t, found)
}

func TestSessionUnknownMethod(t *testing.T) {
	sender := &recordingSender{}
	session := NewSession(testRegistry(t), sender, nil)

	session.Handle(context.Background(), Envelope{ID: json.RawMessage(`"1"`), Method: "bogus"})

	resp := sender.responses()
	require.Len(t, resp, 1)
	require.NotNil(t, resp[0].Error)
}

func TestSessionCancel(t *testing.T) {
	sender := &recordingSender{}
	reg := tools.NewRegistry()
	started := make(chan struct{})
	require.NoError(t, reg.Register(tools.Tool{
		Descriptor: tools.Descriptor{Name: "slow"},
		Risk:       tools.RiskReadonly,
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			close(started)
			<-ctx.Done()
			return tools.Result{}, ctx.Err()
		},
	}))
	session := NewSession(reg, sender, nil)

	params, _ := json.Marshal(map[string]any{"name": "slow"})
	session.Handle(context.Background(), Envelope{ID: json.RawMessage(`"42"`), Method: MethodToolsCall, Params: params})
	<-started

	cancelParams, _ := json.Marshal(map[string]any{"id": "42"})
	session.Handle(context.Background(), Envelope{Method: MethodCancel, Params: cancelParams})

	require.Eventually(t, func() bool {
		for _, r := range sender.responses() {
			if string(r.ID) == `"42"` && r.Error != nil {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
