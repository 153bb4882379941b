package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jarvis-hq/jarvis/internal/jerr"
	"github.com/jarvis-hq/jarvis/internal/tools"
)

// Sender writes one outbound Envelope. Implementations (stdio/ws) must be
// safe to call concurrently, since concurrent tool calls may each emit a
// response or progress notification independently.
type Sender interface {
	Send(Envelope) error
}

// Session is one isolated connection's dispatch state: no data is shared
// across sessions beyond the Registry itself (§4.5).
type Session struct {
	registry *tools.Registry
	sender   Sender
	log      *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewSession(registry *tools.Registry, sender Sender, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{registry: registry, sender: sender, log: log, cancels: map[string]context.CancelFunc{}}
}

// Handle dispatches one inbound Envelope. Requests are serviced
// concurrently (one goroutine per request id) so that slow tool calls
// don't block other interleaved calls on the same connection.
func (s *Session) Handle(ctx context.Context, msg Envelope) {
	switch msg.Method {
	case MethodToolsList:
		s.handleToolsList(msg)
	case MethodToolsCall:
		go s.handleToolsCall(ctx, msg)
	case MethodCancel:
		s.handleCancel(msg)
	default:
		s.respondError(msg.ID, jerr.New(jerr.BadArgs, "transport", "Handle", "unknown method: "+msg.Method))
	}
}

func (s *Session) handleToolsList(msg Envelope) {
	descriptors := s.registry.List()
	result, err := json.Marshal(map[string]any{"tools": descriptors})
	if err != nil {
		s.respondError(msg.ID, jerr.Wrap(jerr.Server, "transport", "tools/list", err))
		return
	}
	s.respond(msg.ID, result)
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	TimeoutMs int            `json:"timeout_ms,omitempty"`
}

func (s *Session) handleToolsCall(ctx context.Context, msg Envelope) {
	var params toolCallParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.respondError(msg.ID, jerr.Wrap(jerr.BadArgs, "transport", "tools/call", err))
		return
	}

	callCtx, cancel := context.WithCancel(ctx)
	id := gjson.ParseBytes(msg.ID).String()
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, id)
		s.mu.Unlock()
		cancel()
	}()

	s.notifyProgress(msg.ID, "executing")

	timeout := time.Duration(params.TimeoutMs) * time.Millisecond
	res, err := s.registry.CallWithCancel(callCtx, params.Name, params.Arguments, timeout)

	result, merr := json.Marshal(map[string]any{
		"content": []map[string]any{{"type": "text", "text": res.Text}},
		"is_error": res.IsError || err != nil,
	})
	if merr != nil {
		s.respondError(msg.ID, jerr.Wrap(jerr.Server, "transport", "tools/call", merr))
		return
	}
	if err != nil {
		s.respondErrorWithResult(msg.ID, err, result)
		return
	}
	s.respond(msg.ID, result)
}

func (s *Session) handleCancel(msg Envelope) {
	id := getField(msg.Params, "id").String()

	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Session) notifyProgress(id json.RawMessage, status string) {
	params := setField(nil, "id", gjson.ParseBytes(id).Value())
	params = setField(params, "status", status)
	_ = s.sender.Send(Envelope{Method: MethodToolsProgress, Params: params})
}

func (s *Session) respond(id json.RawMessage, result json.RawMessage) {
	_ = s.sender.Send(Envelope{ID: id, Result: result})
}

func (s *Session) respondError(id json.RawMessage, err error) {
	_ = s.sender.Send(Envelope{ID: id, Error: &WireError{Kind: string(jerr.Of(err)), Message: err.Error()}})
}

func (s *Session) respondErrorWithResult(id json.RawMessage, err error, result json.RawMessage) {
	_ = s.sender.Send(Envelope{ID: id, Result: result, Error: &WireError{Kind: string(jerr.Of(err)), Message: err.Error()}})
}
