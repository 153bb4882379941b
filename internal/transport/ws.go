package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jarvis-hq/jarvis/internal/jerr"
	"github.com/jarvis-hq/jarvis/internal/tools"
)

// writeQueueDepth bounds the outbound notification/response backlog per
// connection. A client that cannot keep up surfaces as SlowConsumer instead
// of growing memory without bound.
const writeQueueDepth = 256

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSTransport serves one session over a single WebSocket connection, one
// JSON message per frame (§4.5).
type WSTransport struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex
	queue   chan Envelope
	done    chan struct{}
}

func NewWSTransport(conn *websocket.Conn, log *slog.Logger) *WSTransport {
	if log == nil {
		log = slog.Default()
	}
	t := &WSTransport{conn: conn, log: log, queue: make(chan Envelope, writeQueueDepth), done: make(chan struct{})}
	go t.writeLoop()
	return t
}

// Send implements Sender. It never blocks the caller: a full queue reports
// SlowConsumer rather than backing up the tool-execution goroutine.
func (t *WSTransport) Send(env Envelope) error {
	select {
	case t.queue <- env:
		return nil
	case <-t.done:
		return jerr.New(jerr.SlowConsumer, "transport", "Send", "connection closed")
	default:
		return jerr.New(jerr.SlowConsumer, "transport", "Send", "write queue full")
	}
}

func (t *WSTransport) writeLoop() {
	for env := range t.queue {
		body, err := json.Marshal(env)
		if err != nil {
			continue
		}
		t.writeMu.Lock()
		err = t.conn.WriteMessage(websocket.TextMessage, body)
		t.writeMu.Unlock()
		if err != nil {
			t.log.Warn("transport/ws: write failed", "error", err)
			return
		}
	}
}

// Serve reads frames until the connection closes or ctx is cancelled.
func (t *WSTransport) Serve(ctx context.Context, registry *tools.Registry) error {
	session := NewSession(registry, t, t.log)
	defer close(t.done)
	defer close(t.queue)

	go func() {
		<-ctx.Done()
		_ = t.conn.Close()
	}()

	for {
		_, body, err := t.conn.ReadMessage()
		if err != nil {
			return err
		}
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			continue
		}
		session.Handle(ctx, env)
	}
}

// Upgrade promotes an HTTP request to a WebSocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return wsUpgrader.Upgrade(w, r, nil)
}
