package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/jarvis-hq/jarvis/internal/tools"
)

// Framing selects how stdio messages are delimited (§4.5: "either framing is
// acceptable but a given process picks one at startup").
type Framing string

const (
	FramingLine          Framing = "line"
	FramingContentLength Framing = "content-length"
)

// StdioTransport serves one session over stdin/stdout.
type StdioTransport struct {
	reader  *bufio.Reader
	writer  io.Writer
	framing Framing
	writeMu sync.Mutex
}

func NewStdioTransport(r io.Reader, w io.Writer, framing Framing) *StdioTransport {
	return &StdioTransport{reader: bufio.NewReader(r), writer: w, framing: framing}
}

// Send implements Sender.
func (t *StdioTransport) Send(env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	switch t.framing {
	case FramingContentLength:
		if _, err := fmt.Fprintf(t.writer, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
			return err
		}
		_, err = t.writer.Write(body)
		return err
	default:
		_, err = t.writer.Write(append(body, '\n'))
		return err
	}
}

// Serve reads requests until ctx is cancelled or the stream ends, dispatching
// each to handle.
func (t *StdioTransport) Serve(ctx context.Context, registry *tools.Registry, log *slog.Logger) error {
	session := NewSession(registry, t, log)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := t.readOne()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		session.Handle(ctx, env)
	}
}

func (t *StdioTransport) readOne() ([]byte, error) {
	if t.framing == FramingContentLength {
		return t.readContentLength()
	}
	line, err := t.reader.ReadBytes('\n')
	if len(line) == 0 {
		return nil, err
	}
	return line, nil
}

func (t *StdioTransport) readContentLength() ([]byte, error) {
	var length int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			n, err := strconv.Atoi(strings.TrimSpace(line[len("content-length:"):]))
			if err == nil {
				length = n
			}
		}
	}
	if length <= 0 {
		return nil, fmt.Errorf("missing or invalid Content-Length header")
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, err
	}
	return body, nil
}
