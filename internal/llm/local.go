package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// LocalBackend talks to an Ollama-shaped inference server over raw HTTP
// (§4.2: "speaks to an inference server on a configured URL").
type LocalBackend struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger

	mu         sync.Mutex
	lastHealth Status
	lastCheck  time.Time
}

const localHealthTTL = 1 * time.Second

// NewLocalBackend constructs a client against baseURL (e.g.
// http://127.0.0.1:11434) with the given per-call timeout.
func NewLocalBackend(baseURL string, timeout time.Duration, log *slog.Logger) *LocalBackend {
	if log == nil {
		log = slog.Default()
	}
	return &LocalBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (b *LocalBackend) Name() string { return "local" }

// Health caches its result for localHealthTTL, matching the teacher's
// snapshot-cache pattern for expensive status probes.
func (b *LocalBackend) Health(ctx context.Context) Status {
	b.mu.Lock()
	if time.Since(b.lastCheck) < localHealthTTL {
		out := b.lastHealth
		b.mu.Unlock()
		return out
	}
	b.mu.Unlock()

	status := b.probeHealth(ctx)

	b.mu.Lock()
	b.lastHealth = status
	b.lastCheck = time.Now()
	b.mu.Unlock()
	return status
}

func (b *LocalBackend) probeHealth(ctx context.Context) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return Status{Healthy: false, Reason: err.Error()}
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return Status{Healthy: false, Reason: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Status{Healthy: false, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return Status{Healthy: true}
}

func (b *LocalBackend) ListModels(ctx context.Context) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return nil
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil
	}
	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		names = append(names, m.Name)
	}
	return names
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error"`

	PromptEvalCount int64 `json:"prompt_eval_count"`
	EvalCount       int64 `json:"eval_count"`
}

func toOllamaMessages(msgs []Message) []ollamaMessage {
	out := make([]ollamaMessage, len(msgs))
	for i, m := range msgs {
		out[i] = ollamaMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func toOllamaOptions(o Options) ollamaOptions {
	return ollamaOptions{
		Temperature: o.Temperature,
		TopP:        o.TopP,
		Stop:        o.Stop,
		NumPredict:  o.MaxTokens,
	}
}

func (b *LocalBackend) Chat(ctx context.Context, req Request) (Response, error) {
	payload := ollamaChatRequest{
		Model:    req.Model,
		Messages: toOllamaMessages(req.Messages),
		Stream:   false,
		Options:  toOllamaOptions(req.Options),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, jerr.Wrap(jerr.BadArgs, "llm.local", "Chat", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Response{}, jerr.Wrap(jerr.Backend, "llm.local", "Chat", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return Response{}, jerr.Wrap(jerr.Unavailable, "llm.local", "Chat", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Response{}, jerr.New(jerr.Unavailable, "llm.local", "Chat", fmt.Sprintf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return Response{}, jerr.New(jerr.BadArgs, "llm.local", "Chat", fmt.Sprintf("status %d", resp.StatusCode))
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, jerr.Wrap(jerr.Backend, "llm.local", "Chat", err)
	}
	if out.Error != "" {
		return Response{}, jerr.New(jerr.Backend, "llm.local", "Chat", out.Error)
	}

	return Response{
		Model: out.Model,
		Choices: []Choice{{
			Message:      Message{Role: RoleAssistant, Content: out.Message.Content},
			FinishReason: "stop",
		}},
		Usage: Usage{PromptTokens: out.PromptEvalCount, CompletionTokens: out.EvalCount},
	}, nil
}

// ChatStream issues a streaming request and decodes Ollama's newline-delimited
// JSON objects into ChunkEvents.
func (b *LocalBackend) ChatStream(ctx context.Context, req Request, onChunk func(ChunkEvent)) error {
	payload := ollamaChatRequest{
		Model:    req.Model,
		Messages: toOllamaMessages(req.Messages),
		Stream:   true,
		Options:  toOllamaOptions(req.Options),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return jerr.Wrap(jerr.BadArgs, "llm.local", "ChatStream", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return jerr.Wrap(jerr.Backend, "llm.local", "ChatStream", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return jerr.Wrap(jerr.Unavailable, "llm.local", "ChatStream", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return jerr.New(jerr.Unavailable, "llm.local", "ChatStream", fmt.Sprintf("status %d", resp.StatusCode))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return jerr.Wrap(jerr.Cancelled, "llm.local", "ChatStream", ctx.Err())
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		if chunk.Message.Content != "" {
			onChunk(ChunkEvent{Kind: ChunkDelta, Text: chunk.Message.Content})
		}
		if chunk.Done {
			onChunk(ChunkEvent{Kind: ChunkDone, Usage: &Usage{
				PromptTokens:     chunk.PromptEvalCount,
				CompletionTokens: chunk.EvalCount,
			}})
		}
	}
	if err := scanner.Err(); err != nil {
		return jerr.Wrap(jerr.Backend, "llm.local", "ChatStream", err)
	}
	return nil
}
