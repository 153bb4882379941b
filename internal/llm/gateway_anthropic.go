package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// AnthropicGateway is the Gateway backend (§4.2) for Anthropic's Messages
// API, grounded on the teacher's newProviderAdapter "anthropic" case.
type AnthropicGateway struct {
	client anthropic.Client
	log    *slog.Logger

	mu         sync.Mutex
	lastHealth Status
	lastCheck  time.Time
}

func NewAnthropicGateway(baseURL, apiKey string, log *slog.Logger) *AnthropicGateway {
	if log == nil {
		log = slog.Default()
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicGateway{client: anthropic.NewClient(opts...), log: log}
}

func (g *AnthropicGateway) Name() string { return "gateway" }

func (g *AnthropicGateway) Health(ctx context.Context) Status {
	g.mu.Lock()
	if time.Since(g.lastCheck) < localHealthTTL {
		out := g.lastHealth
		g.mu.Unlock()
		return out
	}
	g.mu.Unlock()

	status := Status{Healthy: true}
	if _, err := g.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		status = Status{Healthy: false, Reason: err.Error()}
	}

	g.mu.Lock()
	g.lastHealth = status
	g.lastCheck = time.Now()
	g.mu.Unlock()
	return status
}

func (g *AnthropicGateway) ListModels(ctx context.Context) []string {
	page, err := g.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil || page == nil {
		return nil
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names
}

func splitSystemPrompt(msgs []Message) (system string, rest []anthropic.MessageParam) {
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case RoleAssistant:
			rest = append(rest, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			rest = append(rest, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, rest
}

func (g *AnthropicGateway) buildParams(req Request) anthropic.MessageNewParams {
	system, messages := splitSystemPrompt(req.Messages)
	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Options.Temperature)
	}
	if req.Options.TopP != nil {
		params.TopP = anthropic.Float(*req.Options.TopP)
	}
	if len(req.Options.Stop) > 0 {
		params.StopSequences = req.Options.Stop
	}
	return params
}

func (g *AnthropicGateway) Chat(ctx context.Context, req Request) (Response, error) {
	params := g.buildParams(req)
	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return Response{
		Model: string(resp.Model),
		Choices: []Choice{{
			Message:      Message{Role: RoleAssistant, Content: text},
			FinishReason: string(resp.StopReason),
		}},
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

func (g *AnthropicGateway) ChatStream(ctx context.Context, req Request, onChunk func(ChunkEvent)) error {
	params := g.buildParams(req)
	stream := g.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta.Delta.Text != "" {
				onChunk(ChunkEvent{Kind: ChunkDelta, Text: delta.Delta.Text})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return classifyAnthropicError(err)
	}
	onChunk(ChunkEvent{Kind: ChunkDone})
	return nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return jerr.Wrap(jerr.Auth, "llm.gateway", "Chat", err)
		case 429:
			return jerr.Wrap(jerr.RateLimited, "llm.gateway", "Chat", err)
		case 408:
			return jerr.Wrap(jerr.Timeout, "llm.gateway", "Chat", err)
		default:
			if apiErr.StatusCode >= 500 {
				return jerr.Wrap(jerr.Unavailable, "llm.gateway", "Chat", err)
			}
			if apiErr.StatusCode >= 400 {
				return jerr.Wrap(jerr.BadArgs, "llm.gateway", "Chat", err)
			}
		}
	}
	return jerr.Wrap(jerr.Unavailable, "llm.gateway", "Chat", err)
}
