package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// OpenAIGateway is the Gateway backend (§4.2) for OpenAI and
// OpenAI-compatible endpoints, grounded on the teacher's
// newProviderAdapter construction (option.WithAPIKey/WithBaseURL).
type OpenAIGateway struct {
	client openai.Client
	log    *slog.Logger

	mu         sync.Mutex
	lastHealth Status
	lastCheck  time.Time
}

// NewOpenAIGateway builds a gateway client. baseURL may be empty to use
// OpenAI's default endpoint, or point at any OpenAI-compatible server.
func NewOpenAIGateway(baseURL, apiKey string, log *slog.Logger) *OpenAIGateway {
	if log == nil {
		log = slog.Default()
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIGateway{client: openai.NewClient(opts...), log: log}
}

func (g *OpenAIGateway) Name() string { return "gateway" }

func (g *OpenAIGateway) Health(ctx context.Context) Status {
	g.mu.Lock()
	if time.Since(g.lastCheck) < localHealthTTL {
		out := g.lastHealth
		g.mu.Unlock()
		return out
	}
	g.mu.Unlock()

	status := Status{Healthy: true}
	if _, err := g.client.Models.List(ctx); err != nil {
		status = Status{Healthy: false, Reason: err.Error()}
	}

	g.mu.Lock()
	g.lastHealth = status
	g.lastCheck = time.Now()
	g.mu.Unlock()
	return status
}

func (g *OpenAIGateway) ListModels(ctx context.Context) []string {
	page, err := g.client.Models.List(ctx)
	if err != nil || page == nil {
		return nil
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, ""))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (g *OpenAIGateway) buildParams(req Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Options.Temperature != nil {
		params.Temperature = openai.Float(*req.Options.Temperature)
	}
	if req.Options.TopP != nil {
		params.TopP = openai.Float(*req.Options.TopP)
	}
	if req.Options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Options.MaxTokens))
	}
	if len(req.Options.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Options.Stop}
	}
	return params
}

func (g *OpenAIGateway) Chat(ctx context.Context, req Request) (Response, error) {
	params := g.buildParams(req)
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, jerr.New(jerr.Backend, "llm.gateway", "Chat", "empty choices")
	}

	choices := make([]Choice, len(resp.Choices))
	for i, c := range resp.Choices {
		choices[i] = Choice{
			Message:      Message{Role: RoleAssistant, Content: c.Message.Content},
			FinishReason: string(c.FinishReason),
		}
	}
	return Response{
		Model:   resp.Model,
		Choices: choices,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func (g *OpenAIGateway) ChatStream(ctx context.Context, req Request, onChunk func(ChunkEvent)) error {
	params := g.buildParams(req)
	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			onChunk(ChunkEvent{Kind: ChunkDelta, Text: delta.Content})
		}
		for _, tc := range delta.ToolCalls {
			onChunk(ChunkEvent{Kind: ChunkToolCall, ToolCallName: tc.Function.Name, ArgsJSON: tc.Function.Arguments})
		}
	}
	if err := stream.Err(); err != nil {
		return classifyOpenAIError(err)
	}
	onChunk(ChunkEvent{Kind: ChunkDone})
	return nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
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
