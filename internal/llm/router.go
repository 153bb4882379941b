package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jarvis-hq/jarvis/internal/jerr"
	"github.com/jarvis-hq/jarvis/internal/memory"
)

// Intent selects the system prompt persona and the per-intent local-model
// default (§4.3).
type Intent string

const (
	IntentCode    Intent = "code"
	IntentSystem  Intent = "system"
	IntentDevOps  Intent = "devops"
	IntentReason  Intent = "reason"
	IntentUnknown Intent = "unknown"
)

var systemPrompts = map[Intent]string{
	IntentCode:   "You write concise, idiomatic code. Prefer runnable examples over prose.",
	IntentSystem: "You are a careful Linux system administrator. Always return tested commands with a brief rationale.",
	IntentDevOps: "You focus on infrastructure and container orchestration diagnosis.",
	IntentReason: "Think step by step. Longer, more thorough reasoning is welcome here.",
}

const neutralSystemPrompt = "You are a helpful assistant."

func systemPromptFor(intent Intent) string {
	if p, ok := systemPrompts[intent]; ok {
		return p
	}
	return neutralSystemPrompt
}

// defaultDropTimeout bounds how long the router waits for an in-flight
// backend call to unwind after the caller cancels (§4.3).
const defaultDropTimeout = 250 * time.Millisecond

// Router implements the LLM Router (C3): backend selection, system prompt
// injection, retry-once-on-transient-failure, and performance recording.
type Router struct {
	gateway       Backend
	local         Backend
	defaultModels map[string]string
	mem           *memory.Store
	log           *slog.Logger
	dropTimeout   time.Duration
}

// RouterOptions configure a Router.
type RouterOptions struct {
	Gateway       Backend // nil if no gateway is configured
	Local         Backend
	DefaultModels map[string]string // Intent -> local model name
	Memory        *memory.Store
	Logger        *slog.Logger
	DropTimeout   time.Duration
}

func NewRouter(opts RouterOptions) *Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	drop := opts.DropTimeout
	if drop <= 0 {
		drop = defaultDropTimeout
	}
	return &Router{
		gateway:       opts.Gateway,
		local:         opts.Local,
		defaultModels: opts.DefaultModels,
		mem:           opts.Memory,
		log:           log,
		dropTimeout:   drop,
	}
}

// selection names a backend and the concrete model to call on it.
type selection struct {
	backend Backend
	model   string
}

// choose applies the routing policy from §4.3, returning primary and, when
// a fallback exists, an alternate selection to retry on Unavailable/RateLimited.
func (r *Router) choose(ctx context.Context, intent Intent, requestedModel string) (selection, *selection, error) {
	gatewayHealthy := r.gateway != nil && r.gateway.Health(ctx).Healthy
	localHealthy := r.local != nil && r.local.Health(ctx).Healthy

	localModel := requestedModel
	if localModel == "" {
		localModel = r.defaultModels[string(intent)]
	}

	if gatewayHealthy {
		primary := selection{backend: r.gateway, model: requestedModel}
		if localHealthy && localModel != "" {
			alt := selection{backend: r.local, model: localModel}
			return primary, &alt, nil
		}
		return primary, nil, nil
	}
	if localHealthy {
		if localModel == "" {
			return selection{}, nil, jerr.New(jerr.Unavailable, "llm.router", "choose", "no default model configured for intent "+string(intent))
		}
		primary := selection{backend: r.local, model: localModel}
		if r.gateway != nil {
			alt := selection{backend: r.gateway, model: requestedModel}
			return primary, &alt, nil
		}
		return primary, nil, nil
	}
	return selection{}, nil, jerr.New(jerr.Unavailable, "llm.router", "choose", "no healthy backend available")
}

func (r *Router) buildRequest(sel selection, intent Intent, messages []Message, options Options) Request {
	msgs := make([]Message, 0, len(messages)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: systemPromptFor(intent)})
	msgs = append(msgs, messages...)
	if options.Tags == nil {
		options.Tags = map[string]string{}
	}
	options.Tags["source"] = "jarvis"
	options.Tags["intent"] = string(intent)
	return Request{Model: sel.model, Messages: msgs, Options: options}
}

// Ask passes messages through verbatim (no system-prompt injection), still
// subject to the same backend selection and retry policy.
func (r *Router) Ask(ctx context.Context, messages []Message, options Options) (Response, error) {
	return r.askWithIntent(ctx, IntentUnknown, messages, options, false)
}

// Complete runs a single-turn completion for intent and returns the text of
// the first choice.
func (r *Router) Complete(ctx context.Context, intent Intent, userText string, options Options) (string, error) {
	resp, err := r.askWithIntent(ctx, intent, []Message{{Role: RoleUser, Content: userText}}, options, true)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", jerr.New(jerr.Backend, "llm.router", "Complete", "empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (r *Router) askWithIntent(ctx context.Context, intent Intent, messages []Message, options Options, injectPrompt bool) (Response, error) {
	primary, alt, err := r.choose(ctx, intent, options.tagModel())
	if err != nil {
		return Response{}, err
	}

	buildFor := func(sel selection) Request {
		if injectPrompt {
			return r.buildRequest(sel, intent, messages, options)
		}
		return Request{Model: sel.model, Messages: messages, Options: options}
	}

	taskID := r.startPerfTracking(ctx, primary, intent)
	start := time.Now()
	resp, err := r.callBounded(ctx, primary.backend, buildFor(primary))
	if err == nil {
		r.finishPerfTracking(ctx, taskID, primary, intent, resp, "success", time.Since(start))
		return resp, nil
	}

	retryable := jerr.Is(err, jerr.Unavailable) || jerr.Is(err, jerr.RateLimited)
	if jerr.Is(err, jerr.Cancelled) {
		r.finishPerfTracking(ctx, taskID, primary, intent, Response{}, "cancelled", time.Since(start))
		return Response{}, err
	}
	r.finishPerfTracking(ctx, taskID, primary, intent, Response{}, "error", time.Since(start))
	if !retryable || alt == nil {
		return Response{}, err
	}

	altTaskID := r.startPerfTracking(ctx, *alt, intent)
	altStart := time.Now()
	resp, altErr := r.callBounded(ctx, alt.backend, buildFor(*alt))
	if altErr != nil {
		outcome := "error"
		if jerr.Is(altErr, jerr.Cancelled) {
			outcome = "cancelled"
		}
		r.finishPerfTracking(ctx, altTaskID, *alt, intent, Response{}, outcome, time.Since(altStart))
		return Response{}, altErr
	}
	r.finishPerfTracking(ctx, altTaskID, *alt, intent, resp, "success", time.Since(altStart))
	return resp, nil
}

// CompleteStream runs a streaming completion, invoking onChunk for each
// ChunkEvent. Only the primary backend selection is used for streaming:
// a stream that fails, at setup or mid-stream, is not retried on the
// alternate backend.
func (r *Router) CompleteStream(ctx context.Context, intent Intent, userText string, options Options, onChunk func(ChunkEvent)) error {
	primary, _, err := r.choose(ctx, intent, options.tagModel())
	if err != nil {
		return err
	}
	req := r.buildRequest(primary, intent, []Message{{Role: RoleUser, Content: userText}}, options)

	dropCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- primary.backend.ChatStream(dropCtx, req, onChunk)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		case <-time.After(r.dropTimeout):
			cancel()
			return jerr.Wrap(jerr.Cancelled, "llm.router", "CompleteStream", ctx.Err())
		}
	}
}

// callBounded runs the backend call in a goroutine and guarantees the
// caller gets control back within dropTimeout of ctx being cancelled,
// even if the backend's own context handling is slow (§4.3).
func (r *Router) callBounded(ctx context.Context, backend Backend, req Request) (Response, error) {
	type result struct {
		resp Response
		err  error
	}
	out := make(chan result, 1)
	go func() {
		resp, err := backend.Chat(ctx, req)
		out <- result{resp, err}
	}()

	select {
	case res := <-out:
		return res.resp, res.err
	case <-ctx.Done():
		select {
		case res := <-out:
			return res.resp, res.err
		case <-time.After(r.dropTimeout):
			return Response{}, jerr.Wrap(jerr.Cancelled, "llm.router", "callBounded", ctx.Err())
		}
	}
}

func (r *Router) startPerfTracking(ctx context.Context, sel selection, intent Intent) string {
	if r.mem == nil {
		return ""
	}
	id, err := r.mem.RecordTask(ctx, "llm_call", fmt.Sprintf("intent=%s model=%s", intent, sel.model))
	if err != nil {
		r.log.Warn("llm: failed to record task", "error", err)
		return ""
	}
	return id
}

func (r *Router) finishPerfTracking(ctx context.Context, taskID string, sel selection, intent Intent, resp Response, outcome string, elapsed time.Duration) {
	if r.mem == nil {
		return
	}
	if taskID != "" {
		status := memory.TaskSucceeded
		switch outcome {
		case "error":
			status = memory.TaskFailed
		case "cancelled":
			status = memory.TaskCancelled
		}
		now := time.Now()
		if err := r.mem.UpdateTask(ctx, taskID, memory.TaskPatch{Status: &status, CompletedAt: &now}); err != nil {
			r.log.Warn("llm: failed to update task", "error", err)
		}
	}
	if err := r.mem.RecordModelPerf(ctx, memory.ModelPerformance{
		ModelName:      sel.model,
		TaskType:       string(intent),
		RequestTime:    time.Now(),
		ResponseTimeMs: elapsed.Milliseconds(),
		TokenCount:     resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
		Outcome:        outcome,
	}); err != nil {
		r.log.Warn("llm: failed to record model performance", "error", err)
	}
}

// tagModel lets callers pin a concrete model via Options without adding a
// new field to the public Request shape; empty means "use routing default".
func (o Options) tagModel() string {
	if o.Tags == nil {
		return ""
	}
	return o.Tags["model"]
}
