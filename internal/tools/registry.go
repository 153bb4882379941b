package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// defaultTimeout is the hard wall-clock limit applied to a call when the
// caller does not override it (§4.4).
const defaultTimeout = 60 * time.Second

// Registry owns the set of registered tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register adds tool. Fails with Duplicate if the name is already taken.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return jerr.New(jerr.BadArgs, "tools", "Register", "tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return jerr.New(jerr.Duplicate, "tools", "Register", "tool already registered: "+tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// List returns descriptors for every registered tool.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Descriptor)
	}
	return out
}

// Describe returns the full registered Tool (including its Risk
// classification), for callers that must decide whether to preview a call
// before executing it (§4.6: "print a safe preview for destructive
// actions").
func (r *Registry) Describe(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Call validates arguments and executes tool_name's handler with the default
// timeout; cancelling ctx still cancels the call.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (Result, error) {
	return r.CallWithCancel(ctx, name, args, defaultTimeout)
}

// CallWithCancel validates arguments and executes the handler, bounding it
// by timeout and the caller's ctx. Only a terminal state (Completed, Errored
// or Cancelled) is ever set on the returned Result; the intermediate states
// are not recorded.
func (r *Registry) CallWithCancel(ctx context.Context, name string, args map[string]any, timeout time.Duration) (Result, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Result{State: StateErrored}, jerr.New(jerr.NotFound, "tools", "Call", "unknown tool: "+name)
	}

	if err := validateArgs(tool.Args, args); err != nil {
		return Result{State: StateErrored}, err
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := tool.Handler(callCtx, args)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return Result{State: StateErrored, IsError: true, Error: o.err.Error()}, o.err
		}
		if o.res.State == "" {
			o.res.State = StateCompleted
		}
		return o.res, nil
	case <-callCtx.Done():
		if callCtx.Err() == context.DeadlineExceeded {
			return Result{State: StateErrored, IsError: true, Error: "timeout"}, jerr.New(jerr.Timeout, "tools", "Call", "tool "+name+" timed out")
		}
		return Result{State: StateCancelled}, jerr.Wrap(jerr.Cancelled, "tools", "Call", callCtx.Err())
	}
}

func validateArgs(specs []ArgSpec, args map[string]any) error {
	known := make(map[string]ArgSpec, len(specs))
	for _, s := range specs {
		known[s.Name] = s
	}
	for key := range args {
		if _, ok := known[key]; !ok {
			return jerr.New(jerr.BadArgs, "tools", "validateArgs", "unknown argument: "+key)
		}
	}
	for _, spec := range specs {
		val, present := args[spec.Name]
		if !present {
			if spec.Required {
				return jerr.New(jerr.BadArgs, "tools", "validateArgs", "missing required argument: "+spec.Name)
			}
			continue
		}
		if err := validateOne(spec, val); err != nil {
			return err
		}
	}
	return nil
}

func validateOne(spec ArgSpec, val any) error {
	switch spec.Kind {
	case ArgString:
		if _, ok := val.(string); !ok {
			return jerr.New(jerr.BadArgs, "tools", "validateArgs", fmt.Sprintf("%s must be a string", spec.Name))
		}
	case ArgBool:
		if _, ok := val.(bool); !ok {
			return jerr.New(jerr.BadArgs, "tools", "validateArgs", fmt.Sprintf("%s must be a bool", spec.Name))
		}
	case ArgInt:
		switch val.(type) {
		case int, int32, int64, float64:
		default:
			return jerr.New(jerr.BadArgs, "tools", "validateArgs", fmt.Sprintf("%s must be an int", spec.Name))
		}
	case ArgEnum:
		s, ok := val.(string)
		if !ok {
			return jerr.New(jerr.BadArgs, "tools", "validateArgs", fmt.Sprintf("%s must be a string", spec.Name))
		}
		valid := false
		for _, e := range spec.Enum {
			if e == s {
				valid = true
				break
			}
		}
		if !valid {
			return jerr.New(jerr.BadArgs, "tools", "validateArgs", fmt.Sprintf("%s must be one of %v", spec.Name, spec.Enum))
		}
	}
	return nil
}
