package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jarvis-hq/jarvis/internal/jerr"
	"github.com/jarvis-hq/jarvis/internal/llm"
)

const defaultLogTail = 20

var dockerReadonlyActions = map[string][]string{
	"list":            {"ps", "-a"},
	"ps":              {"ps"},
	"inspect":         {"inspect"},
	"stats":           {"stats", "--no-stream"},
	"network-inspect": {"network", "inspect"},
	"volume-inspect":  {"volume", "inspect"},
}

var dockerMutatingActions = map[string][]string{
	"start":   {"start"},
	"stop":    {"stop"},
	"restart": {"restart"},
}

var virshReadonlyActions = map[string][]string{
	"vm-list":   {"list", "--all"},
	"vm-status": {"domstate"},
	"vm-info":   {"dominfo"},
}

var virshMutatingActions = map[string][]string{
	"vm-start": {"start"},
	"vm-stop":  {"shutdown"},
}

// NewDockerVMTool builds the Docker/VM built-in (§4.4). Every action execs
// the docker/virsh binary directly with argv arguments; optional LLM-assisted
// analysis for diagnose/health/profile goes through router so it shares the
// same backend-selection and retry policy as every other completion.
func NewDockerVMTool(router *llm.Router) Tool {
	return Tool{
		Descriptor: Descriptor{
			Name:        "docker_vm",
			Description: "Inspect and manage containers and virtual machines.",
			Args: []ArgSpec{
				{Name: "action", Kind: ArgEnum, Required: true, Enum: []string{
					"list", "ps", "inspect", "logs", "start", "stop", "restart", "stats",
					"diagnose", "health", "network-inspect", "volume-inspect", "profile",
					"vm-list", "vm-status", "vm-start", "vm-stop", "vm-info",
				}},
				{Name: "target", Kind: ArgString, Required: false},
				{Name: "tail", Kind: ArgInt, Required: false},
				{Name: "follow", Kind: ArgBool, Required: false},
				{Name: "llm_assist", Kind: ArgBool, Required: false},
			},
		},
		Risk: RiskMutating,
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			return dockerVMHandler(ctx, args, router)
		},
	}
}

func dockerVMHandler(ctx context.Context, args map[string]any, router *llm.Router) (Result, error) {
	action, _ := args["action"].(string)
	target, _ := args["target"].(string)
	llmAssist, _ := args["llm_assist"].(bool)

	switch action {
	case "logs":
		return dockerLogs(ctx, target, args)
	case "diagnose":
		return dockerDiagnose(ctx, target, llmAssist, router)
	case "health":
		return dockerHealth(ctx, llmAssist, router)
	case "profile":
		return dockerProfile(ctx, target, llmAssist, router)
	}

	if argv, ok := dockerReadonlyActions[action]; ok {
		return runExternal(ctx, "docker", appendTarget(argv, target))
	}
	if argv, ok := dockerMutatingActions[action]; ok {
		if target == "" {
			return Result{}, jerr.New(jerr.BadArgs, "tools", "docker_vm", "target is required for "+action)
		}
		return runExternal(ctx, "docker", appendTarget(argv, target))
	}
	if argv, ok := virshReadonlyActions[action]; ok {
		return runExternal(ctx, "virsh", appendTarget(argv, target))
	}
	if argv, ok := virshMutatingActions[action]; ok {
		if target == "" {
			return Result{}, jerr.New(jerr.BadArgs, "tools", "docker_vm", "target is required for "+action)
		}
		return runExternal(ctx, "virsh", appendTarget(argv, target))
	}
	return Result{}, jerr.New(jerr.BadArgs, "tools", "docker_vm", "unsupported action: "+action)
}

func appendTarget(argv []string, target string) []string {
	if target == "" {
		return argv
	}
	out := make([]string, len(argv), len(argv)+1)
	copy(out, argv)
	return append(out, target)
}

func runExternal(ctx context.Context, name string, argv []string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, argv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.Error); ok {
			return Result{}, jerr.Wrap(jerr.ExternalTool, "tools", "docker_vm", err)
		}
		return Result{IsError: true, Error: stderr.String(), Text: stdout.String()}, nil
	}
	return Result{Text: stdout.String()}, nil
}

func dockerLogs(ctx context.Context, target string, args map[string]any) (Result, error) {
	if target == "" {
		return Result{}, jerr.New(jerr.BadArgs, "tools", "docker_vm", "target is required for logs")
	}
	tail := defaultLogTail
	if t, ok := args["tail"]; ok {
		tail = toInt(t)
	}
	if tail < 1 || tail > 10_000 {
		return Result{}, jerr.New(jerr.BadArgs, "tools", "docker_vm", "tail must be between 1 and 10000")
	}
	follow, _ := args["follow"].(bool)

	argv := []string{"logs", "--tail", strconv.Itoa(tail)}
	if follow {
		argv = append(argv, "--follow")
	}
	argv = append(argv, target)
	return runExternal(ctx, "docker", argv)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func dockerDiagnose(ctx context.Context, target string, llmAssist bool, router *llm.Router) (Result, error) {
	if target == "" {
		return Result{}, jerr.New(jerr.BadArgs, "tools", "docker_vm", "target is required for diagnose")
	}
	status, _ := runExternal(ctx, "docker", []string{"inspect", "--format", "{{.State.Status}} {{.State.ExitCode}}", target})
	logs, _ := runExternal(ctx, "docker", []string{"logs", "--tail", strconv.Itoa(defaultLogTail), target})
	stats, _ := runExternal(ctx, "docker", []string{"stats", "--no-stream", target})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Status: %s\n", strings.TrimSpace(status.Text))
	fmt.Fprintf(&sb, "Recent Logs (last %d lines):\n%s\n", defaultLogTail, logs.Text)
	fmt.Fprintf(&sb, "Resource sample:\n%s\n", stats.Text)

	if llmAssist && router != nil {
		prompt := fmt.Sprintf("Container %q diagnostics:\n%s\nWhat is wrong and how should it be fixed?", target, sb.String())
		analysis, err := router.Complete(ctx, llm.IntentDevOps, prompt, llm.Options{})
		if err == nil {
			fmt.Fprintf(&sb, "\nAI Analysis:\n%s\n", analysis)
		}
	}
	return Result{Text: sb.String()}, nil
}

func dockerHealth(ctx context.Context, llmAssist bool, router *llm.Router) (Result, error) {
	list, err := runExternal(ctx, "docker", []string{"ps", "-a", "--format", "{{.Names}}: {{.Status}}"})
	if err != nil {
		return Result{}, err
	}
	text := list.Text
	if llmAssist && router != nil {
		prompt := fmt.Sprintf("Container status overview:\n%s\nRecommend any remediation.", text)
		if analysis, aerr := router.Complete(ctx, llm.IntentDevOps, prompt, llm.Options{}); aerr == nil {
			text += "\n\nAI Analysis:\n" + analysis
		}
	}
	return Result{Text: text}, nil
}

func dockerProfile(ctx context.Context, target string, llmAssist bool, router *llm.Router) (Result, error) {
	if target == "" {
		return Result{}, jerr.New(jerr.BadArgs, "tools", "docker_vm", "target is required for profile")
	}
	samples := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		sample, _ := runExternal(ctx, "docker", []string{"stats", "--no-stream", "--format", "{{.CPUPerc}} {{.MemUsage}} {{.BlockIO}}", target})
		samples = append(samples, strings.TrimSpace(sample.Text))
		select {
		case <-ctx.Done():
			return Result{}, jerr.Wrap(jerr.Cancelled, "tools", "docker_vm", ctx.Err())
		case <-time.After(time.Second):
		}
	}
	text := "CPU/Mem/BlockIO samples:\n" + strings.Join(samples, "\n")
	if llmAssist && router != nil {
		prompt := fmt.Sprintf("Resource profile for %q:\n%s\nSummarize and recommend any tuning.", target, text)
		if analysis, aerr := router.Complete(ctx, llm.IntentDevOps, prompt, llm.Options{}); aerr == nil {
			text += "\n\nAI Analysis:\n" + analysis
		}
	}
	return Result{Text: text}, nil
}
