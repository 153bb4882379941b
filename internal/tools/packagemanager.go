package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

var packageManagerReadonlyArgs = map[string][]string{
	"search":         {"-Ss"},
	"info":           {"-Si"},
	"list-installed": {"-Q"},
	"list-updates":   {"-Qu"},
}

var packageManagerMutatingArgs = map[string][]string{
	"install": {"-S"},
	"remove":  {"-R"},
	"update":  {"-Syu"},
}

// NewPackageManagerTool builds the PackageManager built-in (§4.4). Commands
// are always exec'd argv-only via os/exec, never through a shell (no
// interpolation of caller-supplied strings is possible).
func NewPackageManagerTool() Tool {
	return Tool{
		Descriptor: Descriptor{
			Name:        "package_manager",
			Description: "Search, inspect, and (with confirmation) install or remove system packages.",
			Args: []ArgSpec{
				{Name: "action", Kind: ArgEnum, Required: true, Enum: []string{"search", "info", "install", "remove", "update", "list-installed", "list-updates"}},
				{Name: "package", Kind: ArgString, Required: false},
				{Name: "manager", Kind: ArgEnum, Required: false, Enum: []string{"pacman", "yay", "paru"}},
				{Name: "confirm", Kind: ArgBool, Required: false},
			},
		},
		Risk:    RiskMutating,
		Handler: packageManagerHandler,
	}
}

func packageManagerHandler(ctx context.Context, args map[string]any) (Result, error) {
	action, _ := args["action"].(string)
	pkg, _ := args["package"].(string)
	manager, _ := args["manager"].(string)
	confirm, _ := args["confirm"].(bool)
	if manager == "" {
		manager = "pacman"
	}

	destructive := action == "install" || action == "remove" || action == "update"
	if destructive && (action == "install" || action == "remove") && pkg == "" {
		return Result{}, jerr.New(jerr.BadArgs, "tools", "package_manager", "package is required for "+action)
	}

	var argv []string
	sudo := false
	if ro, ok := packageManagerReadonlyArgs[action]; ok {
		argv = append(argv, ro...)
		if pkg != "" {
			argv = append(argv, pkg)
		}
	} else if mut, ok := packageManagerMutatingArgs[action]; ok {
		sudo = true
		argv = append(argv, mut...)
		if pkg != "" {
			argv = append(argv, pkg)
		}
		argv = append(argv, "--noconfirm")
	} else {
		return Result{}, jerr.New(jerr.BadArgs, "tools", "package_manager", "unsupported action: "+action)
	}

	commandLine := manager + " " + strings.Join(argv, " ")
	if sudo {
		commandLine = "sudo " + commandLine
	}

	if destructive && !confirm {
		return Result{Text: fmt.Sprintf("Would run: %s\nPass confirm=true to execute.", commandLine)}, nil
	}

	program := manager
	execArgv := argv
	if sudo {
		program = "sudo"
		execArgv = append([]string{manager}, argv...)
	}

	cmd := exec.CommandContext(ctx, program, execArgv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{IsError: true, Error: stderr.String(), Text: stdout.String()}, nil
	}
	return Result{Text: stdout.String()}, nil
}
