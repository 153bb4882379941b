package tools

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// NewSystemStatusTool builds the SystemStatus built-in (§4.4), grounded on
// the teacher's internal/monitor snapshot-collection approach (same
// gopsutil calls, condensed to a text summary instead of a typed RPC
// response).
func NewSystemStatusTool() Tool {
	return Tool{
		Descriptor: Descriptor{
			Name:        "system_status",
			Description: "Report CPU, memory, and process health for the local host.",
			Args: []ArgSpec{
				{Name: "verbose", Kind: ArgBool, Required: false},
			},
		},
		Risk:    RiskReadonly,
		Handler: systemStatusHandler,
	}
}

func systemStatusHandler(ctx context.Context, args map[string]any) (Result, error) {
	verbose, _ := args["verbose"].(bool)

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percents) == 0 {
		percents, err = cpu.PercentWithContext(ctx, 250_000_000, false)
	}
	if err != nil {
		return Result{IsError: true, Error: err.Error(), Text: "unable to read CPU stats: " + err.Error()}, nil
	}
	cores, _ := cpu.CountsWithContext(ctx, true)

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Result{IsError: true, Error: err.Error(), Text: "unable to read memory stats: " + err.Error()}, nil
	}

	text := fmt.Sprintf(
		"CPU Usage: %.1f%%\nCPU Cores: %d\nMemory: %.2f GB / %.2f GB used (%.1f%%)",
		percents[0], cores,
		float64(vm.Used)/1e9, float64(vm.Total)/1e9, vm.UsedPercent,
	)

	if verbose {
		procs, perr := process.ProcessesWithContext(ctx)
		swap := ""
		if sw, serr := mem.SwapMemoryWithContext(ctx); serr == nil && sw.Total > 0 {
			swap = fmt.Sprintf("\nSwap: %.1f/%.1f GB used", float64(sw.Used)/1e9, float64(sw.Total)/1e9)
		}
		procCount := 0
		if perr == nil {
			procCount = len(procs)
		}
		text += fmt.Sprintf("\nProcesses: %d%s", procCount, swap)
	}

	return Result{Text: text}, nil
}
