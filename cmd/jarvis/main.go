// Command jarvis is the local AI operations assistant's CLI entry point.
// It builds one *app.App (config, logger, memory store, router, tool
// registry, supervisor, mesh, metrics, audit) and hands it to the command
// tree; see internal/app for the wiring and internal/cli for the commands.
package main

import (
	"fmt"
	"os"

	"github.com/jarvis-hq/jarvis/internal/app"
	"github.com/jarvis-hq/jarvis/internal/cli"
	"github.com/jarvis-hq/jarvis/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "jarvis: config error:", err)
		return 2
	}

	log, err := config.NewLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jarvis: logging error:", err)
		return 2
	}

	a, err := app.New(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jarvis:", err)
		return 3
	}
	defer a.Close()

	root := cli.NewRootCmd(a)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jarvis:", err)
		return cli.ExitCodeFor(err)
	}
	return 0
}
