// Package app wires every component into a single running process: one
// Config, one Logger, one Metrics registry, one Memory Store, one Router,
// one Tool Registry, one Supervisor, one Mesh, one Audit Store. No ambient
// globals: every command in internal/cli receives the *App by handle.
package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jarvis-hq/jarvis/internal/audit"
	"github.com/jarvis-hq/jarvis/internal/config"
	"github.com/jarvis-hq/jarvis/internal/llm"
	"github.com/jarvis-hq/jarvis/internal/memory"
	"github.com/jarvis-hq/jarvis/internal/mesh"
	"github.com/jarvis-hq/jarvis/internal/metrics"
	"github.com/jarvis-hq/jarvis/internal/nlp"
	"github.com/jarvis-hq/jarvis/internal/supervisor"
	"github.com/jarvis-hq/jarvis/internal/tools"
)

// App owns every long-lived component. Commands in internal/cli read from
// it; nothing here is package-level state.
type App struct {
	Config     *config.Config
	Log        *slog.Logger
	Memory     *memory.Store
	Router     *llm.Router
	Registry   *tools.Registry
	Parser     *nlp.Parser
	Supervisor *supervisor.Supervisor
	Mesh       *mesh.Mesh
	Metrics    *metrics.Metrics
	Audit      *audit.Store

	identity *mesh.Identity
}

// New constructs every component from cfg but starts nothing long-running;
// callers decide which surfaces (mcp server, mesh listener, supervisor) to
// start for a given CLI invocation.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		return nil, err
	}

	mem, err := memory.Open(memory.Options{
		Path:       cfg.MemoryDBPath(),
		Passphrase: cfg.MemoryPassphrase,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("app: opening memory store: %w", err)
	}

	router := buildRouter(cfg, mem, log)

	registry := tools.NewRegistry()
	for _, t := range []tools.Tool{
		tools.NewSystemStatusTool(),
		tools.NewPackageManagerTool(),
		tools.NewDockerVMTool(router),
	} {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("app: registering tool %s: %w", t.Name, err)
		}
	}

	auditStore, err := audit.New(audit.Options{
		Logger:     log,
		DataDir:    cfg.DataDir,
		RedactKeys: []string{"api_key", "passphrase", "password"},
	})
	if err != nil {
		return nil, fmt.Errorf("app: opening audit store: %w", err)
	}

	sup := supervisor.New(log)
	met := metrics.New("jarvis")

	identity, err := mesh.LoadOrCreateIdentity(cfg.MeshIdentityPath)
	if err != nil {
		return nil, fmt.Errorf("app: loading mesh identity: %w", err)
	}
	trust, err := mesh.LoadTrustStore(cfg.PeersPath())
	if err != nil {
		return nil, fmt.Errorf("app: loading trust store: %w", err)
	}

	return &App{
		Config:     cfg,
		Log:        log,
		Memory:     mem,
		Router:     router,
		Registry:   registry,
		Parser:     nlp.NewParser(router),
		Supervisor: sup,
		Mesh:       mesh.New(identity.Fingerprint(), identity, trust, log),
		Metrics:    met,
		Audit:      auditStore,
		identity:   identity,
	}, nil
}

// Close releases resources that hold file handles or connections.
func (a *App) Close() error {
	if a.Audit != nil {
		_ = a.Audit.Close()
	}
	if a.Memory != nil {
		return a.Memory.Close()
	}
	return nil
}

func buildRouter(cfg *config.Config, mem *memory.Store, log *slog.Logger) *llm.Router {
	var gateway llm.Backend
	if strings.TrimSpace(cfg.GatewayBaseURL) != "" {
		switch strings.ToLower(strings.TrimSpace(cfg.GatewayType)) {
		case "anthropic":
			gateway = llm.NewAnthropicGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, log)
		default:
			gateway = llm.NewOpenAIGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, log)
		}
	}

	local := llm.NewLocalBackend(cfg.LocalBaseURL, cfg.LocalTimeout, log)

	return llm.NewRouter(llm.RouterOptions{
		Gateway:       gateway,
		Local:         local,
		DefaultModels: cfg.ParseDefaultModels(),
		Memory:        mem,
		Logger:        log,
	})
}
