// Package config loads Jarvis's process configuration from the environment
// (§6: "recognized variables control endpoints and credentials"). Config
// *file* loading is explicitly out of scope (spec.md §1); this package has
// no Load(path) — only Load() from the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full set of environment-derived settings for a Jarvis
// process. Field names mirror §6's recognized variable list; the envconfig
// prefix is "JARVIS" (e.g. JARVIS_GATEWAY_BASE_URL).
type Config struct {
	// Gateway backend (OpenAI-compatible upstream, §4.2).
	GatewayBaseURL string `envconfig:"GATEWAY_BASE_URL"`
	GatewayAPIKey  string `envconfig:"GATEWAY_API_KEY"`
	GatewayType    string `envconfig:"GATEWAY_TYPE" default:"openai"` // openai | anthropic

	// Local backend (Ollama-shaped /api/chat, §4.2/§6).
	LocalBaseURL string        `envconfig:"LOCAL_BASE_URL" default:"http://127.0.0.1:11434"`
	LocalTimeout time.Duration `envconfig:"LOCAL_TIMEOUT" default:"30s"`

	// DefaultModels maps Intent -> local model name, used when the router
	// falls back to the local backend (§4.3 routing policy step 2).
	// Encoded as "intent=model,intent=model" since envconfig has no map support
	// for nested structs; parsed in ParseDefaultModels.
	DefaultModelsRaw string `envconfig:"DEFAULT_MODELS" default:"code=qwen2.5-coder:7b,system=llama3.1:8b,devops=llama3.1:8b,reason=llama3.1:8b,unknown=llama3.1:8b"`

	// Metrics/audit exposure (§6, §4.9).
	MetricsAddr string `envconfig:"METRICS_ADDR" default:"127.0.0.1:9400"`

	// Mesh identity and data directory (§6 persisted state layout).
	MeshIdentityPath string `envconfig:"MESH_IDENTITY_PATH"`
	DataDir          string `envconfig:"DATA_DIR"`

	// MemoryPassphrase, when set, enables at-rest encryption for the Memory
	// Store (§4.1). Absence leaves the store unencrypted.
	MemoryPassphrase string `envconfig:"MEMORY_PASSPHRASE"`

	// LogFormat/LogLevel follow the teacher's ambient logging convention.
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the process environment with prefix
// "JARVIS". It fills in a default DataDir if none was set, but never reads
// or writes a config file.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("jarvis", &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			home = "."
		}
		c.DataDir = filepath.Join(home, ".jarvis")
	}
	if strings.TrimSpace(c.MeshIdentityPath) == "" {
		c.MeshIdentityPath = filepath.Join(c.DataDir, "identity", "ed25519.key")
	}
	return &c, nil
}

// ParseDefaultModels turns DefaultModelsRaw into an intent->model map.
func (c *Config) ParseDefaultModels() map[string]string {
	out := make(map[string]string)
	if c == nil {
		return out
	}
	for _, pair := range strings.Split(c.DefaultModelsRaw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(strings.ToLower(k))
		v = strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// MemoryDBPath is memory.db under the data directory (§6 persisted state layout).
func (c *Config) MemoryDBPath() string {
	return filepath.Join(c.DataDir, "memory.db")
}

// AuditLogDir is the audit directory under the data directory.
func (c *Config) AuditLogDir() string {
	return filepath.Join(c.DataDir, "audit")
}

// PeersPath is identity/peers.json under the data directory.
func (c *Config) PeersPath() string {
	return filepath.Join(filepath.Dir(c.MeshIdentityPath), "peers.json")
}

// Validate checks the minimal invariants needed to start any component; it
// does not require a gateway or local backend to be configured (Router
// handles both being absent/unhealthy per §4.3/§8).
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("missing data dir")
	}
	switch strings.ToLower(strings.TrimSpace(c.GatewayType)) {
	case "openai", "anthropic", "":
	default:
		return fmt.Errorf("invalid gateway type %q", c.GatewayType)
	}
	return nil
}

// EnsureDataDirs creates the data dir and identity dir with safe permissions.
func (c *Config) EnsureDataDirs() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.MeshIdentityPath), 0o700); err != nil {
		return err
	}
	return os.MkdirAll(c.AuditLogDir(), 0o700)
}
