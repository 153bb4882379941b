package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jarvis-hq/jarvis/internal/config"
)

func TestNewWiresAllComponents(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:          dir,
		MeshIdentityPath: dir + "/identity/ed25519.key",
		LocalBaseURL:     "http://127.0.0.1:11434",
	}

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Memory)
	require.NotNil(t, a.Router)
	require.NotNil(t, a.Registry)
	require.NotNil(t, a.Parser)
	require.NotNil(t, a.Supervisor)
	require.NotNil(t, a.Mesh)
	require.NotNil(t, a.Metrics)
	require.NotNil(t, a.Audit)

	descriptors := a.Registry.List()
	require.Len(t, descriptors, 3)
}
