package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("JARVIS_DATA_DIR")
	os.Unsetenv("JARVIS_GATEWAY_TYPE")

	c, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, c.DataDir)
	require.NoError(t, c.Validate())
}

func TestParseDefaultModels(t *testing.T) {
	c := &Config{DefaultModelsRaw: "code=foo, system = bar ,bad-entry,devops="}
	models := c.ParseDefaultModels()
	require.Equal(t, "foo", models["code"])
	require.Equal(t, "bar", models["system"])
	require.NotContains(t, models, "devops")
	require.Len(t, models, 2)
}

func TestValidateRejectsUnknownGatewayType(t *testing.T) {
	c := &Config{DataDir: "/tmp/jarvis-test", GatewayType: "bogus"}
	require.Error(t, c.Validate())
}

func TestMemoryDBPath(t *testing.T) {
	c := &Config{DataDir: "/tmp/jarvis-test"}
	require.Equal(t, "/tmp/jarvis-test/memory.db", c.MemoryDBPath())
}
