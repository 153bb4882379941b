package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jarvis-hq/jarvis/internal/app"
	"github.com/jarvis-hq/jarvis/internal/config"
)

func testApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:          dir,
		MeshIdentityPath: dir + "/identity/ed25519.key",
		LocalBaseURL:     "http://127.0.0.1:11434",
	}
	a, err := app.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestDoRunsSystemStatusThroughRulePass(t *testing.T) {
	a := testApp(t)
	root := NewRootCmd(a)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"do", "system", "status"})

	err := root.Execute()
	require.NoError(t, err)
	require.NotEmpty(t, out.String())

	records, tailErr := a.Audit.Tail(10)
	require.NoError(t, tailErr)
	require.Len(t, records, 1)
	require.Equal(t, "tool.system_status", records[0].Action)
}

func TestDoUnrecognizedTextWithNoHealthyBackendExitsBackendDown(t *testing.T) {
	// Rule pass can't classify this text, so Parse falls through to the LLM
	// fallback; with no gateway configured and no local server listening,
	// the router itself fails with Unavailable before nlp ever produces an
	// Unknown ParsedCommand.
	a := testApp(t)
	root := NewRootCmd(a)
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"do", "asdkjhasd", "qweqwe"})

	err := root.Execute()
	require.Error(t, err)
	require.Equal(t, exitBackendDown, ExitCodeFor(err))
}

func TestAgentListEmptyByDefault(t *testing.T) {
	a := testApp(t)
	root := NewRootCmd(a)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"agent", "list"})

	require.NoError(t, root.Execute())
	require.Empty(t, out.String())
}

func TestMetricsDumpsExposition(t *testing.T) {
	a := testApp(t)
	root := NewRootCmd(a)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"metrics"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "jarvis_agents_ready")
}
