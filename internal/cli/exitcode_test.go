package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

func TestExitCodeForMapsDocumentedKinds(t *testing.T) {
	require.Equal(t, exitOK, ExitCodeFor(nil))
	require.Equal(t, exitBadArgs, ExitCodeFor(jerr.New(jerr.BadArgs, "cli", "do", "bad")))
	require.Equal(t, exitBackendDown, ExitCodeFor(jerr.New(jerr.Unavailable, "llm", "ask", "down")))
	require.Equal(t, exitToolError, ExitCodeFor(jerr.New(jerr.ExternalTool, "tools", "call", "boom")))
	require.Equal(t, exitAgentOrMesh, ExitCodeFor(jerr.New(jerr.NoAgent, "supervisor", "submit", "none")))
}
