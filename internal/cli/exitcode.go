package cli

import "github.com/jarvis-hq/jarvis/internal/jerr"

// Exit codes per the CLI surface's contract: 0 success, 2 invalid
// arguments, 3 backend unavailable, 4 tool error, 5 agent/mesh error.
const (
	exitOK          = 0
	exitBadArgs     = 2
	exitBackendDown = 3
	exitToolError   = 4
	exitAgentOrMesh = 5
)

// ExitCodeFor maps a jerr.Kind to the CLI's documented exit code. Kinds
// with no explicit mapping fall back to exitToolError, the closest general
// "something downstream failed" bucket.
func ExitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	switch jerr.Of(err) {
	case jerr.BadArgs, jerr.BadKey:
		return exitBadArgs
	case jerr.Unavailable, jerr.RateLimited, jerr.Auth, jerr.Timeout, jerr.Backend:
		return exitBackendDown
	case jerr.ExternalTool, jerr.Invariant, jerr.NotFound, jerr.Duplicate, jerr.Cancelled, jerr.Server:
		return exitToolError
	case jerr.NoAgent, jerr.PeerUnreachable, jerr.SlowConsumer:
		return exitAgentOrMesh
	default:
		return exitToolError
	}
}
