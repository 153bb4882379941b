// Package nlp implements the NLP Parser (C6): a fast deterministic rule
// pass over free text, falling back to an LLM-driven JSON parse when the
// rule pass is not confident, per spec.md §4.6.
package nlp

// Intent is the high-level action family a ParsedCommand belongs to.
type Intent string

const (
	IntentSystemStatus      Intent = "SystemStatus"
	IntentPackageManagement Intent = "PackageManagement"
	IntentDockerManagement  Intent = "DockerManagement"
	IntentVMManagement      Intent = "VMManagement"
	IntentUnknown           Intent = "Unknown"
)

// ParsedCommand is the parser's output shape (§4.6).
type ParsedCommand struct {
	Intent      Intent
	Tool        string
	Arguments   map[string]any
	Confidence  float64
	Suggestions []string
}
