package cli

import (
	"github.com/jarvis-hq/jarvis/internal/audit"
	"github.com/jarvis-hq/jarvis/internal/nlp"
	"github.com/jarvis-hq/jarvis/internal/tools"
)

// auditRecordFor builds the audit record for one `jarvis do` invocation.
func auditRecordFor(parsed nlp.ParsedCommand, risk tools.Risk, res tools.Result, err error) audit.Record {
	r := audit.Record{
		Actor:       "cli",
		Action:      "tool." + parsed.Tool,
		Arguments:   parsed.Arguments,
		Destructive: risk == tools.RiskDangerous,
	}
	if err != nil {
		r.Outcome = "failure"
		r.Error = err.Error()
	} else {
		r.Outcome = "success"
	}
	return r
}
