package nlp

import (
	"context"

	"github.com/jarvis-hq/jarvis/internal/llm"
)

// confidenceFloor is the rule-pass confidence below which the parser
// defers to the LLM fallback (§4.6).
const confidenceFloor = 0.5

// Parser combines the deterministic rule pass with an LLM fallback.
// The rule pass always runs first and is expected to resolve the large
// majority of inputs in well under a millisecond; the fallback only
// fires when the rule pass is unconfident or unrecognized.
type Parser struct {
	router *llm.Router
}

// NewParser builds a Parser. router may be nil, in which case inputs the
// rule pass can't resolve come back as IntentUnknown instead of invoking
// a fallback.
func NewParser(router *llm.Router) *Parser {
	return &Parser{router: router}
}

// Parse classifies free text into a ParsedCommand.
func (p *Parser) Parse(ctx context.Context, text string) (ParsedCommand, error) {
	if cmd, ok := runRules(text); ok && cmd.Confidence >= confidenceFloor {
		return cmd, nil
	}

	if p.router == nil {
		return ParsedCommand{Intent: IntentUnknown, Confidence: 0, Suggestions: suggestionsFor(IntentUnknown)}, nil
	}

	return askModel(ctx, p.router, text)
}
