package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jarvis-hq/jarvis/internal/jerr"
	"github.com/jarvis-hq/jarvis/internal/llm"
)

// fallbackPrompt instructs the model to emit ParsedCommand as strict JSON
// and nothing else. The rule pass already handles common phrasings; this
// path only runs when confidence is low or the intent is unrecognized.
const fallbackPrompt = `You are an intent classifier for a system operations assistant.
Given the user's text, respond with ONLY a JSON object of this exact shape:
{"intent": "SystemStatus|PackageManagement|DockerManagement|VMManagement|Unknown", "tool": "<tool name or empty>", "arguments": {}, "confidence": <0..1>}
Do not include any explanation, markdown, or code fences. If you are unsure, use intent "Unknown" with confidence 0.

Text: %s`

type modelParsedCommand struct {
	Intent     string         `json:"intent"`
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	Confidence float64        `json:"confidence"`
}

var knownIntents = map[string]Intent{
	string(IntentSystemStatus):      IntentSystemStatus,
	string(IntentPackageManagement): IntentPackageManagement,
	string(IntentDockerManagement):  IntentDockerManagement,
	string(IntentVMManagement):      IntentVMManagement,
	string(IntentUnknown):           IntentUnknown,
}

// askModel sends text to the router and parses its JSON reply into a
// ParsedCommand. A malformed or unrecognized reply yields Unknown rather
// than a guess.
func askModel(ctx context.Context, router *llm.Router, text string) (ParsedCommand, error) {
	if router == nil {
		return ParsedCommand{Intent: IntentUnknown, Confidence: 0}, jerr.New(jerr.Invariant, "nlp", "askModel", "no router configured for fallback parsing")
	}

	reply, err := router.Complete(ctx, llm.IntentSystem, fmt.Sprintf(fallbackPrompt, text), llm.Options{})
	if err != nil {
		return ParsedCommand{}, err
	}

	payload, ok := parseModelReply(reply)
	if !ok {
		return ParsedCommand{Intent: IntentUnknown, Confidence: 0, Suggestions: suggestionsFor(IntentUnknown)}, nil
	}

	intent, known := knownIntents[payload.Intent]
	if !known {
		return ParsedCommand{Intent: IntentUnknown, Confidence: 0, Suggestions: suggestionsFor(IntentUnknown)}, nil
	}

	args := payload.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return ParsedCommand{
		Intent:      intent,
		Tool:        payload.Tool,
		Arguments:   args,
		Confidence:  payload.Confidence,
		Suggestions: suggestionsFor(intent),
	}, nil
}

// parseModelReply strips markdown code fences a model may wrap its JSON
// in, then unmarshals it. On direct unmarshal failure it falls back to
// scanning for the first balanced JSON object in the text.
func parseModelReply(raw string) (modelParsedCommand, bool) {
	cleaned := stripCodeFences(raw)

	var payload modelParsedCommand
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil {
		return payload, true
	}

	if obj := extractFirstJSONObject(cleaned); obj != "" {
		if err := json.Unmarshal([]byte(obj), &payload); err == nil {
			return payload, true
		}
	}
	return modelParsedCommand{}, false
}

func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	for _, fence := range []string{"```json", "```JSON", "```"} {
		if strings.HasPrefix(t, fence) {
			t = strings.TrimPrefix(t, fence)
			break
		}
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// extractFirstJSONObject scans s for the first balanced {...} substring,
// respecting string literals and escapes so braces inside quoted text
// don't throw off the depth count. Returns "" if none is found.
func extractFirstJSONObject(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
