package nlp

import (
	"regexp"
	"strings"
)

// ruleMatcher tries to recognize text and, on success, returns a confident
// ParsedCommand. Matchers are tried in order (§4.6: "precedence-ordered
// list of patterns").
type ruleMatcher func(text string) (ParsedCommand, bool)

var statusPhrases = []string{"status", "system status", "how is my system", "system health"}

var (
	installRe = regexp.MustCompile(`(?i)^install\s+(.+)$`)
	removeRe  = regexp.MustCompile(`(?i)^remove\s+(.+)$`)
	updateRe  = regexp.MustCompile(`(?i)^update(\s+.*)?$`)

	diagnoseRe = regexp.MustCompile(`(?i)^diagnose\s+(.+)$`)
	whyIsRe    = regexp.MustCompile(`(?i)^why\s+is\s+(\S+)`)
	logsForRe  = regexp.MustCompile(`(?i)^logs\s+for\s+(.+)$`)

	listVMsRe  = regexp.MustCompile(`(?i)^list\s+vms?$`)
	vmStatusRe = regexp.MustCompile(`(?i)^vm\s+status\s+(.+)$`)
	startVMRe  = regexp.MustCompile(`(?i)^start\s+vm\s+(.+)$`)
	stopVMRe   = regexp.MustCompile(`(?i)^stop\s+vm\s+(.+)$`)
)

var rulePipeline = []ruleMatcher{
	matchVMManagement,
	matchSystemStatus,
	matchPackageManagement,
	matchDockerManagement,
}

func matchSystemStatus(text string) (ParsedCommand, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range statusPhrases {
		if lower == phrase || strings.Contains(lower, phrase) {
			return ParsedCommand{
				Intent:      IntentSystemStatus,
				Tool:        "system_status",
				Arguments:   map[string]any{},
				Confidence:  0.95,
				Suggestions: suggestionsFor(IntentSystemStatus),
			}, true
		}
	}
	return ParsedCommand{}, false
}

func matchPackageManagement(text string) (ParsedCommand, bool) {
	trimmed := strings.TrimSpace(text)

	if m := installRe.FindStringSubmatch(trimmed); m != nil {
		return packageCommand("install", strings.TrimSpace(m[1])), true
	}
	if m := removeRe.FindStringSubmatch(trimmed); m != nil {
		return packageCommand("remove", strings.TrimSpace(m[1])), true
	}
	if updateRe.MatchString(trimmed) {
		return packageCommand("update", ""), true
	}
	return ParsedCommand{}, false
}

func packageCommand(action, pkg string) ParsedCommand {
	args := map[string]any{"action": action, "confirm": false}
	if pkg != "" {
		args["package"] = pkg
	}
	return ParsedCommand{
		Intent:      IntentPackageManagement,
		Tool:        "package_manager",
		Arguments:   args,
		Confidence:  0.9,
		Suggestions: suggestionsFor(IntentPackageManagement),
	}
}

func matchDockerManagement(text string) (ParsedCommand, bool) {
	trimmed := strings.TrimSpace(text)

	if m := diagnoseRe.FindStringSubmatch(trimmed); m != nil {
		return dockerCommand("diagnose", strings.TrimSpace(m[1])), true
	}
	if m := whyIsRe.FindStringSubmatch(trimmed); m != nil {
		return dockerCommand("diagnose", strings.TrimSpace(m[1])), true
	}
	if m := logsForRe.FindStringSubmatch(trimmed); m != nil {
		return dockerCommand("logs", strings.TrimSpace(m[1])), true
	}
	return ParsedCommand{}, false
}

func dockerCommand(action, target string) ParsedCommand {
	return ParsedCommand{
		Intent:      IntentDockerManagement,
		Tool:        "docker_vm",
		Arguments:   map[string]any{"action": action, "target": target},
		Confidence:  0.85,
		Suggestions: suggestionsFor(IntentDockerManagement),
	}
}

func matchVMManagement(text string) (ParsedCommand, bool) {
	trimmed := strings.TrimSpace(text)

	if listVMsRe.MatchString(trimmed) {
		return vmCommand("vm-list", ""), true
	}
	if m := vmStatusRe.FindStringSubmatch(trimmed); m != nil {
		return vmCommand("vm-status", strings.TrimSpace(m[1])), true
	}
	if m := startVMRe.FindStringSubmatch(trimmed); m != nil {
		return vmCommand("vm-start", strings.TrimSpace(m[1])), true
	}
	if m := stopVMRe.FindStringSubmatch(trimmed); m != nil {
		return vmCommand("vm-stop", strings.TrimSpace(m[1])), true
	}
	return ParsedCommand{}, false
}

func vmCommand(action, target string) ParsedCommand {
	args := map[string]any{"action": action}
	if target != "" {
		args["target"] = target
	}
	return ParsedCommand{
		Intent:      IntentVMManagement,
		Tool:        "docker_vm",
		Arguments:   args,
		Confidence:  0.85,
		Suggestions: suggestionsFor(IntentVMManagement),
	}
}

// runRules evaluates rulePipeline in order and returns the first match.
func runRules(text string) (ParsedCommand, bool) {
	for _, m := range rulePipeline {
		if cmd, ok := m(text); ok {
			return cmd, true
		}
	}
	return ParsedCommand{}, false
}

func suggestionsFor(intent Intent) []string {
	switch intent {
	case IntentSystemStatus:
		return []string{"system status", "list vms", "diagnose <container>"}
	case IntentPackageManagement:
		return []string{"install <package>", "remove <package>", "update", "system status"}
	case IntentDockerManagement:
		return []string{"logs for <container>", "diagnose <container>", "list vms"}
	case IntentVMManagement:
		return []string{"list vms", "vm status <name>", "start vm <name>"}
	default:
		return []string{"system status", "list vms", "install <package>"}
	}
}
