// Package cli builds the jarvis command tree (§6 CLI surface). Every
// subcommand receives the running *app.App by handle rather than through
// package globals, so the same binary can be exercised from tests without
// process-wide state.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jarvis-hq/jarvis/internal/app"
)

var logo = "\n" +
	"   _                  _      \n" +
	"  (_) __ _ _ ____   _(_)___  \n" +
	"  | |/ _` | '__\\ \\ / / / __| \n" +
	"  | | (_| | |   \\ V /| \\__ \\ \n" +
	"  |_|\\__,_|_|    \\_/ |_|___/ \n"

// NewRootCmd builds the root command, wired to a already-constructed App.
func NewRootCmd(a *app.App) *cobra.Command {
	root := &cobra.Command{
		Use:           "jarvis",
		Short:         "Jarvis - local AI operations assistant",
		Long:          color.CyanString(logo) + "\nA local-first assistant for host operations, backed by an LLM router, a tool registry, and a supervised agent mesh.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMCPCmd(a),
		newAskCmd(a),
		newDoCmd(a),
		newAgentCmd(a),
		newMetricsCmd(a),
	)

	return root
}
