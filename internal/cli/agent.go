package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jarvis-hq/jarvis/internal/app"
)

func newAgentCmd(a *app.App) *cobra.Command {
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Inspect and control supervised agents",
	}
	agentCmd.AddCommand(
		newAgentListCmd(a),
		newAgentStartCmd(a),
		newAgentStopCmd(a),
		newAgentRestartCmd(a),
	)
	return agentCmd
}

func newAgentStartCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "start [id]",
		Short: "Start a previously stopped agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Supervisor.StartAgent(args[0])
		},
	}
}

func newAgentListCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered agent and its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, rec := range a.Supervisor.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-36s %-10s state=%-10s restarts=%d\n", rec.ID, rec.Kind, rec.State, rec.RestartCount)
			}
			return nil
		},
	}
}

func newAgentStopCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop [id]",
		Short: "Stop a supervised agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Supervisor.Stop(args[0])
		},
	}
}

func newAgentRestartCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "restart [id]",
		Short: "Restart a supervised agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Supervisor.Restart(args[0])
		},
	}
}
