package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jarvis-hq/jarvis/internal/app"
	"github.com/jarvis-hq/jarvis/internal/llm"
)

func newAskCmd(a *app.App) *cobra.Command {
	var intent string

	cmd := &cobra.Command{
		Use:   "ask [text]",
		Short: "One-shot completion via the LLM router",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			reply, err := a.Router.Complete(cmd.Context(), llm.Intent(intent), text, llm.Options{})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&intent, "intent", string(llm.IntentReason), "system prompt persona to use: code, system, devops, reason")
	return cmd
}
