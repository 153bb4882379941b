package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jarvis-hq/jarvis/internal/app"
	"github.com/jarvis-hq/jarvis/internal/jerr"
	"github.com/jarvis-hq/jarvis/internal/nlp"
	"github.com/jarvis-hq/jarvis/internal/tools"
)

func newDoCmd(a *app.App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "do [text]",
		Short: "Parse free text into a tool call and execute it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			parsed, err := a.Parser.Parse(cmd.Context(), text)
			if err != nil {
				return err
			}
			if parsed.Intent == nlp.IntentUnknown || parsed.Tool == "" {
				fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("could not map that to a tool. Try one of:"))
				for _, s := range parsed.Suggestions {
					fmt.Fprintln(cmd.OutOrStdout(), "  "+s)
				}
				return jerr.New(jerr.BadArgs, "cli", "do", "unrecognized command")
			}

			tool, ok := a.Registry.Describe(parsed.Tool)
			if !ok {
				return jerr.New(jerr.NotFound, "cli", "do", "unknown tool: "+parsed.Tool)
			}

			if tool.Risk == tools.RiskDangerous && !yes {
				fmt.Fprintln(cmd.OutOrStdout(), color.RedString("this action is destructive and was not executed:"))
				fmt.Fprintf(cmd.OutOrStdout(), "  tool: %s\n  arguments: %v\n", parsed.Tool, parsed.Arguments)
				fmt.Fprintln(cmd.OutOrStdout(), "re-run with --yes to confirm")
				return nil
			}

			res, err := a.Registry.Call(cmd.Context(), parsed.Tool, parsed.Arguments)
			a.Audit.Append(auditRecordFor(parsed, tool.Risk, res, err))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm execution of a destructive action")
	return cmd
}
