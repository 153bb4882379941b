package cli

import (
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/jarvis-hq/jarvis/internal/app"
)

func newMetricsCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Dump the current metrics exposition",
		RunE: func(cmd *cobra.Command, args []string) error {
			families, err := a.Metrics.Registry().Gather()
			if err != nil {
				return err
			}
			enc := expfmt.NewEncoder(cmd.OutOrStdout(), expfmt.NewFormat(expfmt.TypeTextPlain))
			for _, mf := range families {
				if err := enc.Encode(mf); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
