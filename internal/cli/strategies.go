package cli

import (
	"github.com/spf13/cobra"

	"github.com/knowledge-capture/console/internal/render"
)

func newStrategiesCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List retrieval strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}
			render.Strategies(cmd.OutOrStdout(), a.Selector.Current().ID)
			return nil
		},
	}
}
