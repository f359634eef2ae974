package cli

import (
	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newReadCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <entry-id>",
		Short: "Read a message by entry ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				email, err := b.Mail.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), email, func() {
					printEmail(cmd.OutOrStdout(), email)
				})
			})
		},
	}
	return cmd
}
