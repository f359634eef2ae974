package cli

import (
	"fmt"

	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newDeleteCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Move a message to Deleted Items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				if err := b.Mail.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
				return nil
			})
		},
	}
	return cmd
}
