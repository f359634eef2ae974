package cli

import (
	"fmt"

	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newMoveCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <entry-id> <folder>",
		Short: "Move a message to another folder",
		Long:  "Move a message to a folder given by name or path (Inbox/Projects). The message gets a new entry ID.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				if err := b.Mail.Move(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Moved.")
				return nil
			})
		},
	}
	return cmd
}
