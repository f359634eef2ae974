package cli

import (
	"fmt"

	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newMarkCmd(app *appContext) *cobra.Command {
	var unread bool

	cmd := &cobra.Command{
		Use:   "mark <entry-id>",
		Short: "Mark a message read, or unread with --unread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				if err := b.Mail.Mark(cmd.Context(), args[0], unread); err != nil {
					return err
				}
				state := "read"
				if unread {
					state = "unread"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s.\n", state)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&unread, "unread", false, "Mark as unread instead of read")

	return cmd
}
