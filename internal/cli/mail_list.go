package cli

import (
	"fmt"

	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newMailCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Mail operations",
	}
	cmd.AddCommand(newMailListCmd(app))
	return cmd
}

func newMailListCmd(app *appContext) *cobra.Command {
	var folder string
	var limit int
	var unread bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				emails, err := b.Mail.List(cmd.Context(), bridge.EmailQuery{Folder: folder, Limit: limit, UnreadOnly: unread})
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), emails, func() {
					name := folder
					if name == "" {
						name = "Inbox"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Folder: %s (%d shown)\n", name, len(emails))
					printEmails(cmd.OutOrStdout(), emails)
				})
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "Inbox", "Folder name or path")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum messages (default from defaults.email_limit)")
	cmd.Flags().BoolVar(&unread, "unread", false, "Only unread messages")

	return cmd
}
