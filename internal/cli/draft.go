package cli

import (
	"fmt"

	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newDraftCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Draft operations",
	}
	cmd.AddCommand(newDraftSaveCmd(app))
	cmd.AddCommand(newDraftListCmd(app))
	cmd.AddCommand(newDraftSendCmd(app))
	return cmd
}

func newDraftSaveCmd(app *appContext) *cobra.Command {
	var flags composeFlags

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a draft to the Drafts folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.compose(true)
			if err != nil {
				return err
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				id, err := b.Mail.Create(cmd.Context(), c)
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), bridge.SendResult{EntryID: id}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Draft saved: %s\n", id)
				})
			})
		},
	}

	flags.register(cmd)

	return cmd
}

func newDraftListCmd(app *appContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				drafts, err := b.Mail.List(cmd.Context(), bridge.EmailQuery{Folder: "Drafts", Limit: limit})
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), drafts, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Drafts (%d shown)\n", len(drafts))
					printEmails(cmd.OutOrStdout(), drafts)
				})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum drafts (default from defaults.email_limit)")

	return cmd
}

func newDraftSendCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <entry-id>",
		Short: "Send a saved draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				if err := b.Mail.SendDraft(cmd.Context(), args[0]); err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), bridge.SendResult{Sent: true}, func() {
					fmt.Fprintln(cmd.OutOrStdout(), "Draft sent.")
				})
			})
		},
	}
	return cmd
}
