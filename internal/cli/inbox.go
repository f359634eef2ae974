package cli

import "github.com/spf13/cobra"

func newInboxCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Inbox operations",
	}
	cmd.AddCommand(newInboxListCmd(app))
	return cmd
}

func newInboxListCmd(app *appContext) *cobra.Command {
	listCmd := newMailListCmd(app)
	listCmd.Use = "list"
	listCmd.Short = "List messages in the Inbox"
	listCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Flags().Set("folder", "Inbox")
	}
	return listCmd
}
