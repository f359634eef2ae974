package cli

import (
	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newReplyCmd(app *appContext) *cobra.Command {
	var body, bodyFile string
	var all, draft bool

	cmd := &cobra.Command{
		Use:   "reply <entry-id>",
		Short: "Reply to a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := loadBody(body, bodyFile)
			if err != nil {
				return err
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				res, err := b.Mail.Reply(cmd.Context(), bridge.ReplyInput{ID: args[0], Body: content, All: all, Draft: draft})
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), res, func() {
					printSendResult(cmd.OutOrStdout(), res)
				})
			})
		},
	}

	cmd.Flags().StringVar(&body, "body", "", "Text placed above the quoted original")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Path to file containing the reply text ('-' for stdin)")
	cmd.Flags().BoolVar(&all, "all", false, "Reply to all recipients")
	cmd.Flags().BoolVar(&draft, "draft", false, "Save to Drafts instead of sending")

	return cmd
}

func newForwardCmd(app *appContext) *cobra.Command {
	var to, body, bodyFile string
	var draft bool

	cmd := &cobra.Command{
		Use:   "forward <entry-id>",
		Short: "Forward a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := loadBody(body, bodyFile)
			if err != nil {
				return err
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				res, err := b.Mail.Forward(cmd.Context(), bridge.ForwardInput{ID: args[0], To: splitList(to), Body: content, Draft: draft})
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), res, func() {
					printSendResult(cmd.OutOrStdout(), res)
				})
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipients, separated by commas or semicolons")
	cmd.Flags().StringVar(&body, "body", "", "Text placed above the forwarded original")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Path to file containing the text ('-' for stdin)")
	cmd.Flags().BoolVar(&draft, "draft", false, "Save to Drafts instead of sending")

	return cmd
}
