package cli

import (
	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

// composeFlags are shared by send and draft save.
type composeFlags struct {
	to, cc, bcc string
	subject     string
	body        string
	bodyFile    string
	bodyHTML    string
	attachments []string
}

func (f *composeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.to, "to", "", "Recipients, separated by commas or semicolons")
	cmd.Flags().StringVar(&f.cc, "cc", "", "CC recipients")
	cmd.Flags().StringVar(&f.bcc, "bcc", "", "BCC recipients")
	cmd.Flags().StringVar(&f.subject, "subject", "", "Message subject")
	cmd.Flags().StringVar(&f.body, "body", "", "Message body (plain text)")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "Path to file containing message body ('-' for stdin)")
	cmd.Flags().StringVar(&f.bodyHTML, "body-html", "", "Message body (HTML)")
	cmd.Flags().StringSliceVar(&f.attachments, "attachment", nil, "Attachment file paths (repeatable)")
}

func (f *composeFlags) compose(draft bool) (bridge.Compose, error) {
	content, err := loadBody(f.body, f.bodyFile)
	if err != nil {
		return bridge.Compose{}, err
	}
	return bridge.Compose{
		To:          splitList(f.to),
		CC:          splitList(f.cc),
		BCC:         splitList(f.bcc),
		Subject:     f.subject,
		Body:        content,
		HTMLBody:    f.bodyHTML,
		Attachments: f.attachments,
		Draft:       draft,
	}, nil
}

func newSendCmd(app *appContext) *cobra.Command {
	var flags composeFlags
	var draft bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send an email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.compose(draft)
			if err != nil {
				return err
			}
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				res, err := b.Mail.Send(cmd.Context(), c)
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), res, func() {
					printSendResult(cmd.OutOrStdout(), res)
				})
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&draft, "draft", false, "Save to Drafts instead of sending")

	return cmd
}
