package cli

import (
	"fmt"

	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newSearchCmd(app *appContext) *cobra.Command {
	var q bridge.SearchQuery
	var unread, read, withAttachments bool
	var after, before string

	cmd := &cobra.Command{
		Use:   "search [filter]",
		Short: "Search messages",
		Long: "Search a folder. Criteria flags are combined with AND. The optional argument is a\n" +
			"raw restriction in bracketed syntax, for example \"[Importance] = 2\".",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Raw = args[0]
			}
			if unread && read {
				return fmt.Errorf("use either --unread or --read")
			}
			if unread || read {
				v := unread
				q.Unread = &v
			}
			if withAttachments {
				q.HasAttachments = &withAttachments
			}
			var err error
			if q.ReceivedAfter, err = parseTimeFlag("after", after); err != nil {
				return err
			}
			if q.ReceivedBefore, err = parseTimeFlag("before", before); err != nil {
				return err
			}

			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				emails, err := b.Mail.Search(cmd.Context(), q)
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), emails, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "%d matches\n", len(emails))
					printEmails(cmd.OutOrStdout(), emails)
				})
			})
		},
	}

	cmd.Flags().StringVar(&q.Folder, "folder", "Inbox", "Folder name or path")
	cmd.Flags().StringVar(&q.Subject, "subject", "", "Subject contains")
	cmd.Flags().StringVar(&q.From, "from", "", "Sender name or address contains")
	cmd.Flags().StringVar(&q.Body, "body", "", "Body contains")
	cmd.Flags().BoolVar(&unread, "unread", false, "Only unread messages")
	cmd.Flags().BoolVar(&read, "read", false, "Only read messages")
	cmd.Flags().BoolVar(&withAttachments, "has-attachments", false, "Only messages with attachments")
	cmd.Flags().StringVar(&after, "after", "", "Received at or after (RFC 3339 or 2006-01-02 15:04)")
	cmd.Flags().StringVar(&before, "before", "", "Received before")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "Maximum results (default from defaults.search_limit)")

	return cmd
}
