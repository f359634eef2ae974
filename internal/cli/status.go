package cli

import (
	"fmt"

	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

type statusReport struct {
	Connected bool `json:"connected"`
	Unread    int  `json:"unread"`
	Folders   int  `json:"folders"`
	Inbox     int  `json:"inbox"`
}

func newStatusCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the connection and show Inbox counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				folders, err := b.Folders(cmd.Context())
				if err != nil {
					return err
				}
				unread, err := b.UnreadEmails(cmd.Context(), bridge.MaxListLimit)
				if err != nil {
					return err
				}
				report := statusReport{Connected: true, Unread: len(unread), Folders: len(folders)}
				for _, f := range folders {
					if f.Name == "Inbox" {
						report.Inbox = f.Count
						break
					}
				}
				return app.emit(cmd.OutOrStdout(), report, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Connected. Inbox: %d messages, %d unread; %d folders\n",
						report.Inbox, report.Unread, report.Folders)
				})
			})
		},
	}
	return cmd
}
