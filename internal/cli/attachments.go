package cli

import (
	"fmt"

	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newAttachmentsCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachments",
		Short: "Attachment operations",
	}
	cmd.AddCommand(newAttachmentsDownloadCmd(app))
	return cmd
}

func newAttachmentsDownloadCmd(app *appContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "download <entry-id>",
		Short: "Download attachments from a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				outputDir = "."
			}

			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				files, err := b.Mail.DownloadAttachments(cmd.Context(), args[0], outputDir)
				if err != nil {
					return err
				}
				if files == nil {
					files = []string{}
				}
				return app.emit(cmd.OutOrStdout(), files, func() {
					if len(files) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No attachments found.")
						return
					}
					for _, path := range files {
						fmt.Fprintln(cmd.OutOrStdout(), path)
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&outputDir, "output", ".", "Output directory")

	return cmd
}
