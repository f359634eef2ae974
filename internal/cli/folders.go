package cli

import (
	"mailbridge/internal/bridge"

	"github.com/spf13/cobra"
)

func newFoldersCmd(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List the folder tree with item counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd.Context(), app, func(b *bridge.Bridge) error {
				folders, err := b.Folders(cmd.Context())
				if err != nil {
					return err
				}
				return app.emit(cmd.OutOrStdout(), folders, func() {
					printFolders(cmd.OutOrStdout(), folders)
				})
			})
		},
	}
	return cmd
}
