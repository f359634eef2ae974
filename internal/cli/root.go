package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// appContext carries the persistent flags to every subcommand.
type appContext struct {
	json    bool
	backend string
	errOut  io.Writer
}

func NewRootCmd() *cobra.Command {
	app := &appContext{errOut: os.Stderr}

	cmd := &cobra.Command{
		Use:          "mailbridge",
		Short:        "mailbridge drives the desktop mail client's mail, calendar and tasks",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.errOut = cmd.ErrOrStderr()
		},
	}

	cmd.PersistentFlags().BoolVar(&app.json, "json", false, "Print results as JSON")
	cmd.PersistentFlags().StringVar(&app.backend, "backend", "", "Override bridge.backend (ole or memory)")

	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newStatusCmd(app))
	cmd.AddCommand(newInboxCmd(app))
	cmd.AddCommand(newMailCmd(app))
	cmd.AddCommand(newReadCmd(app))
	cmd.AddCommand(newSearchCmd(app))
	cmd.AddCommand(newSendCmd(app))
	cmd.AddCommand(newDraftCmd(app))
	cmd.AddCommand(newReplyCmd(app))
	cmd.AddCommand(newForwardCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newMarkCmd(app))
	cmd.AddCommand(newFoldersCmd(app))
	cmd.AddCommand(newAttachmentsCmd(app))
	cmd.AddCommand(newCalendarCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newConfigCmd())

	cmd.SetErr(os.Stderr)
	cmd.SetOut(os.Stdout)

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
