package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nfrund/livechat/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Chat in the terminal",
	Long:  "Opens the chat view in the terminal. Logs go to LOG_FILE so they do not disturb the screen.",
	RunE: func(cmd *cobra.Command, args []string) error {
		closeLog, err := setupLogging(nil)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := startApp(ctx)
		if err != nil {
			return err
		}
		runErr := tui.New(a.Controller).Run(ctx)
		if err := closeApp(a); err != nil && runErr == nil {
			return err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
