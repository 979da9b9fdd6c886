package cmd

import (
	"fmt"
	"os"

	"github.com/nfrund/livechat/internal/app"
	"github.com/spf13/cobra"
)

var nameCmd = &cobra.Command{
	Use:   "name",
	Short: "Show or change the display name",
	Long:  "Without a subcommand, prints the current display name. A generated default is not saved.",
	RunE:  runNameGet,
}

var nameGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current display name",
	Args:  cobra.NoArgs,
	RunE:  runNameGet,
}

var nameSetCmd = &cobra.Command{
	Use:   "set NAME",
	Short: "Save a new display name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		closeLog, err := setupLogging(os.Stderr)
		if err != nil {
			return err
		}
		defer closeLog()

		names, err := app.OpenNames(cfg)
		if err != nil {
			return err
		}
		defer names.Close()

		if err := names.Set(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Display name set to %s\n", names.Name())
		return nil
	},
}

func runNameGet(cmd *cobra.Command, args []string) error {
	closeLog, err := setupLogging(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	names, err := app.OpenNames(cfg)
	if err != nil {
		return err
	}
	defer names.Close()

	fmt.Fprintln(cmd.OutOrStdout(), names.Load())
	return nil
}

func init() {
	nameCmd.AddCommand(nameGetCmd, nameSetCmd)
	rootCmd.AddCommand(nameCmd)
}
