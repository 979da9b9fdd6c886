package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nfrund/livechat/internal/app"
	"github.com/nfrund/livechat/internal/config"
	"github.com/nfrund/livechat/internal/logging"
	"github.com/spf13/cobra"
)

const closeTimeout = 5 * time.Second

var (
	envFiles []string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "livechat",
	Short: "A minimal real-time chat client",
	Long: `livechat signs in to a SurrealDB-backed chat room, follows the shared
message feed live and posts messages under a locally stored display name.

Available commands:
  tui        Chat in the terminal
  web        Serve the chat view on a local web page
  name       Show or change the display name
  version    Print the version

Use "livechat [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load(envFiles...)
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv file(s) to load before reading the environment (default .env)")
}

// setupLogging sends logs to w, or to the configured log file when w is nil.
func setupLogging(w io.Writer) (func(), error) {
	if w != nil {
		logging.New(cfg.GetLogFormat(), cfg.GetLogLevel(), w)
		return func() {}, nil
	}
	f, err := logging.OpenFile(cfg.GetLogFile())
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logging.New(cfg.GetLogFormat(), cfg.GetLogLevel(), f)
	return func() { _ = f.Close() }, nil
}

// startApp assembles and starts the chat services.
func startApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		_ = closeApp(a)
		return nil, err
	}
	return a, nil
}

func closeApp(a *app.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return a.Close(ctx)
}
