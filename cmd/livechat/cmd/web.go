package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nfrund/livechat/internal/web"
	"github.com/spf13/cobra"
)

var (
	webAddr  string
	sendRate float64
)

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the chat view on a local web page",
	RunE: func(cmd *cobra.Command, args []string) error {
		closeLog, err := setupLogging(os.Stderr)
		if err != nil {
			return err
		}
		defer closeLog()

		addr := webAddr
		if addr == "" {
			addr = cfg.GetWebAddr()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := startApp(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Chat available at http://%s\n", addr)

		runErr := web.New(a.Controller, web.WithSendRate(sendRate)).Run(ctx, addr)
		if err := closeApp(a); err != nil && runErr == nil {
			return err
		}
		return runErr
	},
}

func init() {
	webCmd.Flags().StringVar(&webAddr, "addr", "", "listen address (default LIVECHAT_WEB_ADDR or 127.0.0.1:8088)")
	webCmd.Flags().Float64Var(&sendRate, "send-rate", 0, "messages per second allowed per client (default 5)")
	rootCmd.AddCommand(webCmd)
}
