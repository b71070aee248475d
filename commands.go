// commands.go -- cobra command tree for the callbackd binary.
//
// serve runs the coordinator. wait, push and callback-url are the flow driver's
// side of the handoff, usable from shell scripts that start serve in the background.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/callbackd/internal/config"
	"github.com/MGallo-Code/callbackd/internal/driver"
	"github.com/MGallo-Code/callbackd/internal/identity"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "callbackd",
		Short:         "Local OAuth2 3LO callback coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd(), newWaitCmd(), newPushCmd(), newCallbackURLCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the callback coordinator until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(region)
			if err != nil {
				return err
			}
			setupLogger(cfg.LogLevel)

			// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, nil, nil)
		},
	}
	cmd.Flags().StringVarP(&region, "region", "r", "", "identity service region (falls back to REGION)")
	return cmd
}

type clientOptions struct {
	url     string
	timeout time.Duration
}

func (o *clientOptions) bind(cmd *cobra.Command, timeout time.Duration, timeoutUsage string) {
	fs := cmd.Flags()
	fs.StringVar(&o.url, "url", driver.BaseURL(driver.DefaultPort), "coordinator base URL")
	fs.DurationVar(&o.timeout, "timeout", timeout, timeoutUsage)
}

func newWaitCmd() *cobra.Command {
	var opts clientOptions
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until the coordinator answers /ping",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(slog.LevelInfo)
			return driver.New(opts.url).WaitUntilReady(cmd.Context(), opts.timeout)
		},
	}
	opts.bind(cmd, driver.DefaultReadyTimeout, "maximum time to wait")
	return cmd
}

func newPushCmd() *cobra.Command {
	var (
		opts clientOptions
		id   identity.UserTokenIdentifier
	)
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Store a user token identifier on a running coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(slog.LevelInfo)
			if err := id.Validate(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			if err := driver.New(opts.url, driver.WithRequestTimeout(opts.timeout)).PushIdentifier(ctx, id); err != nil {
				return err
			}
			slog.Info("user token identifier pushed", "url", opts.url, "identifier_kind", id.Kind())
			return nil
		},
	}
	opts.bind(cmd, driver.DefaultRequestTimeout, "request timeout")
	fs := cmd.Flags()
	fs.StringVar(&id.UserToken, "user-token", "", "user token identifying the resource owner")
	fs.StringVar(&id.UserID, "user-id", "", "user id identifying the resource owner")
	cmd.MarkFlagsMutuallyExclusive("user-token", "user-id")
	cmd.MarkFlagsOneRequired("user-token", "user-id")
	return cmd
}

func newCallbackURLCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "callback-url",
		Short: "Print the redirect URL to register with the authorization server",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), driver.CallbackURL(port))
		},
	}
	cmd.Flags().IntVar(&port, "port", driver.DefaultPort, "coordinator port")
	return cmd
}
