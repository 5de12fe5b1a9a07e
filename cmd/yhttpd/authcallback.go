package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yllibed/httpserver/internal/errors"
	"github.com/yllibed/httpserver/pkg/handlers"
	"github.com/yllibed/httpserver/pkg/server"
)

func authCallbackCmd(flags *globalFlags) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "auth-callback <callback-uri>",
		Short: "Wait for one OAuth redirect on a loopback address",
		Long: `Listen on the port of <callback-uri> until the browser is redirected
to it, then print the callback URL and its status.

The exit status is non-zero when the callback carries an error.

Examples:
  yhttpd auth-callback http://127.0.0.1:8400/oauth/callback
  yhttpd auth-callback http://localhost:8400/cb --timeout=5m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runAuthCallback(ctx, args[0], cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "How long to wait for the redirect")

	return cmd
}

func runAuthCallback(ctx context.Context, callbackURI string, out io.Writer, logger *slog.Logger) error {
	cb, err := handlers.NewAuthCallback(callbackURI)
	if err != nil {
		return errors.New(errors.CodeInvalidFlag).WithField("<callback-uri>").Wrap(err)
	}

	port, err := callbackPort(cb.CallbackURI())
	if err != nil {
		return err
	}

	cfg := server.DefaultConfig().WithPort(port).WithLogger(logger.With("component", "server"))
	cfg.BindAddress4 = net.IPv4(127, 0, 0, 1)
	cfg.BindAddress6 = net.IPv6loopback

	srv := server.New(cfg)
	defer srv.Close()
	srv.RegisterHandler(cb)

	if _, _, err := srv.Start(); err != nil {
		return errors.New(errors.CodeBindFailed).Wrap(err)
	}
	info(out, "Waiting for %s", cb.CallbackURI())

	res, err := cb.Wait(ctx)
	if err != nil {
		return fmt.Errorf("no callback received: %w", err)
	}
	// Let the browser receive its page before the deferred Close.
	waitIdle(srv, 2*time.Second)

	fmt.Fprintf(out, "%s\n%d %s\n", res.URL, res.StatusCode, res.Status)
	if res.Status != handlers.AuthSuccess {
		return fmt.Errorf("authentication ended with %s (%d)", res.Status, res.StatusCode)
	}
	return nil
}

// callbackPort returns the explicit port of u, or 80/443 from its scheme.
func callbackPort(u *url.URL) (int, error) {
	p := u.Port()
	if p == "" {
		if u.Scheme == "https" {
			return 443, nil
		}
		return 80, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, errors.New(errors.CodeInvalidFlag).
			WithField("<callback-uri>").
			WithDetailf("invalid port %q", p)
	}
	return port, nil
}

// waitIdle waits until srv has no open connection or d has elapsed.
func waitIdle(srv *server.Server, d time.Duration) {
	deadline := time.Now().Add(d)
	for srv.ActiveConnections() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}
