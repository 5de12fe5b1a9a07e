package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yllibed/httpserver/internal/config"
	"github.com/yllibed/httpserver/internal/errors"
)

// shutdownTimeout bounds how long serve waits for open connections.
const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath  string
	port        int
	bind        string
	logRequests bool
	noGuard     bool
	folders     []string
}

func serveCmd(flags *globalFlags) *cobra.Command {
	opts := &serveOptions{port: -1}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Long: `Start the server described by yhttpd.json.

The configuration is read from --config (a file or a directory holding
yhttpd.json), then from ./yhttpd.json. Without either, defaults apply.

Examples:
  yhttpd serve
  yhttpd serve --config=/etc/yhttpd
  yhttpd serve --port=8080 --folder=/=./www
  yhttpd serve --bind=127.0.0.1 --log-level=debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file or directory (default ./yhttpd.json)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", -1, "Port to listen on, 0 for any (default from config)")
	cmd.Flags().StringVarP(&opts.bind, "bind", "b", "", "IPv4 address to bind to (default from config)")
	cmd.Flags().BoolVar(&opts.logRequests, "log-requests", false, "Log every request")
	cmd.Flags().BoolVar(&opts.noGuard, "no-guard", false, "Disable request limits")
	cmd.Flags().StringArrayVar(&opts.folders, "folder", nil, "Serve a directory, as prefix=dir (repeatable)")

	return cmd
}

// loadConfig loads the configuration and applies command-line overrides.
func loadConfig(cmd *cobra.Command, opts *serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadPath(opts.configPath)
	case config.Exists("."):
		cfg, err = config.Load(".")
	default:
		cfg = config.New()
	}
	if err != nil {
		return nil, err
	}

	if opts.port >= 0 {
		cfg.Server.Port = opts.port
	}
	if opts.bind != "" {
		if ip := net.ParseIP(opts.bind); ip == nil || ip.To4() == nil {
			return nil, errors.New(errors.CodeInvalidFlag).
				WithField("--bind").
				WithDetailf("%q is not an IPv4 address", opts.bind)
		}
		cfg.Server.BindAddress4 = opts.bind
	}
	if cmd.Flags().Changed("log-requests") {
		cfg.Server.LogRequests = opts.logRequests
	}
	if opts.noGuard {
		cfg.Guard.Enabled = false
	}
	for _, f := range opts.folders {
		prefix, dir, ok := cutFolderFlag(f)
		if !ok {
			return nil, errors.New(errors.CodeInvalidFlag).
				WithField("--folder").
				WithDetailf("%q is not prefix=dir", f)
		}
		cfg.Folders = append(cfg.Folders, config.FolderConfig{Prefix: prefix, Dir: dir})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func cutFolderFlag(f string) (prefix, dir string, ok bool) {
	prefix, dir, ok = strings.Cut(f, "=")
	return prefix, dir, ok && dir != ""
}

// runServe starts the server and blocks until ctx is done, then drains open
// connections.
func runServe(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}

	uri4, uri6, err := a.server.Start()
	if err != nil {
		_ = a.server.Close()
		return errors.New(errors.CodeBindFailed).
			WithField("server.port").
			Wrap(err)
	}

	printBanner(out)
	success(out, "Listening on %s", uri4)
	if uri6 != nil {
		success(out, "Listening on %s", uri6)
	}
	info(out, "%d handlers registered", a.server.Pipeline().Len())
	if !cfg.Admin.Disabled {
		info(out, "Metrics at %s", uri4.JoinPath(cfg.Admin.Prefix, "metrics"))
	}
	fmt.Fprintln(out)

	<-ctx.Done()
	logger.Info("shutting down", "active", a.server.ActiveConnections())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown timed out, closing open connections", "error", err)
	}
	return a.server.Close()
}
