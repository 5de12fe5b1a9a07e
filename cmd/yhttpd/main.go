package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yllibed/httpserver/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  _   _ _   _   _           _
 | | | | |_| |_| |_ _ __  __| |
 | |_| | ' \  _|  _| '_ \/ _' |
  \__, |_||_\__|\__| .__/\__,_|
  |___/            |_|
`

// globalFlags are shared by every command.
type globalFlags struct {
	logLevel  string
	logFormat string
	noColor   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "yhttpd",
		Short: "An embeddable HTTP/1.1 server",
		Long: `yhttpd serves files, fixed resources, server-sent events and
notifications through a pipeline of request handlers.

Every connection carries exactly one request. Handlers are asked in
registration order and the first one to set a response wins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				errors.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored error output")

	rootCmd.AddCommand(
		serveCmd(flags),
		authCallbackCmd(flags),
		versionCmd(),
	)
	return rootCmd
}

// newLogger builds the process logger from the global flags.
func newLogger(flags *globalFlags, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(flags.logLevel)); err != nil {
		return nil, errors.New(errors.CodeInvalidFlag).
			WithField("--log-level").
			WithDetailf("unknown level %q", flags.logLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(flags.logFormat) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.New(errors.CodeInvalidFlag).
			WithField("--log-format").
			WithDetailf("unknown format %q, use text or json", flags.logFormat)
	}
}

// printBanner prints the ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
