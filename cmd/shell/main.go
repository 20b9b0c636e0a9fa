package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabshell/internal/shell"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "tabshell:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.LoadOrDefault()

	var (
		offline       bool
		printExternal bool
		logLevel      string
	)

	root := &cobra.Command{
		Use:   "tabshell [command]",
		Short: "Tabbed browsing shell with synced bookmarks",
		Long: "Without arguments tabshell starts an interactive session. " +
			"With arguments it runs one shell command, for example `tabshell bookmarks list`.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewStderr(logLevel)
			defer func() { _ = logger.Sync() }()

			app, err := shell.New(cfg, shell.Options{
				Out:           cmd.OutOrStdout(),
				Offline:       offline,
				PrintExternal: printExternal,
			}, logger.Logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(args) > 0 {
				return app.Exec(cmd.Context(), args)
			}
			logger.Debug("Interactive session started", zap.String("api", cfg.Remote.BaseURL))
			return app.Run(cmd.Context(), cmd.InOrStdin())
		},
	}

	flags := root.Flags()
	// Everything after the first argument belongs to the shell command
	flags.SetInterspersed(false)
	flags.StringVar(&cfg.Shell.StateDir, "state-dir", cfg.Shell.StateDir, "directory for prefs and the bookmark mirror")
	flags.StringVar(&cfg.Remote.BaseURL, "api", cfg.Remote.BaseURL, "bookmark API base URL")
	flags.StringVar(&cfg.Shell.Viewport, "viewport", cfg.Shell.Viewport, "probe or chrome")
	flags.StringVar(&cfg.Shell.Homepage, "homepage", cfg.Shell.Homepage, "homepage used on first run")
	flags.StringVar(&cfg.Shell.SearchEngine, "engine", cfg.Shell.SearchEngine, "search engine used on first run")
	flags.BoolVar(&offline, "offline", false, "keep bookmarks in the local mirror only")
	flags.BoolVar(&printExternal, "print-external", false, "print restricted URLs instead of opening the system browser")
	flags.StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")

	return root
}
