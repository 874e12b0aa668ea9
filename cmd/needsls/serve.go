package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"needsls/internal/config"
	"needsls/internal/lsp"
	"needsls/internal/slogutil"
	"needsls/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server",
	Long: `Run the language server over stdio.

Logs go to stderr, or to the file named by the logFile setting. With
--watch the server watches the configured needs.json files itself, for
clients that do not send workspace/didChangeWatchedFiles.

This command is typically started by the editor, not by users.`,
	RunE: runServe,
}

var (
	serveStdio bool
	serveWatch bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveStdio, "stdio", true, "Use stdio for communication (default)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Watch needs.json files for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	var logOut io.Writer = cmd.ErrOrStderr()
	var logger *slog.Logger

	// the workspace file may already name a log file and level; the
	// editor's settings take over after initialize
	if root, err := workspaceRoot(); err == nil {
		if settings, err := config.NewLoader(root).Load(); err == nil {
			level.Set(slogutil.LevelFromString(settings.LogLevel))
			if settings.LogFile != "" {
				fl, closer, err := slogutil.NewFileLogger(settings.LogFile, level, "10MB", 3)
				if err == nil {
					defer closer.Close()
					logger = fl
				}
			}
		}
	}
	if verbosity > 0 || quiet {
		level.Set(slogutil.LevelFromVerbosity(verbosity, quiet))
	}
	if logger == nil {
		logger = slogutil.NewLogger(logOut, level)
	}

	logger.Info("Starting language server", "version", version.Version, "watch", serveWatch)

	srv := lsp.NewServer(lsp.Options{
		Stdin:  os.Stdin,
		Stdout: cmd.OutOrStdout(),
		Logger: logger,
		Level:  level,
		Watch:  serveWatch,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Language server error", "error", err.Error())
		return err
	}
	return nil
}
