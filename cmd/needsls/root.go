package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"needsls/internal/slogutil"
	"needsls/internal/version"
)

var (
	// workspaceFlag is the CLI --workspace flag value
	workspaceFlag string
	verbosity     int
	quiet         bool
)

var rootCmd = &cobra.Command{
	Use:   "needsls",
	Short: "needsls - language server for sphinx-needs",
	Long: `needsls answers editor queries about sphinx-needs objects (hover, go to
definition, find references and completion) from the needs.json snapshot
written by a Sphinx build.

Settings are read from .needsls/config.{json,toml,yaml} in the workspace,
the editor's sphinx-needs settings and NEEDSLS_* environment variables.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("needsls version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "",
		"Workspace root (default: current directory)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"Log more (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all logs")
}

// newLogger creates the stderr logger of one-shot commands.
func newLogger(cmd *cobra.Command) *slog.Logger {
	return slogutil.NewLogger(cmd.ErrOrStderr(), slogutil.LevelFromVerbosity(verbosity, quiet))
}

// workspaceRoot resolves --workspace, defaulting to the working directory.
func workspaceRoot() (string, error) {
	if workspaceFlag != "" {
		return filepath.Abs(workspaceFlag)
	}
	return os.Getwd()
}
