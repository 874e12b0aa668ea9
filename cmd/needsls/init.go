package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"needsls/internal/config"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize needsls configuration",
	Long:  "Creates .needsls/config.toml with default settings in the workspace root",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}

	path, err := config.WriteInitFile(root, nil, initForce)
	if err != nil {
		if path != "" && !initForce {
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "\nRun 'needsls init --force' to overwrite it.")
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit needsJson and srcDir to point at your Sphinx build output and sources.")
	return nil
}
