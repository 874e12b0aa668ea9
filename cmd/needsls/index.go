package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"needsls/internal/config"
	"needsls/internal/project"
	"needsls/internal/registry"
)

var (
	indexSnapshot string
	indexSrc      string
	indexFormat   string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load needs snapshots and summarize them",
	Long: `Load needs.json snapshots the way the language server does and print what
was indexed: needs per type, documents per type, back-links and problems.

Without --snapshot every root configured for the workspace is loaded.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexSnapshot, "snapshot", "", "Path to needs.json (default: workspace settings)")
	indexCmd.Flags().StringVar(&indexSrc, "src", "", "Source directory of the snapshot's documents")
	indexCmd.Flags().StringVar(&indexFormat, "format", "human", "Output format (human, json, yaml)")
	rootCmd.AddCommand(indexCmd)
}

// TypeReport lists the documents holding needs of one type.
type TypeReport struct {
	Type      string   `json:"type" yaml:"type"`
	Needs     int      `json:"needs" yaml:"needs"`
	Documents []string `json:"documents" yaml:"documents"`
}

// RootReport is the CLI view of one loaded root.
type RootReport struct {
	SnapshotPath string        `json:"snapshotPath" yaml:"snapshotPath"`
	SrcDir       string        `json:"srcDir,omitempty" yaml:"srcDir,omitempty"`
	Default      bool          `json:"default" yaml:"default"`
	Version      string        `json:"version" yaml:"version"`
	Stats        project.Stats `json:"stats" yaml:"stats"`
	Types        []TypeReport  `json:"types" yaml:"types"`
	Files        []string      `json:"files,omitempty" yaml:"files,omitempty"`
	Warnings     []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// IndexReport is the output of the index command.
type IndexReport struct {
	Roots []RootReport `json:"roots" yaml:"roots"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	settings, err := indexSettings()
	if err != nil {
		return err
	}
	if len(settings.Roots()) == 0 {
		return fmt.Errorf("no needs.json configured: pass --snapshot or set %s.needsJson", config.Namespace)
	}

	reg := registry.New(logger, nil)
	reg.Configure(settings)

	report := &IndexReport{}
	failed := 0
	for _, st := range reg.Roots() {
		rr := RootReport{
			SnapshotPath: st.SnapshotPath,
			SrcDir:       st.SrcDir,
			Default:      st.Default,
			Stats:        st.Stats,
			Error:        st.Error,
		}
		if idx := reg.Index(st.SnapshotPath); idx != nil {
			fillRootReport(&rr, idx)
		} else {
			failed++
		}
		report.Roots = append(report.Roots, rr)
	}

	output, err := FormatResponse(report, OutputFormat(indexFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)

	if failed > 0 {
		return fmt.Errorf("%d of %d snapshots failed to load", failed, len(report.Roots))
	}
	return nil
}

func indexSettings() (*config.Settings, error) {
	if indexSnapshot == "" {
		root, err := workspaceRoot()
		if err != nil {
			return nil, err
		}
		return config.NewLoader(root).Load()
	}

	s := config.DefaultSettings()
	snapshot, err := filepath.Abs(indexSnapshot)
	if err != nil {
		return nil, err
	}
	s.NeedsJSON = snapshot
	if indexSrc != "" {
		if s.SrcDir, err = filepath.Abs(indexSrc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func fillRootReport(rr *RootReport, idx *project.Index) {
	rr.Version = idx.Version()
	for _, t := range idx.Types() {
		count := 0
		for _, doc := range idx.DocsForType(t) {
			for _, n := range idx.NeedsInDoc(doc) {
				if n.Type == t {
					count++
				}
			}
		}
		rr.Types = append(rr.Types, TypeReport{Type: t, Needs: count, Documents: idx.DocsForType(t)})
	}
	rr.Files = idx.Files()
	for _, w := range idx.Warnings() {
		rr.Warnings = append(rr.Warnings, w.Error())
	}
}
