package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatYAML(resp interface{}) (string, error) {
	data, err := yaml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *IndexReport:
		return formatIndexHuman(v), nil
	case *QueryResult:
		return formatQueryHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatIndexHuman(r *IndexReport) string {
	var b strings.Builder
	for i, root := range r.Roots {
		if i > 0 {
			b.WriteString("\n")
		}
		label := root.SnapshotPath
		if root.Default {
			label += " (default)"
		}
		b.WriteString(label + "\n")
		b.WriteString(strings.Repeat("=", 60) + "\n")

		if root.Error != "" {
			b.WriteString(fmt.Sprintf("  Not loaded: %s\n", root.Error))
			continue
		}
		if root.SrcDir != "" {
			b.WriteString(fmt.Sprintf("  Sources:     %s\n", root.SrcDir))
		}
		b.WriteString(fmt.Sprintf("  Version:     %s\n", root.Version))
		b.WriteString(fmt.Sprintf("  Needs:       %d (%d unlocatable)\n", root.Stats.Needs, root.Stats.Unlocatable))
		b.WriteString(fmt.Sprintf("  Documents:   %d\n", root.Stats.Documents))
		b.WriteString(fmt.Sprintf("  Back-links:  %d\n", root.Stats.BackLinks))
		b.WriteString(fmt.Sprintf("  Files:       %d\n", len(root.Files)))

		if len(root.Types) > 0 {
			b.WriteString(fmt.Sprintf("\n  Types (%d):\n", len(root.Types)))
			for _, t := range root.Types {
				b.WriteString(fmt.Sprintf("    %-16s %4d needs in %s\n", t.Type, t.Needs, strings.Join(t.Documents, ", ")))
			}
		}
		if len(root.Warnings) > 0 {
			b.WriteString(fmt.Sprintf("\n  Warnings (%d):\n", len(root.Warnings)))
			for _, w := range root.Warnings {
				b.WriteString("    - " + w + "\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatQueryHuman(r *QueryResult) string {
	var b strings.Builder
	switch {
	case r.Hover != "":
		b.WriteString(r.Hover)
	case len(r.Locations) > 0:
		for _, loc := range r.Locations {
			if loc.EndChar > loc.Character {
				b.WriteString(fmt.Sprintf("%s:%d:%d-%d\n", loc.Path, loc.Line, loc.Character, loc.EndChar))
			} else {
				b.WriteString(fmt.Sprintf("%s:%d:%d\n", loc.Path, loc.Line, loc.Character))
			}
		}
	case len(r.Completion) > 0:
		for _, c := range r.Completion {
			if c.Detail != "" {
				b.WriteString(fmt.Sprintf("%-24s %s\n", c.Label, c.Detail))
			} else {
				b.WriteString(c.Label + "\n")
			}
		}
	default:
		b.WriteString(fmt.Sprintf("No %s result for %q", r.Query, r.Word))
	}
	return strings.TrimRight(b.String(), "\n")
}
