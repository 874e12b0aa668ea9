package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"needsls/internal/lsp"
	"needsls/internal/paths"
)

var (
	queryNeedsJSON string
	querySrcDir    string
	queryFormat    string
)

var queryCmd = &cobra.Command{
	Use:   "query {hover|definition|references|completion} FILE LINE CHAR",
	Short: "Run one language server query",
	Long: `Run a single hover, definition, references or completion query against the
workspace, exactly as an editor would at the given position.

LINE and CHAR are zero-based, CHAR counting UTF-16 code units.`,
	Args:      cobra.ExactArgs(4),
	ValidArgs: []string{"hover", "definition", "references", "completion"},
	RunE:      runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryNeedsJSON, "needs-json", "", "Path to needs.json (overrides settings)")
	queryCmd.Flags().StringVar(&querySrcDir, "src-dir", "", "Source directory (overrides settings)")
	queryCmd.Flags().StringVar(&queryFormat, "format", "human", "Output format (human, json, yaml)")
	rootCmd.AddCommand(queryCmd)
}

// QueryLocation is a position in a source file
type QueryLocation struct {
	Path      string `json:"path" yaml:"path"`
	Line      int    `json:"line" yaml:"line"`
	Character int    `json:"character" yaml:"character"`
	EndChar   int    `json:"endCharacter" yaml:"endCharacter"`
}

// QueryCompletion is one completion suggestion
type QueryCompletion struct {
	Label      string `json:"label" yaml:"label"`
	Kind       int    `json:"kind" yaml:"kind"`
	Detail     string `json:"detail,omitempty" yaml:"detail,omitempty"`
	InsertText string `json:"insertText,omitempty" yaml:"insertText,omitempty"`
}

// QueryResult is the output of the query command
type QueryResult struct {
	Query      string            `json:"query" yaml:"query"`
	Word       string            `json:"word" yaml:"word"`
	Hover      string            `json:"hover,omitempty" yaml:"hover,omitempty"`
	Locations  []QueryLocation   `json:"locations,omitempty" yaml:"locations,omitempty"`
	Completion []QueryCompletion `json:"completion,omitempty" yaml:"completion,omitempty"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	kind := args[0]
	file, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}
	line, err := strconv.Atoi(args[2])
	if err != nil || line < 0 {
		return fmt.Errorf("invalid line %q", args[2])
	}
	char, err := strconv.Atoi(args[3])
	if err != nil || char < 0 {
		return fmt.Errorf("invalid character %q", args[3])
	}

	root, err := workspaceRoot()
	if err != nil {
		return err
	}

	srv := lsp.NewServer(lsp.Options{
		Stdin:  strings.NewReader(""),
		Stdout: io.Discard,
		Logger: newLogger(cmd),
	})
	if err := srv.Configure(root, queryOverrides()); err != nil {
		return err
	}

	params := lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: paths.PathToURI(file)},
		Position:     lsp.Position{Line: line, Character: char},
	}
	result := &QueryResult{Query: kind, Word: srv.WordAt(params)}

	switch kind {
	case "hover":
		if h := srv.Hover(params); h != nil {
			result.Hover = h.Contents.Value
		}
	case "definition":
		if loc := srv.Definition(params); loc != nil {
			result.Locations = append(result.Locations, queryLocation(*loc))
		}
	case "references":
		for _, loc := range srv.References(params) {
			result.Locations = append(result.Locations, queryLocation(loc))
		}
	case "completion":
		for _, it := range srv.Completion(params) {
			result.Completion = append(result.Completion, QueryCompletion{
				Label:      it.Label,
				Kind:       it.Kind,
				Detail:     it.Detail,
				InsertText: it.InsertText,
			})
		}
	default:
		return fmt.Errorf("unknown query %q (want hover, definition, references or completion)", kind)
	}

	output, err := FormatResponse(result, OutputFormat(queryFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

func queryOverrides() map[string]interface{} {
	overrides := map[string]interface{}{}
	if queryNeedsJSON != "" {
		overrides["needsJson"] = queryNeedsJSON
	}
	if querySrcDir != "" {
		overrides["srcDir"] = querySrcDir
	}
	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

func queryLocation(loc lsp.Location) QueryLocation {
	return QueryLocation{
		Path:      paths.URIToPath(loc.URI),
		Line:      loc.Range.Start.Line,
		Character: loc.Range.Start.Character,
		EndChar:   loc.Range.End.Character,
	}
}
