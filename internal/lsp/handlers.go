package lsp

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"needsls/internal/completion"
	"needsls/internal/config"
	"needsls/internal/needs"
	"needsls/internal/paths"
	"needsls/internal/project"
	"needsls/internal/registry"
	"needsls/internal/slogutil"
	"needsls/internal/source"
	"needsls/internal/version"
	"needsls/internal/watcher"
)

func (s *Server) handleInitialize(raw json.RawMessage) (interface{}, error) {
	var params InitializeParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
		}
	}

	root := workspaceRoot(params)
	s.logger.Info("Initializing", "root", root, "client", clientName(params))

	s.loader = config.NewLoader(root)
	if opts := decodeSettings(params.InitializationOptions); opts != nil {
		if err := s.loader.SetClientSettings(opts); err != nil {
			s.ShowWarning(err.Error())
		}
	}
	s.initialized = true
	s.applySettings()

	return InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: SyncFull,
			CompletionProvider: CompletionOptions{
				ResolveProvider:   true,
				TriggerCharacters: TriggerCharacters,
			},
			HoverProvider:      true,
			DefinitionProvider: true,
			ReferencesProvider: true,
		},
		ServerInfo: ServerInfo{Name: version.ServerName, Version: version.Version},
	}, nil
}

func workspaceRoot(params InitializeParams) string {
	switch {
	case len(params.WorkspaceFolders) > 0:
		return paths.URIToPath(params.WorkspaceFolders[0].URI)
	case params.RootURI != "":
		return paths.URIToPath(params.RootURI)
	default:
		return params.RootPath
	}
}

func clientName(params InitializeParams) string {
	if params.ClientInfo == nil {
		return ""
	}
	return params.ClientInfo.Name
}

// decodeSettings turns a settings payload into a map; anything that is not
// a JSON object yields nil.
func decodeSettings(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func (s *Server) handleDidChangeConfiguration(params DidChangeConfigurationParams) {
	if err := s.loader.SetClientSettings(decodeSettings(params.Settings)); err != nil {
		s.ShowWarning(err.Error())
		return
	}
	s.applySettings()
}

func (s *Server) handleDidChangeWatchedFiles(params DidChangeWatchedFilesParams) {
	for _, change := range params.Changes {
		s.registry.HandleFileEvent(registry.FileEvent{
			Path: paths.URIToPath(change.URI),
			Type: registry.FileChange(change.Type),
		})
	}
}

// Configure loads settings for the workspace at root, layering settings on
// top of the config file, and builds the registry. Used outside the
// protocol by the CLI.
func (s *Server) Configure(root string, settings map[string]interface{}) error {
	s.loader = config.NewLoader(root)
	if err := s.loader.SetClientSettings(settings); err != nil {
		return err
	}
	return s.applySettings()
}

// applySettings resolves the current settings and reconfigures the log
// level, the registry and the watcher. Invalid settings keep the previous
// configuration.
func (s *Server) applySettings() error {
	settings, err := s.loader.Load()
	if err != nil {
		s.logger.Warn("Invalid settings", "error", err.Error())
		s.ShowWarning(err.Error())
		return err
	}
	s.settings = settings

	if s.level != nil {
		s.level.Set(slogutil.LevelFromString(settings.LogLevel))
	}

	s.reader.Purge()
	s.registry.Configure(settings)
	s.updateWatcher()
	return nil
}

func (s *Server) updateWatcher() {
	if !s.forceWatch && !s.settings.Watch {
		s.stopWatcher()
		return
	}
	if s.watcher == nil {
		delay := time.Duration(s.settings.DebounceMs) * time.Millisecond
		w, err := watcher.New(s.registry, delay, s.logger)
		if err != nil {
			s.logger.Warn("Cannot start file watcher", "error", err.Error())
			return
		}
		w.Start(s.ctx)
		s.watcher = w
	}
	s.watcher.SetPaths(s.registry.SnapshotPaths())
	s.logger.Debug("Snapshot watcher updated", "dirs", s.watcher.Watched())
}

func (s *Server) stopWatcher() {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.Close(); err != nil {
		s.logger.Debug("Error closing watcher", "error", err.Error())
	}
	s.watcher = nil
}

// cursor is the resolved context of a position request.
type cursor struct {
	path  string
	index *project.Index
	word  string
	line  string
	prev  string
}

func (s *Server) cursorAt(params TextDocumentPositionParams) (cursor, bool) {
	c := cursor{path: paths.Normalize(paths.URIToPath(params.TextDocument.URI))}

	c.index = s.registry.Resolve(c.path)
	if c.index == nil {
		s.logger.Debug("No needs index for document", "path", c.path)
		return c, false
	}

	lines, err := s.reader.Lines(c.path)
	if err != nil {
		s.logger.Debug("Cannot read document", "path", c.path, "error", err.Error())
		return c, false
	}
	n := params.Position.Line
	if n < 0 || n >= len(lines) {
		return c, false
	}
	c.line = lines[n]
	if n > 0 {
		c.prev = lines[n-1]
	}
	c.word = source.ExtractWord(c.line, params.Position.Character)
	return c, true
}

// WordAt returns the word under the cursor, or "" when the position is
// outside the document.
func (s *Server) WordAt(params TextDocumentPositionParams) string {
	lines, err := s.reader.Lines(paths.Normalize(paths.URIToPath(params.TextDocument.URI)))
	n := params.Position.Line
	if err != nil || n < 0 || n >= len(lines) {
		return ""
	}
	return source.ExtractWord(lines[n], params.Position.Character)
}

// needAt looks up the need named by the word under the cursor. Role
// syntax around the id is stripped when the bare word is no id.
func needAt(idx *project.Index, word string) (*needs.Need, bool) {
	if word == "" {
		return nil, false
	}
	if n, ok := idx.Need(word); ok {
		return n, true
	}
	return idx.Need(trimRole(word))
}

func trimRole(word string) string {
	w := strings.Trim(word, "`")
	if strings.HasPrefix(w, ":") {
		if end := strings.Index(w[1:], ":"); end >= 0 {
			w = w[end+2:]
		}
	}
	if open := strings.LastIndex(w, "<"); open >= 0 {
		w = w[open+1:]
	}
	return strings.Trim(w, "`<>.,;()")
}

// Completion answers textDocument/completion.
func (s *Server) Completion(params TextDocumentPositionParams) []CompletionItem {
	c, ok := s.cursorAt(params)
	if !ok {
		return []CompletionItem{}
	}

	items := s.engine.Complete(c.index, completion.Request{
		Word:      c.word,
		Line:      params.Position.Line,
		Character: params.Position.Character,
		PrevLine:  c.prev,
	})

	out := make([]CompletionItem, 0, len(items))
	for _, it := range items {
		ci := CompletionItem{
			Label:         it.Label,
			Kind:          int(it.Kind),
			Detail:        it.Detail,
			Documentation: it.Documentation,
			InsertText:    it.InsertText,
		}
		if it.Snippet {
			ci.InsertTextFormat = FormatSnippet
		}
		for _, e := range it.AdditionalEdits {
			ci.AdditionalTextEdits = append(ci.AdditionalTextEdits, TextEdit{
				Range: Range{
					Start: Position{Line: e.Line, Character: e.StartChar},
					End:   Position{Line: e.Line, Character: e.EndChar},
				},
				NewText: e.NewText,
			})
		}
		out = append(out, ci)
	}
	return out
}

// HoverMarkdown renders the hover text of a need.
func HoverMarkdown(n *needs.Need) string {
	return strings.Join([]string{"**" + n.Title + "**", "", "", "```", n.Description, "```"}, "\n")
}

// Hover answers textDocument/hover.
func (s *Server) Hover(params TextDocumentPositionParams) *Hover {
	c, ok := s.cursorAt(params)
	if !ok {
		return nil
	}
	n, ok := needAt(c.index, c.word)
	if !ok {
		return nil
	}
	return &Hover{Contents: MarkupContent{Kind: "markdown", Value: HoverMarkdown(n)}}
}

// srcDirReady reports whether the index's source directory exists and
// warns the user otherwise.
func (s *Server) srcDirReady(idx *project.Index) bool {
	dir := idx.SrcDir()
	if dir == "" {
		s.logger.Warn("srcDir setting not configured")
		return false
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.logger.Warn("srcDir does not exist", "path", dir)
		s.ShowWarning(fmt.Sprintf("srcDir path not exists: %s", dir))
		return false
	}
	return true
}

// Definition answers textDocument/definition with the directive line of
// the need under the cursor.
func (s *Server) Definition(params TextDocumentPositionParams) *Location {
	c, ok := s.cursorAt(params)
	if !ok || !s.srcDirReady(c.index) {
		return nil
	}
	n, ok := needAt(c.index, c.word)
	if !ok {
		return nil
	}

	loc, err := s.resolver.Definition(c.index, n)
	if err != nil {
		s.logger.Warn("No definition found", "id", n.ID, "error", err.Error())
		return nil
	}
	pos := Position{Line: loc.Line}
	return &Location{URI: paths.PathToURI(loc.Path), Range: Range{Start: pos, End: pos}}
}

// References answers textDocument/references with the option lines of all
// needs linking to the need under the cursor.
func (s *Server) References(params TextDocumentPositionParams) []Location {
	c, ok := s.cursorAt(params)
	if !ok || !s.srcDirReady(c.index) {
		return nil
	}
	n, ok := needAt(c.index, c.word)
	if !ok {
		return nil
	}

	found := s.resolver.FindReferences(c.index, n)
	out := make([]Location, 0, len(found))
	for _, loc := range found {
		out = append(out, Location{
			URI: paths.PathToURI(loc.Path),
			Range: Range{
				Start: Position{Line: loc.Line, Character: loc.StartChar},
				End:   Position{Line: loc.Line, Character: loc.EndChar},
			},
		})
	}
	return out
}
