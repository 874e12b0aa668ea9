package lsp

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"needsls/internal/paths"
	"needsls/internal/testutil"
)

const waitTimeout = 5 * time.Second

// client drives a Server over in-memory pipes.
type client struct {
	t      *testing.T
	conn   *Conn
	in     *io.PipeWriter
	msgs   chan *Message
	done   chan error
	nextID int
	notes  []*Message
}

func startServer(t *testing.T) *client {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	srv := NewServer(Options{Stdin: inR, Stdout: outW})

	c := &client{
		t:    t,
		conn: NewConn(outR, inW),
		in:   inW,
		msgs: make(chan *Message, 256),
		done: make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		err := srv.Run(ctx)
		outW.Close()
		c.done <- err
	}()
	go func() {
		defer close(c.msgs)
		for {
			msg, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			c.msgs <- msg
		}
	}()

	t.Cleanup(func() {
		inW.Close()
		cancel()
	})
	return c
}

func (c *client) send(msg *Message) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(msg))
}

// request sends a request and waits for its response, collecting the
// notifications received meanwhile.
func (c *client) request(method string, params interface{}) *Message {
	c.t.Helper()

	c.nextID++
	id := json.RawMessage(strconv.Itoa(c.nextID))
	raw, err := json.Marshal(params)
	require.NoError(c.t, err)
	c.send(&Message{Jsonrpc: "2.0", ID: id, Method: method, Params: raw})

	timeout := time.After(waitTimeout)
	for {
		select {
		case msg, ok := <-c.msgs:
			require.True(c.t, ok, "connection closed waiting for %s", method)
			if msg.IsNotification() {
				c.notes = append(c.notes, msg)
				continue
			}
			if string(msg.ID) == string(id) {
				return msg
			}
		case <-timeout:
			c.t.Fatalf("timeout waiting for %s response", method)
		}
	}
}

func (c *client) notify(method string, params interface{}) {
	c.t.Helper()
	msg, err := NewNotificationMessage(method, params)
	require.NoError(c.t, err)
	c.send(msg)
}

func (c *client) result(method string, params, v interface{}) {
	c.t.Helper()
	resp := c.request(method, params)
	require.Nil(c.t, resp.Error, "%s failed", method)
	require.NoError(c.t, json.Unmarshal(resp.Result, v))
}

// shown returns the messages shown in the client so far.
func (c *client) shown() []ShowMessageParams {
	var out []ShowMessageParams
	for _, n := range c.notes {
		if n.Method != "window/showMessage" {
			continue
		}
		var p ShowMessageParams
		require.NoError(c.t, json.Unmarshal(n.Params, &p))
		out = append(out, p)
	}
	return out
}

func (c *client) initialize(root string, settings map[string]interface{}) InitializeResult {
	c.t.Helper()
	var res InitializeResult
	c.result("initialize", map[string]interface{}{
		"processId":             nil,
		"rootUri":               paths.PathToURI(root),
		"clientInfo":            map[string]string{"name": "test"},
		"initializationOptions": settings,
	}, &res)
	c.notify("initialized", map[string]interface{}{})
	return res
}

func position(path string, line, char int) TextDocumentPositionParams {
	return TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: paths.PathToURI(path)},
		Position:     Position{Line: line, Character: char},
	}
}

type workspace struct {
	root  *testutil.Root
	index string
	spec  string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	root := testutil.NewRoot(t)
	root.WriteSnapshot(t,
		testutil.Need{ID: "REQ_1", Title: "Root", Desc: "Root requirement", Type: "req", DocName: "index", DocType: ".rst"},
		testutil.Need{ID: "SPEC_1", Title: "First spec", Type: "spec", DocName: "spec", DocType: ".rst", Links: []string{"REQ_1"}},
	)
	w := &workspace{root: root}
	w.index = root.WriteDoc(t, "index.rst", strings.Join([]string{
		".. req:: Root",
		"   :id: REQ_1",
		"",
		"   Root requirement",
	}, "\n"))
	w.spec = root.WriteDoc(t, "spec.rst", strings.Join([]string{
		".. spec:: First spec",
		"   :id: SPEC_1",
		"   :links: REQ_1",
		"",
		"See :need:`REQ_1` here.",
	}, "\n"))
	return w
}

func (w *workspace) settings() map[string]interface{} {
	return map[string]interface{}{
		"sphinx-needs": map[string]interface{}{
			"needsJson": w.root.SnapshotPath,
			"srcDir":    w.root.SrcDir,
		},
	}
}

func TestServer_RequiresInitialize(t *testing.T) {
	c := startServer(t)

	resp := c.request("textDocument/hover", position("/tmp/x.rst", 0, 0))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ServerNotInitialized, resp.Error.Code)
}

func TestServer_Initialize(t *testing.T) {
	w := newWorkspace(t)
	c := startServer(t)

	res := c.initialize(w.root.Dir, w.settings())

	assert.Equal(t, "needsls", res.ServerInfo.Name)
	assert.Equal(t, SyncFull, res.Capabilities.TextDocumentSync)
	assert.True(t, res.Capabilities.HoverProvider)
	assert.True(t, res.Capabilities.DefinitionProvider)
	assert.True(t, res.Capabilities.ReferencesProvider)
	assert.True(t, res.Capabilities.CompletionProvider.ResolveProvider)
	assert.Equal(t, []string{":", ".", "/", ">"}, res.Capabilities.CompletionProvider.TriggerCharacters)
	assert.Empty(t, c.shown())
}

func TestServer_InitializeWithoutSnapshotWarns(t *testing.T) {
	c := startServer(t)
	c.initialize(t.TempDir(), nil)

	shown := c.shown()
	require.NotEmpty(t, shown)
	assert.Equal(t, MessageWarning, shown[0].Type)
	assert.Contains(t, shown[0].Message, "needsJson")

	// queries without an index answer empty
	var hover *Hover
	c.result("textDocument/hover", position(filepath.Join(t.TempDir(), "a.rst"), 0, 0), &hover)
	assert.Nil(t, hover)
}

func TestServer_Hover(t *testing.T) {
	w := newWorkspace(t)
	c := startServer(t)
	c.initialize(w.root.Dir, w.settings())

	want := "**Root**\n\n\n```\nRoot requirement\n```"

	var hover *Hover
	c.result("textDocument/hover", position(w.spec, 2, 12), &hover)
	require.NotNil(t, hover)
	assert.Equal(t, "markdown", hover.Contents.Kind)
	assert.Equal(t, want, hover.Contents.Value)

	hover = nil
	c.result("textDocument/hover", position(w.spec, 4, 8), &hover)
	require.NotNil(t, hover, "role syntax around the id")
	assert.Equal(t, want, hover.Contents.Value)

	hover = nil
	c.result("textDocument/hover", position(w.spec, 0, 1), &hover)
	assert.Nil(t, hover)
}

func TestServer_Definition(t *testing.T) {
	w := newWorkspace(t)
	c := startServer(t)
	c.initialize(w.root.Dir, w.settings())

	var loc *Location
	c.result("textDocument/definition", position(w.spec, 2, 12), &loc)
	require.NotNil(t, loc)
	assert.Equal(t, paths.PathToURI(w.index), loc.URI)
	assert.Equal(t, Range{Start: Position{Line: 0}, End: Position{Line: 0}}, loc.Range)

	loc = nil
	c.result("textDocument/definition", position(w.spec, 4, 0), &loc)
	assert.Nil(t, loc)
}

func TestServer_References(t *testing.T) {
	w := newWorkspace(t)
	c := startServer(t)
	c.initialize(w.root.Dir, w.settings())

	params := ReferenceParams{TextDocumentPositionParams: position(w.index, 1, 9)}
	params.Context.IncludeDeclaration = true

	var locs []Location
	c.result("textDocument/references", params, &locs)
	assert.Equal(t, []Location{{
		URI: paths.PathToURI(w.spec),
		Range: Range{
			Start: Position{Line: 2, Character: 11},
			End:   Position{Line: 2, Character: 16},
		},
	}}, locs)

	// a need nobody links to has an empty, non-null answer
	resp := c.request("textDocument/references", ReferenceParams{TextDocumentPositionParams: position(w.spec, 1, 9)})
	require.Nil(t, resp.Error)
	assert.Equal(t, "[]", string(resp.Result))
}

func TestServer_CompletionUsesOpenDocument(t *testing.T) {
	w := newWorkspace(t)
	c := startServer(t)
	c.initialize(w.root.Dir, w.settings())

	c.notify("textDocument/didOpen", DidOpenTextDocumentParams{TextDocument: TextDocumentItem{
		URI:        paths.PathToURI(w.spec),
		LanguageID: "restructuredtext",
		Version:    1,
		Text:       "Links\n->",
	}})

	var items []CompletionItem
	c.result("textDocument/completion", position(w.spec, 1, 2), &items)
	require.Len(t, items, 2)
	assert.Equal(t, "req", items[0].Label)
	assert.Equal(t, "spec", items[1].Label)
	assert.Equal(t, 13, items[0].Kind)

	c.notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{URI: paths.PathToURI(w.spec), Version: 2},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: "..\n"}},
	})

	items = nil
	c.result("textDocument/completion", position(w.spec, 0, 2), &items)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, FormatSnippet, it.InsertTextFormat)
		assert.Contains(t, it.InsertText, ":id: ")
	}

	// after close the file on disk answers again
	c.notify("textDocument/didClose", DidCloseTextDocumentParams{TextDocument: TextDocumentIdentifier{URI: paths.PathToURI(w.spec)}})
	items = nil
	c.result("textDocument/completion", position(w.spec, 3, 0), &items)
	assert.Empty(t, items)

	var resolved CompletionItem
	c.result("completionItem/resolve", CompletionItem{Label: "req", Kind: 13}, &resolved)
	assert.Equal(t, "req", resolved.Label)
}

func TestServer_WatchedFileReloads(t *testing.T) {
	w := newWorkspace(t)
	c := startServer(t)
	c.initialize(w.root.Dir, w.settings())

	w.root.WriteSnapshot(t,
		testutil.Need{ID: "REQ_1", Title: "Renamed", Desc: "Changed", Type: "req", DocName: "index", DocType: ".rst"},
	)
	c.notify("workspace/didChangeWatchedFiles", DidChangeWatchedFilesParams{Changes: []FileEvent{
		{URI: paths.PathToURI(w.root.SnapshotPath), Type: 2},
	}})

	var hover *Hover
	c.result("textDocument/hover", position(w.spec, 2, 12), &hover)
	require.NotNil(t, hover)
	assert.Equal(t, "**Renamed**\n\n\n```\nChanged\n```", hover.Contents.Value)

	// deletion keeps the last loaded needs
	c.notify("workspace/didChangeWatchedFiles", DidChangeWatchedFilesParams{Changes: []FileEvent{
		{URI: paths.PathToURI(w.root.SnapshotPath), Type: 3},
	}})
	hover = nil
	c.result("textDocument/hover", position(w.spec, 2, 12), &hover)
	require.NotNil(t, hover)

	shown := c.shown()
	require.NotEmpty(t, shown)
	assert.Contains(t, shown[len(shown)-1].Message, "deleted")
}

func TestServer_DidChangeConfiguration(t *testing.T) {
	w := newWorkspace(t)
	other := testutil.NewRoot(t)
	other.WriteSnapshot(t, testutil.Need{ID: "REQ_1", Title: "Other", Type: "req", DocName: "index", DocType: ".rst"})

	c := startServer(t)
	c.initialize(w.root.Dir, nil)
	require.NotEmpty(t, c.shown(), "nothing configured yet")

	c.notify("workspace/didChangeConfiguration", DidChangeConfigurationParams{Settings: mustJSON(t, map[string]interface{}{
		"sphinx-needs": map[string]interface{}{
			"needsJson": other.SnapshotPath,
			"srcDir":    w.root.SrcDir,
		},
	})})

	var hover *Hover
	c.result("textDocument/hover", position(w.spec, 2, 12), &hover)
	require.NotNil(t, hover)
	assert.Equal(t, "**Other**\n\n\n```\n\n```", hover.Contents.Value)

	// invalid settings keep the previous configuration
	before := len(c.shown())
	c.notify("workspace/didChangeConfiguration", DidChangeConfigurationParams{Settings: mustJSON(t, map[string]interface{}{
		"sphinx-needs": map[string]interface{}{"logLevel": "loud"},
	})})
	hover = nil
	c.result("textDocument/hover", position(w.spec, 2, 12), &hover)
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents.Value, "Other")

	shown := c.shown()
	require.Len(t, shown, before+1)
	assert.Contains(t, shown[before].Message, "logLevel")
}

func TestServer_ShutdownExit(t *testing.T) {
	c := startServer(t)
	c.initialize(t.TempDir(), nil)

	resp := c.request("unknown/method", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)

	resp = c.request("shutdown", nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, "null", string(resp.Result))

	resp = c.request("textDocument/hover", position("/tmp/x.rst", 0, 0))
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidRequest, resp.Error.Code)

	c.notify("exit", nil)
	select {
	case err := <-c.done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("server did not exit")
	}
}

func TestServer_ExitWithoutShutdown(t *testing.T) {
	c := startServer(t)
	c.notify("exit", nil)
	select {
	case err := <-c.done:
		assert.Error(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("server did not exit")
	}
}

func TestServer_ParseErrorKeepsRunning(t *testing.T) {
	c := startServer(t)

	_, err := c.in.Write([]byte("Content-Length: 5\r\n\r\n{oops"))
	require.NoError(t, err)

	select {
	case msg := <-c.msgs:
		require.NotNil(t, msg.Error)
		assert.Equal(t, ParseError, msg.Error.Code)
	case <-time.After(waitTimeout):
		t.Fatal("no parse error response")
	}

	c.initialize(t.TempDir(), nil)
}

func TestTrimRole(t *testing.T) {
	tests := map[string]string{
		"REQ_1":                 "REQ_1",
		":need:`REQ_1`":         "REQ_1",
		":need:`REQ_1`.":        "REQ_1",
		"`REQ_1`":               "REQ_1",
		":need:`title <REQ_1>`": "REQ_1",
		"<REQ_1>":               "REQ_1",
	}
	for in, want := range tests {
		assert.Equal(t, want, trimRole(in), in)
	}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
