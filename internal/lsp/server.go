// Package lsp serves needs queries over the Language Server Protocol.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"needsls/internal/completion"
	"needsls/internal/config"
	"needsls/internal/documents"
	"needsls/internal/registry"
	"needsls/internal/slogutil"
	"needsls/internal/source"
	"needsls/internal/version"
	"needsls/internal/watcher"
)

// TriggerCharacters start completion in the client.
var TriggerCharacters = []string{":", ".", "/", ">"}

// Options configures a Server.
type Options struct {
	// Stdin and Stdout carry the protocol. They default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer

	Logger *slog.Logger
	// Level is adjusted when the logLevel setting changes. May be nil.
	Level *slog.LevelVar

	// Watch forces server-side watching of snapshot files.
	Watch bool
}

// Server is a language server. Messages are handled one at a time on the
// goroutine running Run; only the watcher reloads concurrently, through
// the registry lock.
type Server struct {
	conn   *Conn
	logger *slog.Logger
	level  *slog.LevelVar

	loader     *config.Loader
	settings   *config.Settings
	registry   *registry.Registry
	docs       *documents.Store
	reader     *source.Reader
	resolver   *source.Resolver
	engine     *completion.Engine
	watcher    *watcher.Watcher
	forceWatch bool

	initialized bool
	shutdown    bool
	exited      bool
	ctx         context.Context
}

// NewServer creates a server. Query methods work without Run, which lets
// the CLI answer single queries.
func NewServer(opts Options) *Server {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}

	s := &Server{
		conn:       NewConn(opts.Stdin, opts.Stdout),
		logger:     opts.Logger,
		level:      opts.Level,
		loader:     config.NewLoader(""),
		settings:   config.DefaultSettings(),
		docs:       documents.NewStore(),
		engine:     completion.New(),
		forceWatch: opts.Watch,
		ctx:        context.Background(),
	}
	s.reader = source.NewReader(source.DefaultCacheSize, s.docs)
	s.resolver = source.NewResolver(s.reader, s.logger)
	s.registry = registry.New(s.logger, s)
	return s
}

// Registry exposes the server's registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Settings returns the settings last applied.
func (s *Server) Settings() *config.Settings {
	return s.settings
}

// Run processes messages until exit or the end of input. It returns nil
// after a shutdown request was honored.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	s.logger.Info("Language server starting", "version", version.Version)
	defer s.stopWatcher()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := s.conn.ReadMessage()
		if err != nil {
			if err == io.EOF {
				s.logger.Info("Language server stopping (EOF)")
				if s.shutdown {
					return nil
				}
				return io.ErrUnexpectedEOF
			}
			if rpcErr, ok := err.(*RPCError); ok {
				s.logger.Error("Error parsing message", "error", rpcErr.Message)
				s.write(NewErrorMessage(nil, ParseError, rpcErr.Message))
				continue
			}
			s.logger.Error("Error reading message", "error", err.Error())
			return err
		}

		if response := s.handleMessage(msg); response != nil {
			s.write(response)
		}
		if s.exited {
			if s.shutdown {
				return nil
			}
			return fmt.Errorf("exit without shutdown")
		}
	}
}

func (s *Server) write(msg *Message) {
	if err := s.conn.WriteMessage(msg); err != nil {
		s.logger.Error("Error writing message", "error", err.Error())
	}
}

// Notify sends a notification to the client.
func (s *Server) Notify(method string, params interface{}) {
	msg, err := NewNotificationMessage(method, params)
	if err != nil {
		s.logger.Error("Error encoding notification", "method", method, "error", err.Error())
		return
	}
	s.write(msg)
}

// ShowWarning shows a warning in the client.
func (s *Server) ShowWarning(msg string) {
	s.Notify("window/showMessage", ShowMessageParams{Type: MessageWarning, Message: msg})
}

// ShowError shows an error in the client.
func (s *Server) ShowError(msg string) {
	s.Notify("window/showMessage", ShowMessageParams{Type: MessageError, Message: msg})
}

// handleMessage dispatches one message and returns the response, if any.
// A panicking handler is answered with an internal error.
func (s *Server) handleMessage(msg *Message) (resp *Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Handler panic", "method", msg.Method, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			if msg.IsRequest() {
				resp = NewErrorMessage(msg.ID, InternalError, fmt.Sprintf("internal error handling %s", msg.Method))
			}
		}
	}()

	start := time.Now()
	switch {
	case msg.IsRequest():
		resp = s.handleRequest(msg)
	case msg.IsNotification():
		s.handleNotification(msg)
	case msg.IsResponse():
		s.logger.Debug("Ignoring response", "id", string(msg.ID))
	default:
		resp = NewErrorMessage(msg.ID, InvalidRequest, "Invalid message: not a request or notification")
	}
	s.logger.Debug("Handled message", "method", msg.Method, "duration", time.Since(start).String())
	return resp
}

func (s *Server) handleRequest(msg *Message) *Message {
	if msg.Method != "initialize" && !s.initialized {
		return NewErrorMessage(msg.ID, ServerNotInitialized, "server not initialized")
	}
	if s.shutdown && msg.Method != "shutdown" {
		return NewErrorMessage(msg.ID, InvalidRequest, "server is shutting down")
	}

	var (
		result interface{}
		err    error
	)
	switch msg.Method {
	case "initialize":
		result, err = s.handleInitialize(msg.Params)
	case "shutdown":
		s.shutdown = true
	case "textDocument/completion":
		result, err = withParams(msg.Params, s.Completion)
	case "completionItem/resolve":
		var item CompletionItem
		if err = unmarshalParams(msg.Params, &item); err == nil {
			result = item
		}
	case "textDocument/hover":
		result, err = withParams(msg.Params, s.Hover)
	case "textDocument/definition":
		result, err = withParams(msg.Params, s.Definition)
	case "textDocument/references":
		var params ReferenceParams
		if err = unmarshalParams(msg.Params, &params); err == nil {
			result = s.References(params.TextDocumentPositionParams)
		}
	default:
		return NewErrorMessage(msg.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", msg.Method))
	}

	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			return NewErrorMessage(msg.ID, rpcErr.Code, rpcErr.Message)
		}
		return NewErrorMessage(msg.ID, InternalError, err.Error())
	}

	resp, err := NewResultMessage(msg.ID, result)
	if err != nil {
		return NewErrorMessage(msg.ID, InternalError, err.Error())
	}
	return resp
}

func (s *Server) handleNotification(msg *Message) {
	if msg.Method == "exit" {
		s.exited = true
		return
	}
	if !s.initialized {
		s.logger.Debug("Dropping notification before initialize", "method", msg.Method)
		return
	}

	var err error
	switch msg.Method {
	case "initialized":
		s.logger.Info("Client initialized")
	case "workspace/didChangeConfiguration":
		var params DidChangeConfigurationParams
		if err = unmarshalParams(msg.Params, &params); err == nil {
			s.handleDidChangeConfiguration(params)
		}
	case "workspace/didChangeWatchedFiles":
		var params DidChangeWatchedFilesParams
		if err = unmarshalParams(msg.Params, &params); err == nil {
			s.handleDidChangeWatchedFiles(params)
		}
	case "textDocument/didOpen":
		var params DidOpenTextDocumentParams
		if err = unmarshalParams(msg.Params, &params); err == nil {
			d := params.TextDocument
			s.docs.Open(d.URI, d.LanguageID, d.Version, d.Text)
		}
	case "textDocument/didChange":
		var params DidChangeTextDocumentParams
		if err = unmarshalParams(msg.Params, &params); err == nil && len(params.ContentChanges) > 0 {
			// full sync: the last change holds the whole text
			last := params.ContentChanges[len(params.ContentChanges)-1]
			s.docs.Update(params.TextDocument.URI, params.TextDocument.Version, last.Text)
		}
	case "textDocument/didClose":
		var params DidCloseTextDocumentParams
		if err = unmarshalParams(msg.Params, &params); err == nil {
			s.docs.Close(params.TextDocument.URI)
		}
	case "textDocument/didSave", "$/cancelRequest", "$/setTrace":
	default:
		s.logger.Debug("Unknown notification", "method", msg.Method)
	}

	if err != nil {
		s.logger.Warn("Invalid notification params", "method", msg.Method, "error", err.Error())
	}
}

func unmarshalParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return &RPCError{Code: InvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &RPCError{Code: InvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func withParams[R any](raw json.RawMessage, fn func(TextDocumentPositionParams) R) (interface{}, error) {
	var params TextDocumentPositionParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	return fn(params), nil
}
