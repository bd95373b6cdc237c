package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/queryplus/queryplus/internal/config"
	"github.com/queryplus/queryplus/internal/store"
	"github.com/queryplus/queryplus/pkg/diagnostics"
	"github.com/queryplus/queryplus/pkg/inline"
	"github.com/queryplus/queryplus/pkg/joins"
	"github.com/queryplus/queryplus/pkg/lint"
	_ "github.com/queryplus/queryplus/pkg/lint/rules" // Register lint rules
	"github.com/queryplus/queryplus/pkg/metadata"
)

// MethodInlineSuggestion is the custom request returning ghost text.
const MethodInlineSuggestion = "queryplus/inlineSuggestion"

// MethodAsyncLinting is the custom notification reporting worker progress.
const MethodAsyncLinting = "queryplus/asyncLinting"

// Options configure a Server.
type Options struct {
	// Config is used as is when set. Otherwise it is loaded from the
	// workspace root on initialize.
	Config *config.Config
	// Provider serves metadata. When nil the server opens the metadata store
	// named by the configuration, if there is one.
	Provider metadata.Provider
	// Version is reported in serverInfo.
	Version string
	// AfterFunc replaces the debounce timer factory, for tests.
	AfterFunc diagnostics.AfterFunc
}

// session is the diagnostics machinery of one open document.
type session struct {
	pipeline *diagnostics.Pipeline
	worker   *diagnostics.LocalWorker
}

func (ss *session) close() {
	ss.pipeline.Close()
	_ = ss.worker.Close()
}

// Server implements the Language Server Protocol for Query++.
type Server struct {
	// Document management
	documents *DocumentStore
	sessions  map[string]*session
	sessionMu sync.Mutex

	opts Options

	// Analysis, set up on initialize
	cfg         *config.Config
	provider    metadata.Provider
	store       *store.Store // owned store, closed on shutdown
	analyzer    *lint.Analyzer
	engine      *inline.Engine
	fieldLoader *metadata.Fetcher
	watchCancel context.CancelFunc

	// Memory caches for fast lookups
	dataExtensions []metadata.DataExtension
	sharedFolders  map[string]struct{}
	cacheMu        sync.RWMutex

	// Project context
	projectRoot string
	initialized bool

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	// Logging
	logger *slog.Logger

	// Shutdown state
	shutdown   bool
	exited     bool
	shutdownMu sync.RWMutex
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer, opts Options) *Server {
	return NewServerWithLogger(reader, writer, opts, nil)
}

// NewServerWithLogger creates a new LSP server instance with a custom logger.
func NewServerWithLogger(reader io.Reader, writer io.Writer, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{
		documents:     NewDocumentStore(),
		sessions:      make(map[string]*session),
		opts:          opts,
		reader:        bufio.NewReader(reader),
		writer:        writer,
		logger:        logger,
		sharedFolders: map[string]struct{}{},
	}
}

// Run starts the server's main loop, processing JSON-RPC messages until the
// client sends exit or disconnects.
func (s *Server) Run() error {
	s.logger.Info("Query++ LSP server starting...")
	defer s.release()

	for {
		s.shutdownMu.RLock()
		exited := s.exited
		s.shutdownMu.RUnlock()
		if exited {
			return nil
		}

		// Read message
		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Info("Client disconnected")
				return nil
			}
			s.logger.Error("Error reading message", "error", err)
			continue
		}

		// Handle message
		if err := s.handleMessage(msg); err != nil {
			s.logger.Error("Error handling message", "method", msg.Method, "error", err)
		}
	}
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC error codes.
const (
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInvalidRequest = -32600
)

// readMessage reads a JSON-RPC message from the input stream.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	// Read headers
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}

		if strings.HasPrefix(line, "Content-Length: ") {
			lengthStr := strings.TrimPrefix(line, "Content-Length: ")
			contentLength, err = strconv.Atoi(lengthStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	// Read body
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	// Parse message
	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("error parsing message: %w", err)
	}

	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, err *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if err != nil {
		msg.Error = err
	} else {
		resultBytes, _ := json.Marshal(result)
		msg.Result = resultBytes
	}

	s.writeMessage(&msg)
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// writeMessage writes a JSON-RPC message to the output stream.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Error marshaling message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	s.logger.Debug("Received", "method", msg.Method)

	s.shutdownMu.RLock()
	shutdown := s.shutdown
	s.shutdownMu.RUnlock()
	if shutdown && msg.Method != "exit" {
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidRequest, Message: "server is shutting down"})
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized(msg)
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		return s.handleExit(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	case MethodInlineSuggestion:
		return s.handleInlineSuggestion(msg)
	default:
		if msg.ID != nil {
			// Unknown method with ID - respond with method not found
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	s.projectRoot = URIToPath(params.RootURI)
	s.logger.Info("Project root", "path", s.projectRoot)

	s.setup()

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{".", " ", "["},
			},
			CodeActionProvider: &CodeActionOptions{
				CodeActionKinds: []CodeActionKind{CodeActionKindRefactor},
			},
		},
		ServerInfo: &ServerInfo{Name: "queryplus", Version: s.opts.Version},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

func (s *Server) handleInitialized(_ *JSONRPCMessage) error {
	s.initialized = true
	s.logger.Info("Server initialized")

	// Show warning if metadata not available
	if s.provider == nil {
		s.sendNotification("window/showMessage", &ShowMessageParams{
			Type:    MessageTypeWarning,
			Message: "No metadata found. Run 'queryplus import <snapshot.yaml>' to enable table and field suggestions.",
		})
	}

	if s.store != nil && s.cfg.Watch && s.cfg.MetadataFile != "" {
		ctx, cancel := context.WithCancel(context.Background())
		s.watchCancel = cancel
		st, path := s.store, s.cfg.MetadataFile
		go func() {
			err := st.WatchSnapshot(ctx, path, func(_ *store.Import, err error) {
				if err == nil {
					s.reloadMetadata()
				}
			})
			if err != nil {
				s.logger.Warn("Snapshot watch stopped", "path", path, "error", err)
			}
		}()
	}

	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	s.release()

	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("Server shutdown")
	return nil
}

func (s *Server) handleExit(_ *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.exited = true
	s.shutdownMu.Unlock()
	s.logger.Info("Server exit")
	return nil
}

// release stops every session and closes the owned store. It is idempotent.
func (s *Server) release() {
	s.sessionMu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.sessionMu.Unlock()
	for _, ss := range sessions {
		ss.close()
	}

	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
}

// --- Document handlers ---

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	if s.cfg == nil {
		s.setup()
	}

	uri := params.TextDocument.URI
	s.documents.Open(uri, params.TextDocument.Text, params.TextDocument.Version)
	s.logger.Info("Opened", "uri", uri)

	ss := s.openSession(uri)
	ss.pipeline.Update(params.TextDocument.Text)
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	uri := params.TextDocument.URI
	s.sessionMu.Lock()
	ss := s.sessions[uri]
	delete(s.sessions, uri)
	s.sessionMu.Unlock()
	if ss != nil {
		ss.close()
	}

	s.documents.Close(uri)
	s.logger.Info("Closed", "uri", uri)

	// Clear diagnostics
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []Diagnostic{},
	})

	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}

	// We use full sync, so take the last change
	if len(params.ContentChanges) == 0 {
		return nil
	}
	uri := params.TextDocument.URI
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	if s.documents.Update(uri, text, params.TextDocument.Version) == nil {
		return fmt.Errorf("change for unopened document %s", uri)
	}

	if ss := s.session(uri); ss != nil {
		ss.pipeline.Update(text)
	}
	return nil
}

// --- Feature handlers ---

func (s *Server) handleCompletion(msg *JSONRPCMessage) error {
	var params CompletionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	items := s.getCompletions(context.Background(), params)
	if items == nil {
		items = []CompletionItem{}
	}
	s.sendResponse(msg.ID, &CompletionList{Items: items}, nil)
	return nil
}

func (s *Server) handleInlineSuggestion(msg *JSONRPCMessage) error {
	var params InlineSuggestionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: codeInvalidParams, Message: err.Error()})
		return err
	}

	result := s.getInlineSuggestion(context.Background(), params)
	s.sendResponse(msg.ID, result, nil)
	return nil
}

// --- Helper methods ---

// setup resolves configuration and metadata and builds the analysis engines.
func (s *Server) setup() {
	s.cfg = s.opts.Config
	if s.cfg == nil {
		dir := s.projectRoot
		if dir == "" {
			dir, _ = os.Getwd()
		}
		cfg, err := config.LoadFromDir(dir)
		if err != nil {
			s.logger.Warn("Invalid configuration, using defaults", "error", err)
			cfg = config.Default()
		}
		s.cfg = cfg
	}

	s.provider = s.opts.Provider
	if s.provider == nil {
		s.openStore()
	}

	lintCfg, err := s.cfg.LintSettings()
	if err != nil {
		s.logger.Warn("Invalid lint settings, using defaults", "error", err)
		lintCfg = nil
	}
	s.analyzer = lint.NewAnalyzer(lintCfg)

	var inlineLoader *metadata.Fetcher
	if s.provider != nil {
		inlineLoader = metadata.NewFetcher(s.provider, s.logger)
		s.fieldLoader = metadata.NewFetcher(s.provider, s.logger)
	}
	s.engine = inline.NewEngine(inline.Options{
		Fetcher: inlineLoader,
		Joins:   joins.NewResolver(s.cfg.JoinOverrides()),
		Logger:  s.logger,
	})

	s.loadCaches()
}

// openStore opens the configured metadata store when it exists or a snapshot
// file is configured, importing the snapshot first.
func (s *Server) openStore() {
	path := s.cfg.StorePath
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil && s.cfg.MetadataFile == "" {
		s.logger.Info("Metadata store not found", "path", path)
		return
	}

	st, err := store.Open(path, s.logger)
	if err != nil {
		s.logger.Warn("Failed to open metadata store", "path", path, "error", err)
		return
	}
	if s.cfg.MetadataFile != "" {
		if _, err := st.ImportFile(context.Background(), s.cfg.MetadataFile); err != nil {
			s.logger.Warn("Failed to import metadata snapshot", "path", s.cfg.MetadataFile, "error", err)
		}
	}
	s.store = st
	s.provider = st
}

// loadCaches loads data extensions and shared folders into memory.
func (s *Server) loadCaches() {
	if s.provider == nil {
		return
	}
	ctx := context.Background()

	des, err := s.provider.DataExtensions(ctx)
	if err != nil {
		s.logger.Warn("Failed to load data extensions", "error", err)
		return
	}
	folders, err := s.provider.Folders(ctx)
	if err != nil {
		s.logger.Warn("Failed to load folders", "error", err)
	}

	s.cacheMu.Lock()
	s.dataExtensions = des
	s.sharedFolders = metadata.SharedFolderIDs(folders)
	s.cacheMu.Unlock()

	s.logger.Info("Loaded caches", "data_extensions", len(des), "folders", len(folders))
}

// reloadMetadata refreshes the caches and re-lints every open document, so
// unknown table warnings follow the new metadata.
func (s *Server) reloadMetadata() {
	s.loadCaches()
	for _, uri := range s.documents.List() {
		doc := s.documents.Get(uri)
		ss := s.session(uri)
		if doc == nil || ss == nil {
			continue
		}
		ss.pipeline.Update(doc.Content)
	}
}

// dataExtensionNames returns the table names sent with each worker lint
// request. Nil skips the unknown table check.
func (s *Server) dataExtensionNames() []string {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	if len(s.dataExtensions) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.dataExtensions))
	for _, de := range s.dataExtensions {
		names = append(names, de.Name)
	}
	return names
}

func (s *Server) session(uri string) *session {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.sessions[uri]
}

// openSession starts the diagnostics pipeline of a document, replacing any
// previous one.
func (s *Server) openSession(uri string) *session {
	worker := diagnostics.NewLocalWorker(s.analyzer, s.cfg.Workers, s.logger)
	ss := &session{worker: worker}
	ss.pipeline = diagnostics.NewPipeline(worker, diagnostics.Options{
		Analyzer:       s.analyzer,
		Debounce:       s.cfg.Debounce,
		DataExtensions: s.dataExtensionNames,
		OnUpdate: func(snap diagnostics.Snapshot) {
			if s.session(uri) == ss {
				s.publishSnapshot(uri, snap)
			}
		},
		Logger:    s.logger.With("uri", uri),
		AfterFunc: s.opts.AfterFunc,
	})

	s.sessionMu.Lock()
	old := s.sessions[uri]
	s.sessions[uri] = ss
	s.sessionMu.Unlock()
	if old != nil {
		old.close()
	}
	return ss
}
