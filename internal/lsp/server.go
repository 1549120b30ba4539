package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// ServerStatus indicates the current state of the server.
type ServerStatus int

const (
	ServerStatusStopped ServerStatus = iota
	ServerStatusStarting
	ServerStatusInitializing
	ServerStatusReady
	ServerStatusShuttingDown
	ServerStatusError
)

// String returns a human-readable status name.
func (s ServerStatus) String() string {
	switch s {
	case ServerStatusStopped:
		return "stopped"
	case ServerStatusStarting:
		return "starting"
	case ServerStatusInitializing:
		return "initializing"
	case ServerStatusReady:
		return "ready"
	case ServerStatusShuttingDown:
		return "shutting down"
	case ServerStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Config defines how to start the language server.
type Config struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// WorkDir is the working directory (defaults to the first workspace
	// folder).
	WorkDir string

	// InitializationOptions are sent during initialize.
	InitializationOptions any

	// Timeout for requests (default: 30s).
	Timeout time.Duration
}

// RequestHandler handles a request the server sends to the client. The
// returned value is the reply result.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// stdioConn connects Read from process stdout and Write to process stdin.
type stdioConn struct {
	r io.Reader
	w io.Writer
	c io.Closer
}

func (s stdioConn) Read(p []byte) (n int, err error)  { return s.r.Read(p) }
func (s stdioConn) Write(p []byte) (n int, err error) { return s.w.Write(p) }
func (s stdioConn) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

type multiCloser struct {
	a, b io.Closer
}

func (m *multiCloser) Close() error {
	_ = m.a.Close()
	_ = m.b.Close()
	return nil
}

var _ io.ReadWriteCloser = stdioConn{}

// Server is a connection to a single language server process.
type Server struct {
	mu sync.Mutex

	config Config
	logger *zap.Logger

	// handlers dispatch server-to-client requests and notifications.
	// Registered before Start; read-only afterwards.
	handlers map[string]RequestHandler

	cmd  *exec.Cmd
	conn jsonrpc2.Conn

	status atomic.Int32

	// down latches once Shutdown is called; a Server is one-shot.
	down atomic.Bool

	capabilities protocol.ServerCapabilities

	documents map[protocol.DocumentURI]int32

	folders []protocol.WorkspaceFolder
	cancel  context.CancelFunc
	exitCh  chan error
}

// NewServer creates a server instance (not yet started).
func NewServer(config Config, logger *zap.Logger) *Server {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	s := &Server{
		config:    config,
		logger:    logger,
		handlers:  make(map[string]RequestHandler),
		documents: make(map[protocol.DocumentURI]int32),
		exitCh:    make(chan error, 1),
	}
	s.status.Store(int32(ServerStatusStopped))
	return s
}

// OnRequest registers a handler for a server-to-client method. Must be
// called before Start.
func (s *Server) OnRequest(method string, handler RequestHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// Start launches the server process and performs the initialize handshake.
func (s *Server) Start(ctx context.Context, folders []protocol.WorkspaceFolder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.down.Load() {
		return ErrShutdown
	}
	if s.Status() != ServerStatusStopped {
		return ErrAlreadyStarted
	}
	s.status.Store(int32(ServerStatusStarting))
	s.folders = folders

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if err := s.startProcess(runCtx); err != nil {
		s.status.Store(int32(ServerStatusError))
		cancel()
		return err
	}

	s.conn.Go(runCtx, s.handle)
	go s.monitorProcess()

	s.status.Store(int32(ServerStatusInitializing))
	if err := s.initialize(ctx); err != nil {
		s.status.Store(int32(ServerStatusError))
		s.stopProcess()
		cancel()
		return fmt.Errorf("initialize: %w", err)
	}

	s.status.Store(int32(ServerStatusReady))
	s.logger.Info("language server ready", zap.String("command", s.config.Command))
	return nil
}

func (s *Server) startProcess(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.config.Command, s.config.Args...)
	cmd.Env = os.Environ()
	for k, v := range s.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if s.config.WorkDir != "" {
		cmd.Dir = s.config.WorkDir
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("start %s: %w", s.config.Command, err)
	}

	s.cmd = cmd
	s.conn = jsonrpc2.NewConn(jsonrpc2.NewStream(stdioConn{
		r: stdout,
		w: stdin,
		c: &multiCloser{stdin, stdout},
	}))
	return nil
}

// handle dispatches server-to-client traffic to registered handlers.
func (s *Server) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	handler, ok := s.handlers[req.Method()]
	if !ok {
		s.logger.Debug("unhandled server message", zap.String("method", req.Method()))
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
	result, err := handler(ctx, req.Params())
	return reply(ctx, result, err)
}

func (s *Server) monitorProcess() {
	err := s.cmd.Wait()
	if err != nil && !s.down.Load() {
		s.logger.Warn("language server exited", zap.Error(err))
		err = fmt.Errorf("%w: %v", ErrServerCrashed, err)
	}
	select {
	case s.exitCh <- err:
	default:
	}
}

// guard reports why the server cannot take traffic; nil when ready.
func (s *Server) guard() error {
	switch s.Status() {
	case ServerStatusReady:
		return nil
	case ServerStatusShuttingDown:
		return ErrShutdown
	case ServerStatusStopped:
		if s.down.Load() {
			return ErrShutdown
		}
		return ErrNotStarted
	default:
		return ErrServerNotReady
	}
}

func (s *Server) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var rootURI protocol.DocumentURI
	if len(s.folders) > 0 {
		rootURI = protocol.DocumentURI(s.folders[0].URI)
	}
	params := protocol.InitializeParams{
		ProcessID:             int32(os.Getpid()),
		RootURI:               rootURI,
		Capabilities:          protocol.ClientCapabilities{},
		InitializationOptions: s.config.InitializationOptions,
		WorkspaceFolders:      s.folders,
	}

	var result protocol.InitializeResult
	if _, err := s.conn.Call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return err
	}
	s.capabilities = result.Capabilities

	return s.conn.Notify(ctx, protocol.MethodInitialized, protocol.InitializedParams{})
}

// Call sends a request and decodes the response into result. Unless the
// server is ready it fails with ErrNotStarted, ErrShutdown or
// ErrServerNotReady, matching the lifecycle phase.
func (s *Server) Call(ctx context.Context, method string, params, result any) error {
	if err := s.guard(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	_, err := s.conn.Call(ctx, method, params, result)
	return err
}

// Notify sends a notification, under the same lifecycle guard as Call.
func (s *Server) Notify(ctx context.Context, method string, params any) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.conn.Notify(ctx, method, params)
}

// OpenDocument notifies the server that a document was opened.
func (s *Server) OpenDocument(ctx context.Context, uri protocol.DocumentURI, languageID protocol.LanguageIdentifier, content string) error {
	if err := s.guard(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.documents[uri]; exists {
		s.mu.Unlock()
		return ErrDocumentAlreadyOpen
	}
	s.documents[uri] = 1
	s.mu.Unlock()

	return s.conn.Notify(ctx, protocol.MethodTextDocumentDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    1,
			Text:       content,
		},
	})
}

// CloseDocument notifies the server that a document was closed.
func (s *Server) CloseDocument(ctx context.Context, uri protocol.DocumentURI) error {
	if err := s.guard(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.documents[uri]; !exists {
		s.mu.Unlock()
		return ErrDocumentNotOpen
	}
	delete(s.documents, uri)
	s.mu.Unlock()

	return s.conn.Notify(ctx, protocol.MethodTextDocumentDidClose, protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
}

// IsDocumentOpen reports whether the document is open.
func (s *Server) IsDocumentOpen(uri protocol.DocumentURI) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.documents[uri]
	return exists
}

// Capabilities returns the capabilities announced at initialize.
func (s *Server) Capabilities() protocol.ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

// Shutdown gracefully stops the server: shutdown request, exit notification,
// then process teardown. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.down.Store(true)
	status := s.Status()
	if status == ServerStatusStopped || status == ServerStatusShuttingDown {
		return nil
	}
	s.status.Store(int32(ServerStatusShuttingDown))

	if s.conn != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, _ = s.conn.Call(shutdownCtx, protocol.MethodShutdown, nil, nil)
		_ = s.conn.Notify(shutdownCtx, protocol.MethodExit, nil)
		cancel()
	}

	s.stopProcess()
	if s.cancel != nil {
		s.cancel()
	}
	s.status.Store(int32(ServerStatusStopped))
	return nil
}

func (s *Server) stopProcess() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// Status returns the current server status.
func (s *Server) Status() ServerStatus {
	return ServerStatus(s.status.Load())
}

// ExitChannel receives the process exit error (nil for a clean exit).
func (s *Server) ExitChannel() <-chan error {
	return s.exitCh
}
