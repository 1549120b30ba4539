package lsp

import "errors"

// Standard errors returned by the LSP client.
var (
	// ErrNotStarted indicates the server has not been started.
	ErrNotStarted = errors.New("lsp server not started")

	// ErrAlreadyStarted indicates the server is already running.
	ErrAlreadyStarted = errors.New("lsp server already started")

	// ErrShutdown indicates the server has been shut down.
	ErrShutdown = errors.New("lsp server shut down")

	// ErrServerNotReady indicates the server is not ready to handle requests.
	ErrServerNotReady = errors.New("server not ready")

	// ErrServerCrashed indicates the server process terminated unexpectedly.
	ErrServerCrashed = errors.New("server crashed")

	// ErrDocumentNotOpen indicates the document is not open.
	ErrDocumentNotOpen = errors.New("document not open")

	// ErrDocumentAlreadyOpen indicates the document is already open.
	ErrDocumentAlreadyOpen = errors.New("document already open")
)
