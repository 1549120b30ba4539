// Package app ties the pieces together: install, resolve, start the server,
// push associations, and forward commands.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/dshills/jsonlink/internal/catalog"
	"github.com/dshills/jsonlink/internal/config"
	"github.com/dshills/jsonlink/internal/install"
	"github.com/dshills/jsonlink/internal/lsp"
	"github.com/dshills/jsonlink/internal/schema"
)

// App owns the schema store and the language server for one session.
type App struct {
	mu       sync.RWMutex
	settings config.Settings

	installer *install.Installer
	logger    *zap.Logger

	store    *schema.Store
	resolver *schema.Resolver
	provider *schema.ContentProvider

	server *lsp.Server
}

// New creates an inactive App. Call Activate to install and start the server.
func New(settings config.Settings, installer *install.Installer, logger *zap.Logger) *App {
	store := schema.NewStore()
	return &App{
		settings:  settings,
		installer: installer,
		logger:    logger,
		store:     store,
		resolver:  schema.NewResolver(store, logger),
		provider:  schema.NewContentProvider(store, logger),
	}
}

// Activate brings the session up: ensure the server is installed, resolve
// the schema associations, start the server and push them. It completes
// before any server request can be handled, so handlers never observe a
// partially built store.
func (a *App) Activate(ctx context.Context, folders []protocol.WorkspaceFolder) error {
	if err := a.installer.EnsureInstalled(ctx); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	settings := a.Settings()
	manifests, errs := schema.ScanManifests(settings.JSON.PackagesPath)
	for _, err := range errs {
		a.logger.Warn("skipping package manifest", zap.Error(err))
	}

	assocs := a.resolver.Resolve(folders, settings.JSON.UserSchemas, manifests)

	argv, err := a.installer.Command(ctx)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	server := lsp.NewServer(lsp.Config{
		Command:               argv[0],
		Args:                  argv[1:],
		InitializationOptions: settings.JSON.InitializationOptions,
	}, a.logger)
	server.OnRequest("vscode/content", a.handleContent)

	if err := server.Start(ctx, folders); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	// The consuming server expects the association list wrapped in a
	// single-element array. A failed push tears the process down: a server
	// without associations is worse than no server.
	payload := [][]catalog.Association{assocs}
	if err := server.Notify(ctx, "json/schemaAssociations", payload); err != nil {
		_ = server.Shutdown(ctx)
		return fmt.Errorf("activate: push schema associations: %w", err)
	}

	a.server = server
	a.logger.Info("schema associations pushed", zap.Int("count", len(assocs)))
	return nil
}

// Settings returns the current settings snapshot.
func (a *App) Settings() config.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// UpdateSettings swaps in freshly loaded settings. Formatting options take
// effect on the next command; schema associations and initialization options
// are fixed for the life of the running server.
func (a *App) UpdateSettings(s config.Settings) {
	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()
	a.logger.Info("settings updated")
}

// handleContent answers the server's vscode/content request. Params are a
// single-element URI array; the reply is the schema text, or null when the
// URI is unknown.
func (a *App) handleContent(ctx context.Context, params json.RawMessage) (any, error) {
	var uris []string
	if err := json.Unmarshal(params, &uris); err != nil {
		return nil, fmt.Errorf("vscode/content params: %w", err)
	}
	if len(uris) == 0 {
		return nil, fmt.Errorf("vscode/content: no uri")
	}
	content, found, err := a.provider.Provide(uris[0])
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return content, nil
}

// Server returns the running server, or nil before activation.
func (a *App) Server() *lsp.Server {
	return a.server
}

// Shutdown stops the language server if it is running.
func (a *App) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
