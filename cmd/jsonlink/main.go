// Package main is the entry point for the jsonlink command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/dshills/jsonlink/internal/app"
	"github.com/dshills/jsonlink/internal/config"
	"github.com/dshills/jsonlink/internal/install"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	ConfigPath    string
	WorkspacePath string
	SourcePath    string
	LogLevel      string
	Args          []string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	logger, err := newLogger(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	storage, err := settings.Storage()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	installer := install.New(storage, opts.SourcePath, version, logger,
		install.WithReporter(install.StatusReporter{W: os.Stderr}))

	application := app.New(settings, installer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Registered before Activate so a half-activated server is still torn
	// down on the error paths below.
	defer application.Shutdown(context.Background())

	if err := application.Activate(ctx, workspaceFolders(opts.WorkspacePath)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if len(opts.Args) == 0 {
		// No command: stay attached to the server until interrupted or the
		// server exits, picking up settings edits as they happen.
		watcher := config.NewWatcher(opts.ConfigPath, application.UpdateSettings, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("settings watcher stopped", zap.Error(err))
			}
		}()

		select {
		case <-ctx.Done():
			return 0
		case err := <-application.Server().ExitChannel():
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: server exited: %v\n", err)
				return 1
			}
			return 0
		}
	}

	switch opts.Args[0] {
	case "sort":
		if len(opts.Args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: sort needs at least one file")
			return 2
		}
		for _, path := range opts.Args[1:] {
			applied, err := application.SortDocument(ctx, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
			if applied {
				fmt.Printf("sorted %s\n", path)
			} else {
				fmt.Printf("unchanged %s\n", path)
			}
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", opts.Args[0])
		return 2
	}
}

// workspaceFolders builds the folder list sent at initialize. An empty path
// means no workspace, which leaves relative user schema paths untouched.
func workspaceFolders(path string) []protocol.WorkspaceFolder {
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	return []protocol.WorkspaceFolder{{
		URI:  string(uri.File(abs)),
		Name: filepath.Base(abs),
	}}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	cfg.Level = lvl
	return cfg.Build()
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", defaultConfigPath(), "Path to settings file (.json or .toml)")
	flag.StringVar(&opts.ConfigPath, "c", defaultConfigPath(), "Path to settings file (shorthand)")
	flag.StringVar(&opts.WorkspacePath, "workspace", "", "Workspace/project directory")
	flag.StringVar(&opts.WorkspacePath, "w", "", "Workspace/project directory (shorthand)")
	flag.StringVar(&opts.SourcePath, "server-source", defaultSourcePath(), "Bundled language server package directory")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "jsonlink - JSON language server integration\n\n")
		fmt.Fprintf(os.Stderr, "Usage: jsonlink [options] [command]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  sort FILE...   Sort the keys of JSON documents\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  jsonlink                      Run the server until interrupted\n")
		fmt.Fprintf(os.Stderr, "  jsonlink -w ./proj sort a.json  Sort a document\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("jsonlink %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	opts.Args = flag.Args()
	return opts
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "jsonlink.json"
	}
	return filepath.Join(dir, "jsonlink", "jsonlink.json")
}

// defaultSourcePath looks for the bundled server package next to the
// executable.
func defaultSourcePath() string {
	exe, err := os.Executable()
	if err != nil {
		return "language-server"
	}
	return filepath.Join(filepath.Dir(exe), "language-server")
}
