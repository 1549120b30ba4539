// Package install provisions the JSON language server under the storage
// directory and resolves the runtime that executes it.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Errors reported by the installer.
var (
	ErrRuntimeNotFound = errors.New("install: deno runtime not found")
	ErrSourceMissing   = errors.New("install: bundled server package not found")
)

const (
	serverDir   = "language-server"
	versionFile = ".version"
)

// artifactRel is the server entry point relative to the server directory.
var artifactRel = filepath.Join("out", "node", "jsonServerMain.js")

// Installer copies the bundled server package into storage and prepares its
// runtime. Install is idempotent per version: a present artifact with a
// matching version marker is left alone.
type Installer struct {
	storage  string
	source   string
	version  string
	runtime  Runtime
	reporter Reporter
	logger   *zap.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithRuntime overrides the runtime resolver.
func WithRuntime(r Runtime) Option {
	return func(i *Installer) { i.runtime = r }
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(i *Installer) { i.reporter = r }
}

// New creates an installer that installs the server package found at source
// into storage. version tags the install; changing it forces a reinstall.
func New(storage, source, version string, logger *zap.Logger, opts ...Option) *Installer {
	i := &Installer{
		storage:  storage,
		source:   source,
		version:  version,
		runtime:  &DenoRuntime{},
		reporter: NopReporter{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ArtifactPath returns the absolute path of the server entry point.
func (i *Installer) ArtifactPath() string {
	return filepath.Join(i.storage, serverDir, artifactRel)
}

// Installed reports whether the current version of the server is in place.
func (i *Installer) Installed() bool {
	if _, err := os.Stat(i.ArtifactPath()); err != nil {
		return false
	}
	tag, err := os.ReadFile(filepath.Join(i.storage, serverDir, versionFile))
	if err != nil {
		return false
	}
	return string(tag) == i.version
}

// EnsureInstalled makes the server artifact available, installing or
// upgrading as needed. The server must never be launched before this
// returns nil.
func (i *Installer) EnsureInstalled(ctx context.Context) error {
	if i.Installed() {
		return nil
	}

	token := uuid.NewString()
	i.reporter.Begin(token, "Installing JSON language server")
	defer i.reporter.End(token)

	runtime, err := i.runtime.Resolve(ctx)
	if err != nil {
		return err
	}
	i.logger.Info("installing language server",
		zap.String("version", i.version),
		zap.String("runtime", runtime),
		zap.String("storage", i.storage))

	dest := filepath.Join(i.storage, serverDir)
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("install: clear %s: %w", dest, err)
	}
	if err := copyTree(i.source, dest); err != nil {
		return err
	}

	// Resolve the server's own dependencies up front so first launch is
	// not slowed by runtime fetches.
	cmd := exec.CommandContext(ctx, runtime, "install")
	cmd.Dir = dest
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("install: deno install: %w: %s", err, out)
	}

	if _, err := os.Stat(i.ArtifactPath()); err != nil {
		return fmt.Errorf("install: artifact missing after install: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dest, versionFile), []byte(i.version), 0o644); err != nil {
		return fmt.Errorf("install: write version marker: %w", err)
	}
	i.logger.Info("language server installed", zap.String("artifact", i.ArtifactPath()))
	return nil
}

// Command returns the argv that launches the installed server over stdio.
func (i *Installer) Command(ctx context.Context) ([]string, error) {
	runtime, err := i.runtime.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return []string{runtime, "run", "-A", "--unstable-detect-cjs", i.ArtifactPath(), "--stdio"}, nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, src)
		}
		return fmt.Errorf("install: stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrSourceMissing, src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("install: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("install: create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("install: copy %s: %w", dst, err)
	}
	return out.Close()
}
