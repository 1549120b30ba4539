package install

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
)

// Runtime resolves the executable that runs the server artifact.
type Runtime interface {
	Resolve(ctx context.Context) (string, error)
}

// DenoRuntime finds a Deno executable. Resolution order: the configured
// path, a pinned install under the storage directory, then PATH. The
// runtime itself is expected to be provisioned by the host; it is not
// downloaded here.
type DenoRuntime struct {
	// Path, when set, is used without further lookup.
	Path string

	// StorageDir optionally names a directory whose deno/ subdirectory
	// holds a pinned runtime.
	StorageDir string
}

// Resolve returns the path of the Deno executable, or ErrRuntimeNotFound.
func (r *DenoRuntime) Resolve(ctx context.Context) (string, error) {
	if r.Path != "" {
		if _, err := os.Stat(r.Path); err != nil {
			return "", fmt.Errorf("%w: configured path %s: %v", ErrRuntimeNotFound, r.Path, err)
		}
		return r.Path, nil
	}
	if r.StorageDir != "" {
		pinned := filepath.Join(r.StorageDir, "deno", exeName())
		if _, err := os.Stat(pinned); err == nil {
			return pinned, nil
		}
	}
	path, err := exec.LookPath("deno")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRuntimeNotFound, err)
	}
	return path, nil
}

func exeName() string {
	if goruntime.GOOS == "windows" {
		return "deno.exe"
	}
	return "deno"
}
