package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jsonlink.json")
	if err := os.WriteFile(path, []byte(`{"editor": {"tabSize": 4}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan Settings, 1)
	w := NewWatcher(path, func(s Settings) {
		select {
		case changed <- s:
		default:
		}
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watcher time to establish the watch before writing.
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"editor": {"tabSize": 2}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-changed:
		if s.Editor.TabSize != 2 {
			t.Errorf("reloaded TabSize = %d, want 2", s.Editor.TabSize)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatcherKeepsPreviousOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jsonlink.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan Settings, 1)
	w := NewWatcher(path, func(s Settings) { changed <- s }, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{broken`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-changed:
		t.Errorf("onChange fired for malformed settings: %+v", s)
	case <-time.After(1 * time.Second):
		// Expected: malformed reload is dropped.
	}
}
