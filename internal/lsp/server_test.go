package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

func TestServerStatusString(t *testing.T) {
	tests := []struct {
		status ServerStatus
		want   string
	}{
		{ServerStatusStopped, "stopped"},
		{ServerStatusStarting, "starting"},
		{ServerStatusInitializing, "initializing"},
		{ServerStatusReady, "ready"},
		{ServerStatusShuttingDown, "shutting down"},
		{ServerStatusError, "error"},
		{ServerStatus(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("ServerStatus(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestServerGuardsBeforeStart(t *testing.T) {
	s := NewServer(Config{Command: "deno"}, zap.NewNop())
	ctx := context.Background()

	if err := s.Call(ctx, "json/sort", nil, nil); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Call error = %v, want ErrNotStarted", err)
	}
	if err := s.Notify(ctx, "json/schemaAssociations", nil); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Notify error = %v, want ErrNotStarted", err)
	}
	if err := s.OpenDocument(ctx, "file:///a.json", "json", "{}"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("OpenDocument error = %v, want ErrNotStarted", err)
	}
	if s.Status() != ServerStatusStopped {
		t.Errorf("Status() = %v, want stopped", s.Status())
	}
}

func TestServerShutdownBeforeStartIsNoop(t *testing.T) {
	s := NewServer(Config{Command: "deno"}, zap.NewNop())
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() before start = %v", err)
	}
}

func TestServerGuardsAfterShutdown(t *testing.T) {
	s := NewServer(Config{Command: "deno"}, zap.NewNop())
	ctx := context.Background()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	if err := s.Call(ctx, "json/sort", nil, nil); !errors.Is(err, ErrShutdown) {
		t.Errorf("Call error = %v, want ErrShutdown", err)
	}
	if err := s.Notify(ctx, "json/schemaAssociations", nil); !errors.Is(err, ErrShutdown) {
		t.Errorf("Notify error = %v, want ErrShutdown", err)
	}
	// A Server is one-shot; restart after shutdown is refused.
	if err := s.Start(ctx, nil); !errors.Is(err, ErrShutdown) {
		t.Errorf("Start error = %v, want ErrShutdown", err)
	}
}

func crashCmd(t *testing.T) string {
	t.Helper()
	for _, p := range []string{"/bin/false", "/usr/bin/false"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Skip("no false(1) on this host")
	return ""
}

func TestMonitorProcessFlagsCrash(t *testing.T) {
	s := NewServer(Config{Command: "deno"}, zap.NewNop())
	cmd := exec.Command(crashCmd(t))
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	s.cmd = cmd

	go s.monitorProcess()

	select {
	case err := <-s.ExitChannel():
		if !errors.Is(err, ErrServerCrashed) {
			t.Errorf("exit error = %v, want ErrServerCrashed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no exit observed")
	}
}

func TestMonitorProcessQuietAfterShutdown(t *testing.T) {
	s := NewServer(Config{Command: "deno"}, zap.NewNop())
	cmd := exec.Command(crashCmd(t))
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	s.cmd = cmd
	s.down.Store(true)

	go s.monitorProcess()

	select {
	case err := <-s.ExitChannel():
		if errors.Is(err, ErrServerCrashed) {
			t.Errorf("exit error = %v, want raw exit error after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no exit observed")
	}
}

func TestStdioConn(t *testing.T) {
	in := strings.NewReader("from server")
	var out bytes.Buffer
	closed := false
	conn := stdioConn{r: in, w: &out, c: closerFunc(func() error { closed = true; return nil })}

	buf := make([]byte, 16)
	n, _ := conn.Read(buf)
	if string(buf[:n]) != "from server" {
		t.Errorf("Read = %q", buf[:n])
	}
	if _, err := conn.Write([]byte("to server")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "to server" {
		t.Errorf("Write = %q", out.String())
	}
	if err := conn.Close(); err != nil || !closed {
		t.Errorf("Close() = %v, closed = %v", err, closed)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestMultiCloserClosesBoth(t *testing.T) {
	var a, b bool
	mc := &multiCloser{
		a: closerFunc(func() error { a = true; return io.ErrClosedPipe }),
		b: closerFunc(func() error { b = true; return nil }),
	}
	if err := mc.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if !a || !b {
		t.Errorf("closed = (%v, %v), want both", a, b)
	}
}

func TestHandleDispatchesRegisteredMethod(t *testing.T) {
	s := NewServer(Config{Command: "deno"}, zap.NewNop())
	s.OnRequest("vscode/content", func(ctx context.Context, params json.RawMessage) (any, error) {
		var uris []string
		if err := json.Unmarshal(params, &uris); err != nil {
			return nil, err
		}
		return "content-for-" + uris[0], nil
	})

	req, err := jsonrpc2.NewCall(jsonrpc2.NewNumberID(1), "vscode/content", []string{"sublime://schemas/x"})
	if err != nil {
		t.Fatal(err)
	}

	var gotResult any
	var gotErr error
	replier := func(ctx context.Context, result any, err error) error {
		gotResult, gotErr = result, err
		return nil
	}
	if err := s.handle(context.Background(), replier, req); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if gotErr != nil {
		t.Fatalf("reply error = %v", gotErr)
	}
	if gotResult != "content-for-sublime://schemas/x" {
		t.Errorf("reply result = %v", gotResult)
	}
}

func TestHandleUnregisteredMethod(t *testing.T) {
	s := NewServer(Config{Command: "deno"}, zap.NewNop())

	req, err := jsonrpc2.NewCall(jsonrpc2.NewNumberID(2), "workspace/unknown", nil)
	if err != nil {
		t.Fatal(err)
	}

	var gotErr error
	replier := func(ctx context.Context, result any, err error) error {
		gotErr = err
		return nil
	}
	if err := s.handle(context.Background(), replier, req); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if !errors.Is(gotErr, jsonrpc2.ErrMethodNotFound) {
		t.Errorf("reply error = %v, want ErrMethodNotFound", gotErr)
	}
}

func TestHandleForwardsHandlerError(t *testing.T) {
	s := NewServer(Config{Command: "deno"}, zap.NewNop())
	want := errors.New("schema read failed")
	s.OnRequest("vscode/content", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, want
	})

	req, err := jsonrpc2.NewCall(jsonrpc2.NewNumberID(3), "vscode/content", []string{"sublime://schemas/x"})
	if err != nil {
		t.Fatal(err)
	}

	var gotErr error
	replier := func(ctx context.Context, result any, err error) error {
		gotErr = err
		return nil
	}
	if err := s.handle(context.Background(), replier, req); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if !errors.Is(gotErr, want) {
		t.Errorf("reply error = %v, want %v", gotErr, want)
	}
}
