package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/dshills/jsonlink/internal/config"
	"github.com/dshills/jsonlink/internal/lsp"
)

// sortParams is the json/sort request body.
type sortParams struct {
	URI     uri.URI                    `json:"uri"`
	Options protocol.FormattingOptions `json:"options"`
}

// SortDocument asks the server to sort the JSON document at path and writes
// the result back. Without a ready server it is a silent no-op, reporting
// applied=false. The write is atomic: edits are validated against the
// current content and the file replaced in one rename.
func (a *App) SortDocument(ctx context.Context, path string) (applied bool, err error) {
	if a.server == nil || a.server.Status() != lsp.ServerStatusReady {
		return false, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("sort %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return false, fmt.Errorf("sort %s: %w", path, err)
	}

	docURI := uri.File(abs)
	if err := a.server.OpenDocument(ctx, protocol.DocumentURI(docURI), protocol.JSONLanguage, string(data)); err != nil {
		return false, fmt.Errorf("sort %s: %w", path, err)
	}
	defer func() {
		if cerr := a.server.CloseDocument(ctx, protocol.DocumentURI(docURI)); cerr != nil && err == nil {
			err = fmt.Errorf("sort %s: %w", path, cerr)
		}
	}()

	var edits []protocol.TextEdit
	params := sortParams{URI: docURI, Options: config.FormattingOptions(a.Settings())}
	if err := a.server.Call(ctx, "json/sort", params, &edits); err != nil {
		return false, fmt.Errorf("sort %s: %w", path, err)
	}
	if len(edits) == 0 {
		return false, nil
	}

	updated, err := ApplyTextEdits(string(data), edits)
	if err != nil {
		return false, fmt.Errorf("sort %s: %w", path, err)
	}
	if updated == string(data) {
		return false, nil
	}
	if err := writeFileAtomic(abs, []byte(updated)); err != nil {
		return false, fmt.Errorf("sort %s: %w", path, err)
	}
	a.logger.Info("document sorted", zap.String("path", path))
	return true, nil
}

// writeFileAtomic replaces path with data via a same-directory temp file and
// rename, preserving the original mode.
func writeFileAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(info.Mode()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
