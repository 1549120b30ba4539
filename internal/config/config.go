// Package config provides typed settings for jsonlink.
//
// Settings are loaded once from a JSON or TOML file into an explicit struct
// with documented defaults; there is no dynamic key access. A missing file
// yields the defaults, a malformed file is an error: configuration is
// user-authored and local, so it is the one input that fails loudly instead
// of best-effort.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/dshills/jsonlink/internal/schema"
)

// Settings is the full jsonlink configuration.
type Settings struct {
	JSON   JSONSettings   `json:"json" toml:"json"`
	Editor EditorSettings `json:"editor" toml:"editor"`
}

// JSONSettings configures the JSON language server integration.
type JSONSettings struct {
	// UserSchemas are additional schema associations. Filesystem paths are
	// resolved relative to the first workspace folder.
	UserSchemas []schema.UserSchema `json:"userSchemas" toml:"userSchemas"`

	// InitializationOptions are forwarded verbatim to the server's
	// initialize request.
	InitializationOptions map[string]any `json:"initializationOptions" toml:"initializationOptions"`

	// PackagesPath is the root of the installed-package tree scanned for
	// contributed schema manifests. Empty disables scanning.
	PackagesPath string `json:"packagesPath" toml:"packagesPath"`

	// StoragePath is where the server package and runtime artifacts live.
	// Defaults to a jsonlink directory under the user cache dir.
	StoragePath string `json:"storagePath" toml:"storagePath"`
}

// EditorSettings mirrors the host editor settings that feed the protocol
// formatting options.
type EditorSettings struct {
	// TabSize is the size of a tab in spaces. Default 4.
	TabSize int `json:"tabSize" toml:"tabSize"`

	// TranslateTabsToSpaces prefers spaces over tabs. Default false.
	TranslateTabsToSpaces bool `json:"translateTabsToSpaces" toml:"translateTabsToSpaces"`

	// TrimTrailingWhiteSpaceOnSave historically accepts a bool or a mode
	// string; see TrimMode.
	TrimTrailingWhiteSpaceOnSave TrimMode `json:"trimTrailingWhiteSpaceOnSave" toml:"trimTrailingWhiteSpaceOnSave"`

	// EnsureNewlineAtEOFOnSave drives both insertFinalNewline and
	// trimFinalNewlines. Default false.
	EnsureNewlineAtEOFOnSave bool `json:"ensureNewlineAtEofOnSave" toml:"ensureNewlineAtEofOnSave"`
}

// TrimMode normalizes the bool-or-string trim-trailing-whitespace setting.
// JSON accepts true, false, "none", "all" or "modified"; TOML uses the
// strings. The zero value means unset (disabled).
type TrimMode string

// Trim modes.
const (
	TrimUnset    TrimMode = ""
	TrimNone     TrimMode = "none"
	TrimAll      TrimMode = "all"
	TrimModified TrimMode = "modified"
)

// Enabled reports whether trailing whitespace should be trimmed: anything
// other than unset, "none" or false.
func (m TrimMode) Enabled() bool {
	switch m {
	case TrimUnset, TrimNone, "false":
		return false
	}
	return true
}

// UnmarshalJSON accepts a bool or a mode string.
func (m *TrimMode) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*m = TrimAll
		} else {
			*m = TrimNone
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("trimTrailingWhiteSpaceOnSave: want bool or string: %w", err)
	}
	*m = TrimMode(s)
	return nil
}

// UnmarshalText accepts the mode string form (used by the TOML decoder).
func (m *TrimMode) UnmarshalText(text []byte) error {
	*m = TrimMode(text)
	return nil
}

// Default returns the settings used when no configuration file exists.
func Default() Settings {
	return Settings{
		Editor: EditorSettings{
			TabSize: 4,
		},
	}
}

// Load reads settings from path, which may name a .json or .toml file.
// A missing file returns the defaults. The result is validated.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read settings %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &s); err != nil {
			return Default(), fmt.Errorf("parse settings %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &s); err != nil {
			return Default(), fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	if err := s.Validate(); err != nil {
		return Default(), fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate checks field constraints, normalizing where a default applies.
func (s *Settings) Validate() error {
	if s.Editor.TabSize <= 0 {
		s.Editor.TabSize = Default().Editor.TabSize
	}
	switch s.Editor.TrimTrailingWhiteSpaceOnSave {
	case TrimUnset, TrimNone, TrimAll, TrimModified, "true", "false":
	default:
		return fmt.Errorf("trimTrailingWhiteSpaceOnSave: unknown mode %q", s.Editor.TrimTrailingWhiteSpaceOnSave)
	}
	for i, u := range s.JSON.UserSchemas {
		if u.URI == "" {
			return fmt.Errorf("json.userSchemas[%d]: uri is required", i)
		}
	}
	return nil
}

// Storage returns the configured storage path, or the default location under
// the user cache dir.
func (s Settings) Storage() (string, error) {
	if s.JSON.StoragePath != "" {
		return s.JSON.StoragePath, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve storage path: %w", err)
	}
	return filepath.Join(cache, "jsonlink"), nil
}
