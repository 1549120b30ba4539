// Package catalog provides the built-in schema association catalog bundled
// with jsonlink.
//
// The catalog is an ordered list of associations mapping file-name glob
// patterns to JSON Schema URIs. It is shipped as two data files: a large base
// set sourced from the public schema catalog, and a small addendum set whose
// URIs point at internal schema resources served by the content provider.
// Both files, plus the internal schemas/ resource tree, are embedded in the
// binary.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"
)

//go:embed json-schemas.json json-schemas_extra.json schemas
var bundled embed.FS

// Catalog data files, loaded in this order. The extra set follows the base
// set so its entries sit later in the merged association list.
const (
	baseFile  = "json-schemas.json"
	extraFile = "json-schemas_extra.json"
)

// Association maps file-name glob patterns to a JSON Schema URI.
// An empty FileMatch means the schema applies regardless of file name.
type Association struct {
	URI       string   `json:"uri"`
	FileMatch []string `json:"fileMatch,omitempty"`
}

// Parse decodes one catalog data file. Entries with an empty URI are dropped;
// a malformed file is an error for that file only, never for resolution as a
// whole.
func Parse(data []byte) ([]Association, error) {
	var assocs []Association
	if err := json.Unmarshal(data, &assocs); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	out := make([]Association, 0, len(assocs))
	for _, a := range assocs {
		if a.URI == "" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// BuiltIn returns the bundled associations, base set first, with every
// fileMatch glob percent-encoded for the wire. A corrupt data file is logged
// and contributes nothing; BuiltIn never fails.
func BuiltIn(logger *zap.Logger) []Association {
	return load(bundled, logger)
}

// load is BuiltIn over an arbitrary fs, so tests can inject corrupt files.
func load(fsys fs.FS, logger *zap.Logger) []Association {
	var all []Association
	for _, name := range []string{baseFile, extraFile} {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			logger.Warn("read bundled catalog", zap.String("file", name), zap.Error(err))
			continue
		}
		assocs, err := Parse(data)
		if err != nil {
			logger.Warn("parse bundled catalog", zap.String("file", name), zap.Error(err))
			continue
		}
		all = append(all, assocs...)
	}

	for i := range all {
		all[i].FileMatch = EncodeFileMatch(all[i].FileMatch)
	}
	return all
}

// Resource reads an embedded internal schema resource. The path mirrors the
// URI path of a sublime:// schema URI: "schemas/foo" reads schemas/foo.json.
func Resource(path string) ([]byte, error) {
	return bundled.ReadFile(path + ".json")
}

// EncodeFileMatch percent-encodes each glob so it is safe as a URI component
// while keeping '/', '*' and '!' literal, preserving glob semantics.
func EncodeFileMatch(globs []string) []string {
	if len(globs) == 0 {
		return nil
	}
	out := make([]string, len(globs))
	for i, g := range globs {
		out[i] = encodeGlob(g)
	}
	return out
}

func encodeGlob(glob string) string {
	var b strings.Builder
	b.Grow(len(glob))
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		if isGlobSafe(c) {
			b.WriteByte(c)
		} else {
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

// isGlobSafe reports whether c passes through unencoded: the unreserved URI
// characters plus the three glob metacharacters '/', '*' and '!'.
func isGlobSafe(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '~', '/', '*', '!':
		return true
	}
	return false
}
