package schema

import (
	"net/url"
	"path/filepath"
	"strings"

	"go.lsp.dev/protocol"
	lspuri "go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/dshills/jsonlink/internal/catalog"
)

// UserSchema is one schema entry from user settings. A URI beginning with
// "." or "/" is a local filesystem path resolved against the first workspace
// folder; anything else is forwarded as-is.
type UserSchema struct {
	URI       string   `json:"uri" toml:"uri"`
	FileMatch []string `json:"fileMatch,omitempty" toml:"fileMatch,omitempty"`
}

// Resolver merges built-in, package-contributed and user-configured schema
// associations into the list sent to the server. Contributed schema bodies
// are cached in the injected Store as a side effect.
type Resolver struct {
	store  *Store
	logger *zap.Logger
}

// NewResolver creates a resolver writing contributed schema bodies to store.
func NewResolver(store *Store, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve builds the final ordered association list: built-in catalog first,
// then package contributions, then user entries. The server's own best-match
// selection may be order-sensitive, so built-in-before-user ordering is part
// of the contract. Resolve never fails; malformed units have already been
// filtered out by the catalog loader and manifest scanner.
func (r *Resolver) Resolve(folders []protocol.WorkspaceFolder, user []UserSchema, manifests []Manifest) []catalog.Association {
	out := catalog.BuiltIn(r.logger)

	for _, m := range manifests {
		for _, c := range m.Contributions {
			r.store.Put(c.SchemaID, c.Body)
			out = append(out, catalog.Association{
				URI:       c.SchemaID,
				FileMatch: catalog.EncodeFileMatch(c.FilePatterns),
			})
		}
	}

	return append(out, r.resolveUser(folders, user)...)
}

// resolveUser rewrites filesystem-path URIs to absolute file:// URIs anchored
// at the first workspace folder. Without a workspace folder the entries pass
// through unresolved. User fileMatch globs get the same percent-encoding as
// every other source.
func (r *Resolver) resolveUser(folders []protocol.WorkspaceFolder, user []UserSchema) []catalog.Association {
	out := make([]catalog.Association, 0, len(user))
	base := ""
	if len(folders) > 0 {
		base = folderPath(folders[0])
	}

	for _, u := range user {
		if u.URI == "" {
			r.logger.Warn("user schema entry without uri, skipping")
			continue
		}
		uri := u.URI
		if base != "" {
			switch {
			case strings.HasPrefix(uri, "/"):
				// Already absolute; joining would nest it under the folder.
				uri = string(lspuri.File(filepath.Clean(uri)))
			case strings.HasPrefix(uri, "."):
				uri = string(lspuri.File(filepath.Join(base, uri)))
			}
		}
		out = append(out, catalog.Association{URI: uri, FileMatch: catalog.EncodeFileMatch(u.FileMatch)})
	}
	return out
}

// folderPath converts a workspace folder URI to a local path. Non-file URIs
// yield "" and leave user paths unresolved.
func folderPath(f protocol.WorkspaceFolder) string {
	u, err := url.Parse(f.URI)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	return filepath.FromSlash(u.Path)
}
