package schema

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/dshills/jsonlink/internal/catalog"
)

// InternalScheme prefixes URIs resolved against bundled resources instead of
// the network.
const InternalScheme = "sublime://"

// ResourceReader reads a bundled schema resource by path ("schemas/foo").
type ResourceReader func(path string) ([]byte, error)

// ContentProvider answers the server's vscode/content requests: given a
// schema URI, produce the schema's JSON text. It only ever serves cached
// (manifest-embedded) and internal sublime:// schemas; remote URIs are the
// server's own business and report as not found here.
type ContentProvider struct {
	store     *Store
	resources ResourceReader
	logger    *zap.Logger
}

// NewContentProvider creates a provider backed by store and the bundled
// resource tree.
func NewContentProvider(store *Store, logger *zap.Logger) *ContentProvider {
	return &ContentProvider{store: store, resources: catalog.Resource, logger: logger}
}

// NewContentProviderWithResources creates a provider with a custom resource
// reader.
func NewContentProviderWithResources(store *Store, resources ResourceReader, logger *zap.Logger) *ContentProvider {
	return &ContentProvider{store: store, resources: resources, logger: logger}
}

// Provide resolves a schema URI to its content. found is false for URIs this
// provider does not serve, which is a normal outcome, not an error. A
// malformed or unreadable internal resource is an error and is not cached.
func (p *ContentProvider) Provide(uri string) (content string, found bool, err error) {
	if c, ok := p.store.Get(uri); ok {
		return c, true, nil
	}

	if rest, ok := strings.CutPrefix(uri, InternalScheme); ok {
		if domain, _, _ := strings.Cut(rest, "/"); domain == "schemas" {
			// Internal schema: 1:1 URI path to resource path mapping.
			data, err := p.resources(rest)
			if err != nil {
				return "", false, fmt.Errorf("read internal schema %q: %w", uri, err)
			}
			if !gjson.ValidBytes(data) {
				return "", false, fmt.Errorf("internal schema %q: invalid JSON", uri)
			}
			c := string(pretty.Ugly(data))
			p.store.Put(uri, c)
			return c, true, nil
		}
	}

	p.logger.Warn("unknown schema URI", zap.String("uri", uri))
	return "", false, nil
}
