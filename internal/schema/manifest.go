package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// ManifestName is the file name packages use to declare contributions.
const ManifestName = "sublime-package.json"

// contributedScheme prefixes synthetic URIs assigned to contributed schema
// bodies that carry no $id of their own.
const contributedScheme = "sublime://contributed/"

// Contribution is one schema a package manifest contributes: an inline schema
// body applied to files matching the given patterns.
type Contribution struct {
	// FilePatterns are the raw (unencoded) globs from the manifest.
	FilePatterns []string

	// SchemaID identifies the schema body. Taken from the body's $id,
	// synthesized from the package name when the body has none.
	SchemaID string

	// Body is the schema body serialized as compact JSON. When the ID was
	// synthesized it is also injected into the body as $id.
	Body string
}

// Manifest is one parsed package manifest.
type Manifest struct {
	// Package is the name of the package directory the manifest came from.
	Package string

	Contributions []Contribution
}

// ParseManifest parses a single manifest. pkg names the owning package and
// seeds synthetic schema IDs. A manifest that is not valid JSON is an error;
// individual entries without a schema body are skipped.
func ParseManifest(pkg string, data []byte) (Manifest, error) {
	if !gjson.ValidBytes(data) {
		return Manifest{}, fmt.Errorf("manifest %s: invalid JSON", pkg)
	}

	m := Manifest{Package: pkg}
	entries := gjson.GetBytes(data, "contributions.settings")
	if !entries.Exists() {
		return m, nil
	}

	for i, entry := range entries.Array() {
		body := entry.Get("schema")
		if !body.Exists() || !body.IsObject() {
			continue
		}

		raw := []byte(body.Raw)
		id := body.Get("$id").String()
		if id == "" {
			// The body is cached under its URI, so it needs one even when the
			// package author left $id out.
			id = fmt.Sprintf("%s%s/%d", contributedScheme, pkg, i)
			var err error
			raw, err = sjson.SetBytes(raw, "$id", id)
			if err != nil {
				return Manifest{}, fmt.Errorf("manifest %s: assign schema id: %w", pkg, err)
			}
		}

		var patterns []string
		for _, p := range entry.Get("file_patterns").Array() {
			patterns = append(patterns, p.String())
		}

		m.Contributions = append(m.Contributions, Contribution{
			FilePatterns: patterns,
			SchemaID:     id,
			Body:         string(pretty.Ugly(raw)),
		})
	}
	return m, nil
}

// ScanManifests walks the installed-package tree under root looking for
// manifests one level deep (root/<package>/sublime-package.json). It returns
// every manifest that parsed alongside the errors for those that did not;
// the caller logs the errors and proceeds with the successes.
func ScanManifests(root string) ([]Manifest, []error) {
	if root == "" {
		return nil, nil
	}

	dirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("scan packages: %w", err)}
	}

	var (
		manifests []Manifest
		errs      []error
	)
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(root, d.Name(), ManifestName)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		m, err := ParseManifest(d.Name(), data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		manifests = append(manifests, m)
	}
	return manifests, errs
}
