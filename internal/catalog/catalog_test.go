package catalog

import (
	"strings"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
)

func TestEncodeFileMatch(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "/package.json", "/package.json"},
		{"wildcard kept", "/*.task.json", "/*.task.json"},
		{"negation kept", "/!(exclude).json", "/!%28exclude%29.json"},
		{"double star", "/**/pipeline.json", "/**/pipeline.json"},
		{"space encoded", "/my file.json", "/my%20file.json"},
		{"braces encoded", "/{a,b}.json", "/%7Ba%2Cb%7D.json"},
		{"unreserved kept", "/a-b_c.d~e", "/a-b_c.d~e"},
		{"percent encoded", "/100%.json", "/100%25.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeFileMatch([]string{tt.in})
			if got[0] != tt.want {
				t.Errorf("EncodeFileMatch(%q) = %q, want %q", tt.in, got[0], tt.want)
			}
		})
	}
}

func TestEncodeFileMatchNil(t *testing.T) {
	if got := EncodeFileMatch(nil); got != nil {
		t.Errorf("EncodeFileMatch(nil) = %v, want nil", got)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`[
		{"uri": "https://example.com/a.json", "fileMatch": ["/a.json"]},
		{"uri": "https://example.com/b.json"},
		{"fileMatch": ["/orphan.json"]}
	]`)

	assocs, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(assocs) != 2 {
		t.Fatalf("Parse() returned %d associations, want 2 (empty-URI entry dropped)", len(assocs))
	}
	if assocs[0].URI != "https://example.com/a.json" {
		t.Errorf("first URI = %q", assocs[0].URI)
	}
	if assocs[1].FileMatch != nil {
		t.Errorf("catch-all entry has fileMatch %v, want none", assocs[1].FileMatch)
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse([]byte(`{not json`)); err == nil {
		t.Fatal("Parse() of malformed data returned nil error")
	}
}

func TestBuiltIn(t *testing.T) {
	assocs := BuiltIn(zap.NewNop())
	if len(assocs) == 0 {
		t.Fatal("BuiltIn() returned no associations")
	}

	var sawInternal bool
	for _, a := range assocs {
		if a.URI == "" {
			t.Fatal("BuiltIn() produced an association with empty URI")
		}
		if strings.HasPrefix(a.URI, "sublime://schemas/") {
			sawInternal = true
		}
		for _, fm := range a.FileMatch {
			for i := 0; i < len(fm); i++ {
				if !isGlobSafe(fm[i]) && fm[i] != '%' {
					t.Errorf("unencoded byte %q in fileMatch %q (uri %s)", fm[i], fm, a.URI)
				}
			}
		}
	}
	if !sawInternal {
		t.Error("BuiltIn() missing internal schema entries from the extra set")
	}
}

// A corrupt base file must not discard the extra file's entries.
func TestLoadCorruptBase(t *testing.T) {
	fsys := fstest.MapFS{
		baseFile:  {Data: []byte(`{corrupt`)},
		extraFile: {Data: []byte(`[{"uri": "sublime://schemas/sublime-package", "fileMatch": ["/sublime-package.json"]}]`)},
	}

	assocs := load(fsys, zap.NewNop())
	if len(assocs) != 1 {
		t.Fatalf("load() returned %d associations, want 1 from the extra file", len(assocs))
	}
	if assocs[0].URI != "sublime://schemas/sublime-package" {
		t.Errorf("surviving URI = %q", assocs[0].URI)
	}
}

func TestResource(t *testing.T) {
	data, err := Resource("schemas/sublime-package")
	if err != nil {
		t.Fatalf("Resource() error = %v", err)
	}
	if !strings.Contains(string(data), `"$id"`) {
		t.Error("internal schema resource missing $id")
	}

	if _, err := Resource("schemas/no-such-schema"); err == nil {
		t.Error("Resource() of missing schema returned nil error")
	}
}
