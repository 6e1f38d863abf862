package discover

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
)

type fakeSource struct {
	files map[string]string
}

func (f *fakeSource) ListDir(_ context.Context, dir string) ([]string, error) {
	var out []string
	for path := range f.files {
		if filepath.Dir(path) == dir || (dir == "" && filepath.Dir(path) == ".") {
			out = append(out, path)
		}
	}
	return out, nil
}

func (f *fakeSource) ReadFile(_ context.Context, relPath string) ([]byte, error) {
	content, ok := f.files[relPath]
	if !ok {
		return nil, core.ErrContext("NOT_FOUND", "no such file")
	}
	return []byte(content), nil
}

func (f *fakeSource) HasFile(_ context.Context, relPath string) bool {
	_, ok := f.files[relPath]
	return ok
}

func defaultLimits() config.Limits {
	return config.Limits{MaxFilesTotal: 40, MaxBytesPerFile: 80_000, MaxTotalBytes: 2 * 1024 * 1024}
}

func TestBuilder_GenericFallbackNeighbors(t *testing.T) {
	t.Parallel()
	src := &fakeSource{files: map[string]string{
		"src/lib.go":    "package src",
		"src/helper.go": "package src",
		"src/notes.md":  "not go",
	}}
	b := NewBuilder(defaultLimits())
	bundle, warnings := b.Build(context.Background(), src, "src/lib.go", false)

	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(bundle.Files) != 2 {
		t.Fatalf("expected target + 1 neighbor, got %d: %+v", len(bundle.Files), bundle.Files)
	}
	if bundle.Files[0].Path != "src/lib.go" || bundle.Files[0].Reason != core.ReasonTarget {
		t.Errorf("expected target first, got %+v", bundle.Files[0])
	}
	if bundle.Files[1].Path != "src/helper.go" || bundle.Files[1].Reason != core.ReasonNeighbor {
		t.Errorf("expected helper.go as neighbor, got %+v", bundle.Files[1])
	}
}

func TestBuilder_RustModuleCandidates(t *testing.T) {
	t.Parallel()
	src := &fakeSource{files: map[string]string{
		"src/lib.rs":   "mod parser;\nuse crate::util::helpers;\nfn main() {}\n",
		"src/parser.rs": "pub fn parse() {}",
		"util/helpers.rs": "pub fn help() {}",
	}}
	b := NewBuilder(defaultLimits())
	bundle, _ := b.Build(context.Background(), src, "src/lib.rs", true)

	paths := map[string]core.InclusionReason{}
	for _, f := range bundle.Files {
		paths[f.Path] = f.Reason
	}
	if paths["src/lib.rs"] != core.ReasonTarget {
		t.Errorf("expected target reason for lib.rs")
	}
	if paths["src/parser.rs"] != core.ReasonImport {
		t.Errorf("expected parser.rs included as import, got bundle %+v", bundle.Files)
	}
	if paths["util/helpers.rs"] != core.ReasonImport {
		t.Errorf("expected helpers.rs included as import, got bundle %+v", bundle.Files)
	}
}

func TestBuilder_PerFileByteCapTruncates(t *testing.T) {
	t.Parallel()
	big := strings.Repeat("x", 100)
	src := &fakeSource{files: map[string]string{"f.go": big}}
	limits := defaultLimits()
	limits.MaxBytesPerFile = 10
	b := NewBuilder(limits)
	bundle, _ := b.Build(context.Background(), src, "f.go", false)

	if len(bundle.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(bundle.Files))
	}
	if !bundle.Files[0].Truncated {
		t.Error("expected truncated=true")
	}
	if len(bundle.Files[0].Content) != 10 {
		t.Errorf("expected content capped to 10 bytes, got %d", len(bundle.Files[0].Content))
	}
}

func TestBuilder_FileCountCapWarns(t *testing.T) {
	t.Parallel()
	src := &fakeSource{files: map[string]string{
		"a.go": "1", "b.go": "2", "c.go": "3",
	}}
	limits := defaultLimits()
	limits.MaxFilesTotal = 2
	b := NewBuilder(limits)
	bundle, warnings := b.Build(context.Background(), src, "a.go", false)

	if len(bundle.Files) != 2 {
		t.Fatalf("expected cap of 2 files, got %d", len(bundle.Files))
	}
	if len(warnings) == 0 {
		t.Error("expected a warning about the dropped candidate")
	}
}

func TestBuilder_TargetReadErrorWarns(t *testing.T) {
	t.Parallel()
	src := &fakeSource{files: map[string]string{}}
	b := NewBuilder(defaultLimits())
	bundle, warnings := b.Build(context.Background(), src, "missing.go", false)

	if len(bundle.Files) != 0 {
		t.Errorf("expected empty bundle, got %+v", bundle.Files)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
}
