package isolation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotStrategy_PrepareCreatesDir(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	strategy := NewSnapshotStrategy(&fakeGitClient{})

	root, err := strategy.Prepare(context.Background(), base, "HEAD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected snapshot dir to exist at %s", root)
	}
}

func TestSnapshotStrategy_MaterializeWritesRelativeLayout(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	git := &fakeGitClient{showContent: map[string][]byte{
		"src/pkg/a.go": []byte("package pkg"),
	}}
	strategy := NewSnapshotStrategy(git)

	root, err := strategy.Prepare(context.Background(), base, "HEAD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := strategy.Materialize(context.Background(), root, "HEAD", "src/pkg/a.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "package pkg" {
		t.Errorf("content = %q", content)
	}

	written, err := os.ReadFile(filepath.Join(root, "src", "pkg", "a.go"))
	if err != nil {
		t.Fatalf("expected file written at relative path: %v", err)
	}
	if string(written) != "package pkg" {
		t.Errorf("written content = %q", written)
	}
}

func TestSnapshotStrategy_MaterializeRejectsTraversal(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	strategy := NewSnapshotStrategy(&fakeGitClient{})
	root, _ := strategy.Prepare(context.Background(), base, "HEAD")

	_, err := strategy.Materialize(context.Background(), root, "HEAD", "../../etc/passwd")
	if err == nil {
		t.Fatal("expected error for traversal path")
	}
}

func TestSnapshotStrategy_Cleanup(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	strategy := NewSnapshotStrategy(&fakeGitClient{})
	root, _ := strategy.Prepare(context.Background(), base, "HEAD")

	if err := strategy.Cleanup(context.Background(), root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Error("expected snapshot dir to be removed")
	}
}
