package verify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/council/internal/config"
)

func TestDetector_RustManifest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]"), 0o644); err != nil {
		t.Fatal(err)
	}

	det := NewDetector(time.Minute)
	commands := det.Detect(dir, nil)
	if len(commands) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(commands))
	}
	if commands[0].Argv[0] != "cargo" {
		t.Errorf("unexpected command: %+v", commands[0])
	}
}

func TestDetector_NoMarkersFallsBackToEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	det := NewDetector(time.Minute)
	commands := det.Detect(dir, nil)
	if len(commands) != 0 {
		t.Errorf("expected no commands, got %+v", commands)
	}
}

func TestDetector_OverrideBypassesDetection(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]"), 0o644); err != nil {
		t.Fatal(err)
	}

	override := []config.VerifyCommand{{Name: "custom", Argv: []string{"make", "check"}, TimeoutSeconds: 30}}
	det := NewDetector(time.Minute)
	commands := det.Detect(dir, override)
	if len(commands) != 1 || commands[0].Name != "custom" {
		t.Errorf("expected override to win, got %+v", commands)
	}
}

func TestDetector_CachesWithinTTL(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]"), 0o644); err != nil {
		t.Fatal(err)
	}

	det := NewDetector(time.Minute)
	first := det.Detect(dir, nil)

	// Remove the marker file; a cache hit should still return the
	// original result within the TTL window.
	if err := os.Remove(filepath.Join(dir, "Cargo.toml")); err != nil {
		t.Fatal(err)
	}
	second := det.Detect(dir, nil)

	if len(second) != len(first) {
		t.Errorf("expected cached result, got %+v vs %+v", first, second)
	}
}

func TestDetector_GoModDetected(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x"), 0o644); err != nil {
		t.Fatal(err)
	}

	det := NewDetector(time.Minute)
	commands := det.Detect(dir, nil)
	if len(commands) != 2 || commands[0].Name != "go-build" {
		t.Errorf("unexpected commands: %+v", commands)
	}
}
