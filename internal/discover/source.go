package discover

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/fsutil"
	"github.com/hugo-lorenzo-mato/council/internal/isolation"
)

// Source abstracts file access for the Discovering phase so the same
// neighbor/import search works whether the job is backed by a worktree
// (files on disk) or a snapshot (files materialized from git show on
// demand).
type Source interface {
	// ListDir returns the relative paths of regular files directly inside
	// dir (relative to the repo root; "" for the repo root itself).
	ListDir(ctx context.Context, dir string) ([]string, error)

	// ReadFile returns relPath's content.
	ReadFile(ctx context.Context, relPath string) ([]byte, error)

	// HasFile reports whether relPath exists, without reading it.
	HasFile(ctx context.Context, relPath string) bool
}

// WorktreeSource reads directly from a detached worktree checkout on disk.
type WorktreeSource struct {
	WorkingRoot string
}

var _ Source = (*WorktreeSource)(nil)

func (s *WorktreeSource) ListDir(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.WorkingRoot, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.ErrContext("DISCOVER_LISTDIR_FAILED", "listing directory").WithCause(err).
			WithDetail("dir", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (s *WorktreeSource) ReadFile(_ context.Context, relPath string) ([]byte, error) {
	data, err := fsutil.ReadFileScoped(filepath.Join(s.WorkingRoot, relPath))
	if err != nil {
		return nil, core.ErrContext("DISCOVER_READ_FAILED", "reading file").WithCause(err).
			WithDetail("path", relPath)
	}
	return data, nil
}

func (s *WorktreeSource) HasFile(_ context.Context, relPath string) bool {
	info, err := os.Stat(filepath.Join(s.WorkingRoot, relPath))
	return err == nil && !info.IsDir()
}

// SnapshotSource reads files at a pinned revision via git show, lazily
// materializing each one into the job's snapshot directory as it is
// requested.
type SnapshotSource struct {
	Git          core.GitClient
	Strategy     *isolation.SnapshotStrategy
	SnapshotRoot string
	Rev          string
}

var _ Source = (*SnapshotSource)(nil)

func (s *SnapshotSource) ListDir(ctx context.Context, dir string) ([]string, error) {
	all, err := s.Git.ListTree(ctx, s.Rev, dir)
	if err != nil {
		return nil, core.ErrContext("DISCOVER_LISTTREE_FAILED", "listing tree at revision").WithCause(err).
			WithDetail("dir", dir).WithDetail("rev", s.Rev)
	}
	// ListTree is recursive; keep only direct children of dir.
	var out []string
	for _, path := range all {
		rel := path
		if dir != "" {
			trimmed := path[len(dir):]
			if len(trimmed) == 0 || trimmed[0] != '/' {
				continue
			}
			rel = trimmed[1:]
		}
		if filepath.Dir(rel) != "." && rel != filepath.Base(rel) {
			continue // lives in a deeper subdirectory
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func (s *SnapshotSource) ReadFile(ctx context.Context, relPath string) ([]byte, error) {
	return s.Strategy.Materialize(ctx, s.SnapshotRoot, s.Rev, relPath)
}

func (s *SnapshotSource) HasFile(ctx context.Context, relPath string) bool {
	_, err := s.Git.Show(ctx, s.Rev, relPath)
	return err == nil
}
