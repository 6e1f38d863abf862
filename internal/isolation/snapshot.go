package isolation

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// SnapshotStrategy backs review-mode jobs: rather than a full worktree
// checkout, individual files are read at rev via git show and written into
// a scratch directory preserving their relative layout. Cheaper than a
// worktree; sufficient for read-only critique.
type SnapshotStrategy struct {
	git core.GitClient
}

// NewSnapshotStrategy returns a Strategy backed by git.
func NewSnapshotStrategy(git core.GitClient) *SnapshotStrategy {
	return &SnapshotStrategy{git: git}
}

var _ Strategy = (*SnapshotStrategy)(nil)

// Prepare creates an empty scratch directory at dir/"snapshot". Files are
// pulled into it lazily by Materialize as the Discovering phase requests
// them; Prepare itself does no git I/O.
func (s *SnapshotStrategy) Prepare(_ context.Context, dir, _ string) (string, error) {
	root := filepath.Join(dir, "snapshot")
	if err := os.MkdirAll(root, 0o750); err != nil {
		return "", core.ErrIsolation("SNAPSHOT_DIR_FAILED", "creating snapshot directory").WithCause(err)
	}
	return root, nil
}

// Cleanup removes the snapshot directory and everything under it.
func (s *SnapshotStrategy) Cleanup(_ context.Context, workingRoot string) error {
	if err := os.RemoveAll(workingRoot); err != nil {
		return core.ErrIsolation("SNAPSHOT_REMOVE_FAILED", "removing snapshot directory").WithCause(err).
			WithDetail("path", workingRoot)
	}
	return nil
}

// Materialize reads relPath's content at rev and writes it into
// snapshotRoot at the same relative location, creating parent directories
// as needed. Returns the bytes written so the caller can also add them to
// a context bundle without a second read.
//
// relPath must already be confined to the repository (the caller's
// context-bundle cap enforcement is expected to have validated it);
// Materialize additionally refuses to write outside snapshotRoot.
func (s *SnapshotStrategy) Materialize(ctx context.Context, snapshotRoot, rev, relPath string) ([]byte, error) {
	cleanRel := filepath.Clean(relPath)
	if filepath.IsAbs(cleanRel) || cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return nil, core.ErrContext("SNAPSHOT_PATH_INVALID", "path escapes repository root").
			WithDetail("path", relPath)
	}

	content, err := s.git.Show(ctx, rev, relPath)
	if err != nil {
		return nil, core.ErrContext("SNAPSHOT_READ_FAILED", "reading file at revision").WithCause(err).
			WithDetail("path", relPath).WithDetail("rev", rev)
	}

	dest := filepath.Join(snapshotRoot, cleanRel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return nil, core.ErrContext("SNAPSHOT_WRITE_FAILED", "creating snapshot parent directory").WithCause(err)
	}
	if err := os.WriteFile(dest, content, 0o640); err != nil {
		return nil, core.ErrContext("SNAPSHOT_WRITE_FAILED", "writing snapshot file").WithCause(err).
			WithDetail("path", relPath)
	}

	return content, nil
}
