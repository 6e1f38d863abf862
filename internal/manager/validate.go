package manager

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/isolation"
)

// validateTarget rejects a submission target before any work starts
// (§6, the Input error class): it must not be absolute, must not
// traverse above repoRoot, must resolve under repoRoot, and must name an
// existing regular file. The dirty-token sentinel is exempt — it names a
// set of files resolved later, not a single path.
func validateTarget(target, repoRoot string) error {
	if target == isolation.DirtyToken {
		return nil
	}
	if target == "" {
		return core.ErrValidation("TARGET_EMPTY", "target must not be empty")
	}
	if filepath.IsAbs(target) {
		return core.ErrValidation("TARGET_ABSOLUTE", "target must be relative to the repository root")
	}
	for _, seg := range strings.Split(filepath.ToSlash(target), "/") {
		if seg == ".." {
			return core.ErrValidation("TARGET_TRAVERSAL", "target must not contain \"..\" segments")
		}
	}

	joined := filepath.Join(repoRoot, target)
	cleanedRoot := filepath.Clean(repoRoot)
	rel, err := filepath.Rel(cleanedRoot, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return core.ErrValidation("TARGET_ESCAPES_ROOT", "target must resolve under the repository root")
	}

	info, err := os.Stat(joined)
	if err != nil {
		return core.ErrValidation("TARGET_NOT_FOUND", "target does not exist: "+target)
	}
	if !info.Mode().IsRegular() {
		return core.ErrValidation("TARGET_NOT_A_FILE", "target is not a regular file: "+target)
	}
	return nil
}
