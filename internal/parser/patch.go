package parser

import (
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

const (
	patchBeginSentinel = "*** Begin Patch"
	patchEndSentinel   = "*** End Patch"

	headerUpdate = "*** Update File: "
	headerAdd    = "*** Add File: "
	headerDelete = "*** Delete File: "
	headerMoveTo = "*** Move to: "
)

// ExtractPatch returns the raw <patch> payload from text, or ok=false when
// no <patch> block is found. ExtractPatch does not itself validate the
// payload; call LooksLikeApplyPatch and ValidatePatchPaths first.
func ExtractPatch(text string) (raw string, ok bool) {
	return ExtractSection(text, "patch")
}

// LooksLikeApplyPatch is a cheap sanity check: raw must contain the begin
// and end sentinels, in order.
func LooksLikeApplyPatch(raw string) bool {
	begin := strings.Index(raw, patchBeginSentinel)
	if begin < 0 {
		return false
	}
	end := strings.Index(raw[begin+len(patchBeginSentinel):], patchEndSentinel)
	return end >= 0
}

// PathErrorKind classifies why a patch header path was rejected.
type PathErrorKind string

const (
	PathErrAbsolute  PathErrorKind = "absolute"
	PathErrTraversal PathErrorKind = "traversal"
	PathErrDrive     PathErrorKind = "drive_prefix"
	PathErrEscapes   PathErrorKind = "escapes_root"
)

// PathError reports the offending path and why ValidatePatchPaths rejected it.
type PathError struct {
	Path string
	Kind PathErrorKind
}

func (e *PathError) Error() string {
	return "patch path " + e.Path + " rejected: " + string(e.Kind)
}

// ValidatePatchPaths line-scans raw for operation headers and validates
// every header path against repoRoot. It returns a PatchArtifact ready for
// the caller to hand to the patch applier, or the first PathError found.
//
// A path is rejected when it is absolute, contains any ".." segment, carries
// a drive letter or UNC prefix, or canonicalizes under repoRoot to a path
// that is not a descendant of repoRoot.
func ValidatePatchPaths(raw, repoRoot string) (core.PatchArtifact, error) {
	artifact := core.PatchArtifact{Raw: raw}

	lines := strings.Split(raw, "\n")

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, headerUpdate):
			path := strings.TrimSpace(strings.TrimPrefix(line, headerUpdate))
			if err := checkPath(path, repoRoot); err != nil {
				return core.PatchArtifact{}, err
			}
			artifact.Ops = append(artifact.Ops, core.PatchOp{Kind: core.OpUpdate, Source: path})
		case strings.HasPrefix(line, headerAdd):
			path := strings.TrimSpace(strings.TrimPrefix(line, headerAdd))
			if err := checkPath(path, repoRoot); err != nil {
				return core.PatchArtifact{}, err
			}
			artifact.Ops = append(artifact.Ops, core.PatchOp{Kind: core.OpAdd, Source: path})
		case strings.HasPrefix(line, headerDelete):
			path := strings.TrimSpace(strings.TrimPrefix(line, headerDelete))
			if err := checkPath(path, repoRoot); err != nil {
				return core.PatchArtifact{}, err
			}
			artifact.Ops = append(artifact.Ops, core.PatchOp{Kind: core.OpDelete, Source: path})
		case strings.HasPrefix(line, headerMoveTo):
			dest := strings.TrimSpace(strings.TrimPrefix(line, headerMoveTo))
			if err := checkPath(dest, repoRoot); err != nil {
				return core.PatchArtifact{}, err
			}
			if len(artifact.Ops) > 0 {
				last := &artifact.Ops[len(artifact.Ops)-1]
				if last.Kind == core.OpUpdate {
					last.Kind = core.OpMove
					last.Dest = dest
				}
			}
		}
	}

	return artifact, nil
}

// checkPath validates a single patch header path against repoRoot.
func checkPath(path, repoRoot string) error {
	if path == "" {
		return &PathError{Path: path, Kind: PathErrEscapes}
	}
	if filepath.IsAbs(path) {
		return &PathError{Path: path, Kind: PathErrAbsolute}
	}
	if hasDrivePrefix(path) {
		return &PathError{Path: path, Kind: PathErrDrive}
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return &PathError{Path: path, Kind: PathErrTraversal}
		}
	}

	joined := filepath.Join(repoRoot, path)
	cleanedRoot := filepath.Clean(repoRoot)
	rel, err := filepath.Rel(cleanedRoot, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &PathError{Path: path, Kind: PathErrEscapes}
	}
	return nil
}

// hasDrivePrefix reports whether path carries a Windows drive letter
// ("C:\") or UNC ("\\host\share") prefix, rejected regardless of platform.
func hasDrivePrefix(path string) bool {
	if strings.HasPrefix(path, `\\`) {
		return true
	}
	if len(path) >= 2 && path[1] == ':' {
		c := path[0]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return true
		}
	}
	return false
}
