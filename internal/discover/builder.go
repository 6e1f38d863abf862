// Package discover builds the Discovering phase's context bundle: the
// target file plus a bounded set of related files, read through a Source
// that is agnostic to whether the job is backed by a worktree or a
// snapshot.
package discover

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// Warning is a non-fatal note from context-bundle assembly, e.g. a file
// that could not be read or a cap that truncated something.
type Warning struct {
	Message string
}

// Builder assembles a core.ContextBundle under the configured limits.
type Builder struct {
	Limits config.Limits
}

// NewBuilder returns a Builder with sane defaults if limits is the zero
// value.
func NewBuilder(limits config.Limits) *Builder {
	if limits.MaxFilesTotal <= 0 {
		limits.MaxFilesTotal = 40
	}
	if limits.MaxBytesPerFile <= 0 {
		limits.MaxBytesPerFile = 80_000
	}
	if limits.MaxTotalBytes <= 0 {
		limits.MaxTotalBytes = 2 * 1024 * 1024
	}
	return &Builder{Limits: limits}
}

// Build assembles the bundle for target (relative to repo root). When
// rustManifest is true, the target is scanned for `mod`/`use crate::...`
// references and those modules are pulled in (capped); otherwise every
// file sharing the target's extension in its directory is pulled in as a
// neighbor, also capped.
func (b *Builder) Build(ctx context.Context, src Source, target string, rustManifest bool) (*core.ContextBundle, []Warning) {
	bundle := &core.ContextBundle{}
	var warnings []Warning

	targetContent, err := src.ReadFile(ctx, target)
	if err != nil {
		warnings = append(warnings, Warning{Message: "could not read target " + target + ": " + err.Error()})
		return bundle, warnings
	}
	b.addFile(bundle, target, targetContent, core.ReasonTarget)

	var related []string
	var reason core.InclusionReason
	if rustManifest {
		related = b.rustModuleCandidates(ctx, src, target, targetContent)
		reason = core.ReasonImport
	} else {
		related, err = b.sameExtensionNeighbors(ctx, src, target)
		if err != nil {
			warnings = append(warnings, Warning{Message: err.Error()})
		}
		reason = core.ReasonNeighbor
	}

	for _, path := range related {
		if len(bundle.Files) >= b.Limits.MaxFilesTotal {
			warnings = append(warnings, Warning{Message: "context bundle file cap reached, dropping remaining candidates"})
			break
		}
		if bundle.TotalBytes >= b.Limits.MaxTotalBytes {
			warnings = append(warnings, Warning{Message: "context bundle byte cap reached, dropping remaining candidates"})
			break
		}
		content, err := src.ReadFile(ctx, path)
		if err != nil {
			warnings = append(warnings, Warning{Message: "could not read " + path + ": " + err.Error()})
			continue
		}
		b.addFile(bundle, path, content, reason)
	}

	return bundle, warnings
}

// addFile truncates content to the per-file cap and to whatever remains of
// the total cap, then appends it to bundle.
func (b *Builder) addFile(bundle *core.ContextBundle, path string, content []byte, reason core.InclusionReason) {
	truncated := false
	if int64(len(content)) > b.Limits.MaxBytesPerFile {
		content = content[:b.Limits.MaxBytesPerFile]
		truncated = true
	}
	remaining := b.Limits.MaxTotalBytes - bundle.TotalBytes
	if remaining <= 0 {
		return
	}
	if int64(len(content)) > remaining {
		content = content[:remaining]
		truncated = true
	}
	bundle.Add(core.ContextFile{
		Path:      path,
		Content:   string(content),
		Reason:    reason,
		Truncated: truncated,
	})
}

func (b *Builder) sameExtensionNeighbors(ctx context.Context, src Source, target string) ([]string, error) {
	dir := filepath.Dir(target)
	if dir == "." {
		dir = ""
	}
	ext := filepath.Ext(target)

	entries, err := src.ListDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, entry := range entries {
		if entry == target {
			continue
		}
		if filepath.Ext(entry) == ext {
			out = append(out, entry)
		}
	}
	return out, nil
}

var (
	rustModRe = regexp.MustCompile(`(?m)^\s*(?:pub\s+)?mod\s+([A-Za-z_][A-Za-z0-9_]*)\s*;`)
	rustUseRe = regexp.MustCompile(`(?m)^\s*(?:pub\s+)?use\s+crate::([A-Za-z0-9_:]+)\s*;`)
)

// rustModuleCandidates returns candidate file paths, relative to the repo
// root, for every `mod foo;` and `use crate::foo::bar;` statement found in
// content. It is a best-effort heuristic, not a real crate resolver: `mod
// foo;` maps to `foo.rs` or `foo/mod.rs` next to target, and `use
// crate::a::b;` maps to `a/b.rs` or `a/b/mod.rs` from the repo root.
// Candidates that do not exist in src are silently skipped by the caller's
// ReadFile error handling.
func (b *Builder) rustModuleCandidates(ctx context.Context, src Source, target string, content []byte) []string {
	dir := filepath.Dir(target)
	if dir == "." {
		dir = ""
	}
	seen := make(map[string]bool)
	var out []string

	add := func(candidates ...string) {
		for _, c := range candidates {
			if seen[c] {
				continue
			}
			if src.HasFile(ctx, c) {
				seen[c] = true
				out = append(out, c)
			}
		}
	}

	for _, m := range rustModRe.FindAllSubmatch(content, -1) {
		name := string(m[1])
		add(filepath.Join(dir, name+".rs"), filepath.Join(dir, name, "mod.rs"))
	}
	for _, m := range rustUseRe.FindAllSubmatch(content, -1) {
		path := strings.ReplaceAll(string(m[1]), "::", "/")
		add(path+".rs", filepath.Join(path, "mod.rs"))
	}

	return out
}
