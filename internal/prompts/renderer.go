// Package prompts renders the per-role prompt templates backing a named
// prompt_version asset set (§6). Missing assets are a loud failure: the
// caller never silently falls back to a different version.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

//go:embed v1/*.md.tmpl
var assetsFS embed.FS

// Role names, matching core.Role* constants.
const (
	RoleConstitution = "constitution"
	RoleCritic       = "critic"
	RoleChair        = "chair"
	RoleImplementer  = "implementer"
)

// Renderer renders named templates scoped to a prompt_version asset set.
type Renderer struct {
	mu        sync.RWMutex
	templates map[string]map[string]*template.Template // version -> name -> tmpl
}

// NewRenderer loads every embedded asset set eagerly so a missing version
// fails at construction rather than on first use in the middle of a job.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]map[string]*template.Template)}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) load() error {
	return fs.WalkDir(assetsFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md.tmpl") {
			return nil
		}

		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 {
			return fmt.Errorf("prompts: unexpected asset layout %q", path)
		}
		version, file := parts[0], parts[1]
		name := strings.TrimSuffix(file, ".md.tmpl")

		content, err := assetsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("prompts: reading %s: %w", path, err)
		}

		tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(string(content))
		if err != nil {
			return fmt.Errorf("prompts: parsing %s: %w", path, err)
		}

		if r.templates[version] == nil {
			r.templates[version] = make(map[string]*template.Template)
		}
		r.templates[version][name] = tmpl
		return nil
	})
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"join":      strings.Join,
		"trimSpace": strings.TrimSpace,
	}
}

// Render renders the named template of the given prompt_version with data.
// A version or name that has no matching asset is a validation error: the
// runner fails loudly rather than substituting a different version.
func (r *Renderer) Render(version, name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.templates[version]
	if !ok {
		return "", core.ErrValidation("PROMPT_VERSION_NOT_FOUND",
			fmt.Sprintf("no prompt assets for prompt_version %q", version))
	}
	tmpl, ok := set[name]
	if !ok {
		return "", core.ErrValidation("PROMPT_ASSET_NOT_FOUND",
			fmt.Sprintf("prompt_version %q has no asset named %q", version, name))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", core.ErrValidation("PROMPT_RENDER_FAILED", "rendering "+name).WithCause(err)
	}
	return buf.String(), nil
}
