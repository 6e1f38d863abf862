// Package verify detects a project's toolchain and runs its verification
// commands under a hardened, argv-only sandbox: working directory pinned,
// environment allowlisted, output capped and redacted, timeouts enforced
// per command and cumulatively.
package verify

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/council/internal/config"
)

// detectedCommands is the cached outcome of toolchain detection for one
// working root.
type detectedCommands struct {
	commands  []config.VerifyCommand
	expiresAt time.Time
}

// Detector examines a working root for marker files and returns the
// ordered command list appropriate to the detected toolchain. Results are
// cached per working root with a TTL, since the Runner calls Detect twice
// per job (baseline and final verify) against the same root.
type Detector struct {
	mu    sync.Mutex
	cache map[string]detectedCommands
	ttl   time.Duration
}

// NewDetector returns a Detector with the given cache TTL. A zero TTL
// disables caching.
func NewDetector(ttl time.Duration) *Detector {
	return &Detector{
		cache: make(map[string]detectedCommands),
		ttl:   ttl,
	}
}

// Detect returns the command list for workingRoot. An explicit override
// (config.VerifyCfg.Commands) always wins and bypasses detection and the
// cache entirely.
func (d *Detector) Detect(workingRoot string, override []config.VerifyCommand) []config.VerifyCommand {
	if len(override) > 0 {
		return override
	}

	d.mu.Lock()
	if cached, ok := d.cache[workingRoot]; ok && time.Now().Before(cached.expiresAt) {
		d.mu.Unlock()
		return cached.commands
	}
	d.mu.Unlock()

	commands := detectToolchain(workingRoot)

	d.mu.Lock()
	d.cache[workingRoot] = detectedCommands{commands: commands, expiresAt: time.Now().Add(d.ttl)}
	d.mu.Unlock()

	return commands
}

// detectToolchain inspects workingRoot for marker files and returns the
// language-appropriate default command list.
func detectToolchain(workingRoot string) []config.VerifyCommand {
	if fileExists(filepath.Join(workingRoot, "Cargo.toml")) {
		return []config.VerifyCommand{
			{Name: "cargo-check", Argv: []string{"cargo", "check"}, TimeoutSeconds: 120},
			{Name: "cargo-test", Argv: []string{"cargo", "test"}, TimeoutSeconds: 300},
		}
	}
	if fileExists(filepath.Join(workingRoot, "go.mod")) {
		return []config.VerifyCommand{
			{Name: "go-build", Argv: []string{"go", "build", "./..."}, TimeoutSeconds: 120},
			{Name: "go-test", Argv: []string{"go", "test", "./..."}, TimeoutSeconds: 300},
		}
	}
	if fileExists(filepath.Join(workingRoot, "package.json")) {
		return []config.VerifyCommand{
			{Name: "npm-test", Argv: []string{"npm", "test"}, TimeoutSeconds: 300},
		}
	}
	if fileExists(filepath.Join(workingRoot, "pyproject.toml")) || fileExists(filepath.Join(workingRoot, "setup.py")) {
		return []config.VerifyCommand{
			{Name: "pytest", Argv: []string{"pytest"}, TimeoutSeconds: 300},
		}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
