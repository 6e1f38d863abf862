package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v              *viper.Viper
	configFile     string
	envPrefix      string
	projectDir     string
	projectDirHint string
	resolvePaths   bool
	mu             sync.Mutex
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:            viper.New(),
		envPrefix:    "COUNCIL",
		resolvePaths: true,
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance, so a
// CLI consumer can bind flags onto the same instance before Load.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:            v,
		envPrefix:    "COUNCIL",
		resolvePaths: true,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithProjectDir provides a project root directory hint for resolving
// relative paths, for callers whose config file is not under the repo root.
func (l *Loader) WithProjectDir(path string) *Loader {
	l.projectDirHint = path
	return l
}

// WithResolvePaths controls whether relative paths are resolved to absolute
// paths on Load.
func (l *Loader) WithResolvePaths(resolve bool) *Loader {
	l.resolvePaths = resolve
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (COUNCIL_*)
// 3. Project config (.council/config.yaml)
// 4. Legacy project config (.council.yaml, for backwards compatibility)
// 5. User config (~/.config/council/config.yaml)
// 6. Defaults
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		newConfigPath := filepath.Join(".council", "config.yaml")
		if _, err := os.Stat(newConfigPath); err == nil {
			l.v.SetConfigFile(newConfigPath)
		} else {
			l.v.SetConfigName(".council")
			l.v.SetConfigType("yaml")
			l.v.AddConfigPath(".")
			if home, err := os.UserHomeDir(); err == nil {
				l.v.AddConfigPath(filepath.Join(home, ".config", "council"))
			}
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// ignore: fall back to defaults
		} else if errors.Is(err, os.ErrNotExist) {
			// explicit config file path does not exist: fall back to defaults
		} else {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if configPath := l.v.ConfigFileUsed(); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			normalized, err := loadNormalizedConfigMap(configPath)
			if err != nil {
				return nil, fmt.Errorf("normalizing config: %w", err)
			}
			if len(normalized) > 0 {
				if err := l.v.MergeConfigMap(normalized); err != nil {
					return nil, fmt.Errorf("merging normalized config: %w", err)
				}
			}
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	projectDir := ""
	if configPath := l.v.ConfigFileUsed(); configPath != "" {
		if absConfigPath, err := filepath.Abs(configPath); err == nil {
			configDir := filepath.Dir(absConfigPath)
			if filepath.Base(configDir) == ".council" {
				projectDir = filepath.Dir(configDir)
			} else {
				projectDir = configDir
			}
		}
	}
	if projectDir == "" {
		projectDir, _ = os.Getwd()
	}
	if strings.TrimSpace(l.projectDirHint) != "" {
		projectDir = l.projectDirHint
	}
	l.projectDir = projectDir

	if cfg.CacheRoot == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cfg.CacheRoot = filepath.Join(dir, "council_runs")
		} else {
			cfg.CacheRoot = filepath.Join(projectDir, ".council", "runs")
		}
	}
	if l.resolvePaths {
		l.resolveAbsolutePaths(&cfg, projectDir)
	}

	return &cfg, nil
}

// ProjectDir returns the resolved project root directory, available after Load.
func (l *Loader) ProjectDir() string {
	return l.projectDir
}

// resolveAbsolutePaths converts relative paths to absolute paths relative to
// baseDir, so behavior is stable regardless of the process's working directory.
func (l *Loader) resolveAbsolutePaths(cfg *Config, baseDir string) {
	if cfg.CacheRoot != "" {
		cfg.CacheRoot = resolvePathRelativeTo(cfg.CacheRoot, baseDir)
	}
	if cfg.Log.File != "" {
		cfg.Log.File = resolvePathRelativeTo(cfg.Log.File, baseDir)
	}
}

// resolvePathRelativeTo converts a relative path to an absolute path using
// baseDir as the base. Already-absolute paths are returned unchanged.
func resolvePathRelativeTo(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if len(path) > 0 && (path[0] == '/' || path[0] == '\\') {
		return path
	}
	return filepath.Join(baseDir, path)
}

func loadNormalizedConfigMap(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	normalizeLegacyConfigMap(raw)
	return raw, nil
}

// setDefaults configures viper's default values, mirroring DefaultConfigYAML.
func (l *Loader) setDefaults() {
	l.v.SetDefault("prompt_version", "v1")
	l.v.SetDefault("cache_root", "")

	l.v.SetDefault("retention.max_jobs", 20)
	l.v.SetDefault("retention.max_age_hours", 24)

	l.v.SetDefault("limits.max_files_total", 40)
	l.v.SetDefault("limits.max_bytes_per_file", 80000)
	l.v.SetDefault("limits.max_total_bytes", 2097152)

	l.v.SetDefault("repair.max_iterations", 2)

	l.v.SetDefault("debug.raw_log", false)

	l.v.SetDefault("verify.commands", []map[string]interface{}{})

	l.v.SetDefault("agents.critic_a.path", "claude")
	l.v.SetDefault("agents.critic_a.model", "claude-opus-4-6")
	l.v.SetDefault("agents.critic_a.timeout_seconds", 120)
	l.v.SetDefault("agents.critic_b.path", "codex")
	l.v.SetDefault("agents.critic_b.model", "gpt-5.3-codex")
	l.v.SetDefault("agents.critic_b.timeout_seconds", 120)
	l.v.SetDefault("agents.chair.path", "claude")
	l.v.SetDefault("agents.chair.model", "claude-opus-4-6")
	l.v.SetDefault("agents.chair.timeout_seconds", 180)
	l.v.SetDefault("agents.implementer.path", "claude")
	l.v.SetDefault("agents.implementer.model", "claude-opus-4-6")
	l.v.SetDefault("agents.implementer.timeout_seconds", 300)

	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")
	l.v.SetDefault("log.file", "")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	if l.configFile != "" {
		return l.configFile
	}
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns all settings as a map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}
