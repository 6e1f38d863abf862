package config

// DefaultConfigYAML is the default configuration, written to .council/config.yaml
// by `council init` and used as the baseline for env-var and file overrides.
const DefaultConfigYAML = `# Council configuration
# Values not specified here use the defaults baked into the loader.

prompt_version: v1
cache_root: ""   # empty = OS cache dir + council_runs

retention:
  max_jobs: 20
  max_age_hours: 24

limits:
  max_files_total: 40
  max_bytes_per_file: 80000
  max_total_bytes: 2097152

repair:
  max_iterations: 2

debug:
  raw_log: false

verify:
  commands: []   # empty = use toolchain detection

agents:
  critic_a:
    path: claude
    model: claude-opus-4-6
    timeout_seconds: 120
  critic_b:
    path: codex
    model: gpt-5.3-codex
    timeout_seconds: 120
  chair:
    path: claude
    model: claude-opus-4-6
    timeout_seconds: 180
  implementer:
    path: claude
    model: claude-opus-4-6
    timeout_seconds: 300

log:
  level: info
  format: auto
  file: ""
`
