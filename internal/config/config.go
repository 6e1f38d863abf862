package config

// Config holds all configuration recognized by the Council job runner (§6).
// Everything under Log is ambient and not part of the core's external
// interface; the core itself only reads PromptVersion, CacheRoot, Retention,
// Verify, Limits, Repair, Debug and Agents.
type Config struct {
	Log       LogConfig `mapstructure:"log"`
	Agents    Agents    `mapstructure:"agents"`
	Retention Retention `mapstructure:"retention"`
	Verify    VerifyCfg `mapstructure:"verify"`
	Limits    Limits    `mapstructure:"limits"`
	Repair    Repair    `mapstructure:"repair"`
	Debug     Debug     `mapstructure:"debug"`

	// PromptVersion selects a named prompt asset set. If the asset set is
	// missing, the runner fails loudly rather than silently falling back.
	PromptVersion string `mapstructure:"prompt_version"`
	// CacheRoot is the base directory for job directories. Empty means the
	// loader resolves it to the OS cache dir + "council_runs".
	CacheRoot string `mapstructure:"cache_root"`
}

// LogConfig configures structured logging (ambient, not part of the core).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Agents maps the four roles the core calls out to onto concrete CLI agents.
// Role-to-model mapping is opaque to the core; it only ever calls a role by
// name (critic_a, critic_b, chair, implementer).
type Agents struct {
	CriticA     RoleAgent `mapstructure:"critic_a"`
	CriticB     RoleAgent `mapstructure:"critic_b"`
	Chair       RoleAgent `mapstructure:"chair"`
	Implementer RoleAgent `mapstructure:"implementer"`
}

// RoleAgent configures the CLI invocation backing a single model role.
type RoleAgent struct {
	Path           string `mapstructure:"path"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Retention bounds how many job directories are kept and for how long (§4.5).
type Retention struct {
	MaxJobs     int `mapstructure:"max_jobs"`
	MaxAgeHours int `mapstructure:"max_age_hours"`
}

// VerifyCfg optionally overrides toolchain-detection output with an explicit
// command list (§4.3).
type VerifyCfg struct {
	Commands []VerifyCommand `mapstructure:"commands"`
}

// VerifyCommand is one sandboxed verification command.
type VerifyCommand struct {
	Name           string   `mapstructure:"name"`
	Argv           []string `mapstructure:"argv"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// Limits bounds the Discovering phase's context bundle (§4.1).
type Limits struct {
	MaxFilesTotal   int   `mapstructure:"max_files_total"`
	MaxBytesPerFile int64 `mapstructure:"max_bytes_per_file"`
	MaxTotalBytes   int64 `mapstructure:"max_total_bytes"`
}

// Repair bounds the Planning phase's bounded retry on a malformed reply.
type Repair struct {
	MaxIterations int `mapstructure:"max_iterations"`
}

// Debug controls verbatim model-reply logging. RawLog writes debug_raw.log
// at file mode 0600; it is never surfaced in events.
type Debug struct {
	RawLog bool `mapstructure:"raw_log"`
}

// RoleAgentFor returns the RoleAgent configured for the given role name, and
// whether that role is recognized.
func (a Agents) RoleAgentFor(role string) (RoleAgent, bool) {
	switch role {
	case "critic_a":
		return a.CriticA, true
	case "critic_b":
		return a.CriticB, true
	case "chair":
		return a.Chair, true
	case "implementer":
		return a.Implementer, true
	default:
		return RoleAgent{}, false
	}
}
