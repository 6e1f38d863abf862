package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates a Config.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateCore(cfg)
	v.validateAgents(&cfg.Agents)
	v.validateLog(&cfg.Log)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (v *Validator) validateCore(cfg *Config) {
	if strings.TrimSpace(cfg.PromptVersion) == "" {
		v.addError("prompt_version", cfg.PromptVersion, "must not be empty")
	}

	if cfg.Retention.MaxJobs < 1 {
		v.addError("retention.max_jobs", cfg.Retention.MaxJobs, "must be at least 1")
	}
	if cfg.Retention.MaxAgeHours < 1 {
		v.addError("retention.max_age_hours", cfg.Retention.MaxAgeHours, "must be at least 1")
	}

	if cfg.Limits.MaxFilesTotal < 1 {
		v.addError("limits.max_files_total", cfg.Limits.MaxFilesTotal, "must be at least 1")
	}
	if cfg.Limits.MaxBytesPerFile < 1 {
		v.addError("limits.max_bytes_per_file", cfg.Limits.MaxBytesPerFile, "must be at least 1")
	}
	if cfg.Limits.MaxTotalBytes < cfg.Limits.MaxBytesPerFile {
		v.addError("limits.max_total_bytes", cfg.Limits.MaxTotalBytes, "must be >= limits.max_bytes_per_file")
	}

	if cfg.Repair.MaxIterations < 0 {
		v.addError("repair.max_iterations", cfg.Repair.MaxIterations, "must be non-negative")
	}

	for i, cmd := range cfg.Verify.Commands {
		field := fmt.Sprintf("verify.commands[%d]", i)
		if strings.TrimSpace(cmd.Name) == "" {
			v.addError(field+".name", cmd.Name, "must not be empty")
		}
		if len(cmd.Argv) == 0 {
			v.addError(field+".argv", cmd.Argv, "must have at least one element")
		}
		if cmd.TimeoutSeconds < 1 {
			v.addError(field+".timeout_seconds", cmd.TimeoutSeconds, "must be at least 1")
		}
	}
}

func (v *Validator) validateAgents(cfg *Agents) {
	v.validateRoleAgent("agents.critic_a", cfg.CriticA)
	v.validateRoleAgent("agents.critic_b", cfg.CriticB)
	v.validateRoleAgent("agents.chair", cfg.Chair)
	v.validateRoleAgent("agents.implementer", cfg.Implementer)
}

func (v *Validator) validateRoleAgent(field string, cfg RoleAgent) {
	if strings.TrimSpace(cfg.Path) == "" {
		v.addError(field+".path", cfg.Path, "path required")
	}
	if cfg.TimeoutSeconds < 1 {
		v.addError(field+".timeout_seconds", cfg.TimeoutSeconds, "must be at least 1")
	}
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"auto": true, "text": true, "json": true}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

// ValidateConfig is a convenience function that creates a validator and
// validates cfg in one call.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
