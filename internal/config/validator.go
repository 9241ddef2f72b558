package config

import (
	"fmt"
	"strings"

	"github.com/polka-dev/polka/internal/safety"
)

// ValidationError represents a configuration validation error.
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

// Validate checks configuration consistency, rejecting unrecognized enum
// values and non-positive limits. It collects every violation rather than
// failing on the first, so an operator sees the full picture in one pass.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if !cfg.Execution.Strategy.Valid() {
		errs = append(errs, ValidationError{"execution.strategy", cfg.Execution.Strategy, "must be goal-directed or continuous-improvement"})
	}
	if cfg.Execution.MaxConcurrency < 1 {
		errs = append(errs, ValidationError{"execution.max_concurrency", cfg.Execution.MaxConcurrency, "must be at least 1"})
	}
	if cfg.Execution.MaxTaskExecutionMinutes < 1 {
		errs = append(errs, ValidationError{"execution.max_task_execution_minutes", cfg.Execution.MaxTaskExecutionMinutes, "must be at least 1"})
	}
	if cfg.Execution.MaxRetries < 0 {
		errs = append(errs, ValidationError{"execution.max_retries", cfg.Execution.MaxRetries, "must not be negative"})
	}

	for _, s := range cfg.Discovery.EnabledStrategies {
		if !s.Valid() {
			errs = append(errs, ValidationError{"discovery.enabled_strategies", s, "not a recognized discovery strategy"})
		}
	}

	switch cfg.Approval.Level {
	case safety.LevelNone, safety.LevelDestructive, safety.LevelCommits, safety.LevelAll:
	default:
		errs = append(errs, ValidationError{"approval.level", cfg.Approval.Level, "must be none, destructive, commits, or all"})
	}
	switch cfg.Approval.NonInteractiveDefault {
	case safety.NonInteractiveAutoReject, safety.NonInteractiveAutoApproveSafe:
	default:
		errs = append(errs, ValidationError{"approval.non_interactive_default", cfg.Approval.NonInteractiveDefault, "must be auto-reject or auto-approve-safe"})
	}

	if cfg.Resource.MaxMemoryMB <= 0 {
		errs = append(errs, ValidationError{"resource.max_memory_mb", cfg.Resource.MaxMemoryMB, "must be positive"})
	}
	if cfg.Resource.MaxSessionMinutes <= 0 {
		errs = append(errs, ValidationError{"resource.max_session_minutes", cfg.Resource.MaxSessionMinutes, "must be positive"})
	}
	if cfg.Resource.MaxTaskMinutes <= 0 {
		errs = append(errs, ValidationError{"resource.max_task_minutes", cfg.Resource.MaxTaskMinutes, "must be positive"})
	}

	switch cfg.History.Backend {
	case "json", "sqlite":
	default:
		errs = append(errs, ValidationError{"history.backend", cfg.History.Backend, "must be json or sqlite"})
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		errs = append(errs, ValidationError{"history.path", cfg.History.Path, "must not be empty"})
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
