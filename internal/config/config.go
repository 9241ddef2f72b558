// Package config loads and validates polka's typed configuration from CLI
// flags, environment variables, a project file, a user file, and built-in
// defaults, in that precedence order.
package config

import (
	"github.com/polka-dev/polka/internal/discovery"
	"github.com/polka-dev/polka/internal/safety"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Session   SessionConfig   `mapstructure:"session"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
	Resource  ResourceConfig  `mapstructure:"resource"`
	History   HistoryConfig   `mapstructure:"history"`
	StatusAPI StatusAPIConfig `mapstructure:"status_api"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// SessionConfig configures where a session keeps its durable state.
type SessionConfig struct {
	WorkingDir string `mapstructure:"working_dir"`
	StateDir   string `mapstructure:"state_dir"`
	LockDir    string `mapstructure:"lock_dir"`
}

// Strategy is the agent's top-level operating mode: work a single
// operator-supplied goal to completion, or loop indefinitely discovering
// its own work.
type Strategy string

const (
	StrategyGoalDirected          Strategy = "goal-directed"
	StrategyContinuousImprovement Strategy = "continuous-improvement"
)

// Valid reports whether s is one of the closed set of recognized strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyGoalDirected, StrategyContinuousImprovement:
		return true
	default:
		return false
	}
}

// DiscoveryConfig configures DiscoveryEngine.
type DiscoveryConfig struct {
	EnabledStrategies []discovery.Strategy `mapstructure:"enabled_strategies"`
	IncludeAdvanced   bool                 `mapstructure:"include_advanced"`
}

// ExecutionConfig configures Planner, Executor, and Orchestrator.
type ExecutionConfig struct {
	Strategy                Strategy `mapstructure:"strategy"`
	MaxConcurrency          int      `mapstructure:"max_concurrency"`
	MaxTaskExecutionMinutes int      `mapstructure:"max_task_execution_minutes"`
	MaxRetries              int      `mapstructure:"max_retries"`
}

// ApprovalConfig configures ApprovalManager and SafetyChecker.
type ApprovalConfig struct {
	Level                 safety.Level                 `mapstructure:"level"`
	NonInteractiveDefault safety.NonInteractiveDefault  `mapstructure:"non_interactive_default"`
	AutoApproveSafeTasks  bool                          `mapstructure:"auto_approve_safe_tasks"`
}

// ResourceConfig configures ResourceMonitor's limits.
type ResourceConfig struct {
	MaxMemoryMB       float64 `mapstructure:"max_memory_mb"`
	MaxSessionMinutes float64 `mapstructure:"max_session_minutes"`
	MaxTaskMinutes    float64 `mapstructure:"max_task_minutes"`
}

// HistoryConfig configures TaskHistory's storage backend.
type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// StatusAPIConfig configures the optional read-only status HTTP surface.
type StatusAPIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}
