package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/polka-dev/polka/internal/discovery"
	"github.com/polka-dev/polka/internal/resource"
	"github.com/polka-dev/polka/internal/safety"
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
		envPrefix:    "POLKA",
		resolvePaths: true,
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance,
// for integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:            v,
		envPrefix:    "POLKA",
		resolvePaths: true,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithProjectDir provides a project root directory hint for resolving
// relative paths.
func (l *Loader) WithProjectDir(path string) *Loader {
	l.projectDirHint = path
	return l
}

// WithResolvePaths controls whether relative paths are resolved to
// absolute paths on Load.
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
// 1. CLI flags (bound via viper.BindPFlag)
// 2. Environment variables (POLKA_*)
// 3. Project config (.polka/config.yaml)
// 4. User config (~/.config/polka/config.yaml)
// 5. Defaults
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
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".polka")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "polka"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// no config file anywhere in the search path: defaults apply
		case errors.Is(err, os.ErrNotExist):
			// explicit --config path that doesn't exist: fall back to defaults
		default:
			return nil, fmt.Errorf("reading config: %w", err)
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
			if filepath.Base(configDir) == ".polka" {
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

	if l.resolvePaths {
		l.resolveAbsolutePaths(&cfg, projectDir)
	}

	return &cfg, nil
}

// ProjectDir returns the resolved project root directory, available after
// Load has been called.
func (l *Loader) ProjectDir() string {
	return l.projectDir
}

// resolveAbsolutePaths converts every relative path in cfg to an absolute
// path rooted at baseDir, so polka behaves the same regardless of the
// working directory it's invoked from.
func (l *Loader) resolveAbsolutePaths(cfg *Config, baseDir string) {
	if cfg.Session.StateDir != "" {
		cfg.Session.StateDir = resolvePathRelativeTo(cfg.Session.StateDir, baseDir)
	}
	if cfg.Session.LockDir != "" {
		cfg.Session.LockDir = resolvePathRelativeTo(cfg.Session.LockDir, baseDir)
	}
	if cfg.History.Path != "" {
		cfg.History.Path = resolvePathRelativeTo(cfg.History.Path, baseDir)
	}
}

// resolvePathRelativeTo converts a relative path to absolute using baseDir
// as the base. Already-absolute paths are returned unchanged.
func resolvePathRelativeTo(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if len(path) > 0 && (path[0] == '/' || path[0] == '\\') {
		return path
	}
	return filepath.Join(baseDir, path)
}

// setDefaults configures every default value consumed by Load.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")
	l.v.SetDefault("log.file", "")

	l.v.SetDefault("session.working_dir", ".")
	l.v.SetDefault("session.state_dir", ".polka/state")
	l.v.SetDefault("session.lock_dir", ".polka/locks")

	strategies := make([]string, 0, len(discovery.AllStrategies()))
	for _, s := range discovery.AllStrategies() {
		strategies = append(strategies, string(s))
	}
	l.v.SetDefault("discovery.enabled_strategies", strategies)
	l.v.SetDefault("discovery.include_advanced", false)

	l.v.SetDefault("execution.strategy", string(StrategyGoalDirected))
	l.v.SetDefault("execution.max_concurrency", 1)
	l.v.SetDefault("execution.max_task_execution_minutes", 10)
	l.v.SetDefault("execution.max_retries", 3)

	l.v.SetDefault("approval.level", string(safety.LevelCommits))
	l.v.SetDefault("approval.non_interactive_default", string(safety.NonInteractiveAutoReject))
	l.v.SetDefault("approval.auto_approve_safe_tasks", false)

	l.v.SetDefault("resource.max_memory_mb", resource.DefaultMaxMemoryMB())
	l.v.SetDefault("resource.max_session_minutes", 480)
	l.v.SetDefault("resource.max_task_minutes", 10)

	l.v.SetDefault("history.backend", "json")
	l.v.SetDefault("history.path", ".polka/history/task-history.json")

	l.v.SetDefault("status_api.enabled", false)
	l.v.SetDefault("status_api.addr", "127.0.0.1:4590")
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
