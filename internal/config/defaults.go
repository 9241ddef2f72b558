package config

// DefaultConfigYAML is the starter configuration written by `polka config
// init`, documenting every section at its default value.
const DefaultConfigYAML = `# polka configuration
# Values not specified here use the defaults documented below.

log:
  level: info
  format: auto

session:
  working_dir: .
  state_dir: .polka/state
  lock_dir: .polka/locks

discovery:
  enabled_strategies:
    - build-errors
    - failing-tests
    - type-errors
    - lint-issues
    - test-coverage
    - code-quality
    - refactoring
    - documentation
    - security
    - working-dir
  include_advanced: false

execution:
  strategy: goal-directed
  max_concurrency: 1
  max_task_execution_minutes: 10
  max_retries: 3

approval:
  level: commits
  non_interactive_default: auto-reject
  auto_approve_safe_tasks: false

resource:
  max_session_minutes: 480
  max_task_minutes: 10

history:
  backend: json
  path: .polka/history/task-history.json

status_api:
  enabled: false
  addr: 127.0.0.1:4590
`
