package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/polka-dev/polka/internal/core"
)

// Level is an approval level, from least to most conservative.
type Level string

const (
	LevelNone        Level = "none"
	LevelDestructive Level = "destructive"
	LevelCommits     Level = "commits"
	LevelAll         Level = "all"
)

// NonInteractiveDefault decides what happens to an approval request when
// there is no controlling terminal to prompt.
type NonInteractiveDefault string

const (
	NonInteractiveAutoReject      NonInteractiveDefault = "auto-reject"
	NonInteractiveAutoApproveSafe NonInteractiveDefault = "auto-approve-safe"
)

var destructiveTaskTypes = map[core.TaskType]bool{
	core.TaskTypeDelete:    true,
	core.TaskTypeForcePush: true,
	core.TaskTypeReset:     true,
}

// Config controls ApprovalManager behavior.
type Config struct {
	Level                 Level
	NonInteractiveDefault NonInteractiveDefault
	AutoApproveSafeTasks  bool
}

// DefaultConfig requires approval for commits and destructive tasks and
// auto-rejects unattended plans, the conservative continuous-loop default.
func DefaultConfig() Config {
	return Config{Level: LevelCommits, NonInteractiveDefault: NonInteractiveAutoReject}
}

var (
	riskStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// Manager is ApprovalManager, C11.
type Manager struct {
	cfg        Config
	in         *bufio.Reader
	out        io.Writer
	isTerminal func() bool
}

// NewManager returns a Manager that prompts over in/out when the session is
// interactive, per isTerminal.
func NewManager(cfg Config, in io.Reader, out io.Writer, isTerminal func() bool) *Manager {
	return &Manager{cfg: cfg, in: bufio.NewReader(in), out: out, isTerminal: isTerminal}
}

// RequiresTaskApproval reports whether task needs sign-off under the
// configured approval level.
func (m *Manager) RequiresTaskApproval(task *core.Task) bool {
	switch m.cfg.Level {
	case LevelNone:
		return false
	case LevelDestructive:
		return destructiveTaskTypes[task.Type]
	case LevelCommits:
		return task.Type == core.TaskTypeCommit || destructiveTaskTypes[task.Type]
	case LevelAll:
		return true
	default:
		return true
	}
}

// ApprovePlan displays the plan and asks for approval. An interactive
// session always prompts; a non-interactive one falls back to the
// configured default, auto-approving only when every task in the plan is
// safe and AutoApproveSafeTasks is set.
func (m *Manager) ApprovePlan(plan *core.Plan, checks map[core.TaskID][]CheckResult) (bool, error) {
	if !m.isTerminal() {
		if m.cfg.NonInteractiveDefault == NonInteractiveAutoApproveSafe && m.cfg.AutoApproveSafeTasks && planIsSafe(plan, checks) {
			return true, nil
		}
		return false, nil
	}

	fmt.Fprintln(m.out, renderPlan(plan))
	fmt.Fprint(m.out, "Approve this plan? [y/N]: ")

	line, err := m.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading approval response: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func planIsSafe(plan *core.Plan, checks map[core.TaskID][]CheckResult) bool {
	for _, t := range plan.Tasks {
		if !IsSafe(checks[t.ID]) {
			return false
		}
	}
	return true
}

func renderPlan(plan *core.Plan) string {
	var b strings.Builder
	fmt.Fprintln(&b, headerStyle.Render("Plan: "+plan.Goal))
	fmt.Fprintf(&b, "Tasks: %d   Phases: %d   Estimated time: %d min\n", len(plan.Tasks), len(plan.ExecutionOrder), plan.EstimatedTime)
	if len(plan.Risks) > 0 {
		fmt.Fprintln(&b, headerStyle.Render("Risks:"))
		for _, r := range plan.Risks {
			fmt.Fprintln(&b, "  "+riskStyle.Render("- "+r))
		}
	}
	return b.String()
}
