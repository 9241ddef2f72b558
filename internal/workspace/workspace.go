// Package workspace implements WorkingSpace: a markdown-backed mirror of
// plans and pending/completed tasks, kept on disk so a human can read,
// edit, and drop new task files for the agent to pick up.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/fsutil"
)

// Stats summarizes the current contents of the working space.
type Stats struct {
	Plans          int
	PendingTasks   int
	CompletedTasks int
}

// Space is a WorkingSpace instance rooted at a directory.
type Space struct {
	root string
}

// New returns a Space rooted at dir.
func New(dir string) *Space {
	return &Space{root: dir}
}

func (s *Space) plansDir() string          { return filepath.Join(s.root, "plans") }
func (s *Space) pendingDir() string        { return filepath.Join(s.root, "tasks", "pending") }
func (s *Space) completedDir() string      { return filepath.Join(s.root, "tasks", "completed") }
func (s *Space) logsDir() string           { return filepath.Join(s.root, "logs") }

// Initialize creates the working-space directory layout if it does not
// already exist.
func (s *Space) Initialize() error {
	for _, dir := range []string{s.plansDir(), s.pendingDir(), s.completedDir(), s.logsDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating working space directory %s: %w", dir, err)
		}
	}
	return nil
}

// SavePlan writes plan as its markdown projection under plans/<slug>.md.
func (s *Space) SavePlan(plan *core.Plan) error {
	name := plan.Goal
	if name == "" {
		name = "continuous-plan"
	}
	path := filepath.Join(s.plansDir(), slugify(name)+".md")
	return os.WriteFile(path, []byte(formatPlanMarkdown(plan)), 0o600)
}

// LoadPlans reads every plan file and returns the best-effort plan it
// reconstructs from each.
func (s *Space) LoadPlans() ([]*core.Plan, error) {
	entries, err := os.ReadDir(s.plansDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plans directory: %w", err)
	}

	var plans []*core.Plan
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := fsutil.ReadFileScoped(filepath.Join(s.plansDir(), entry.Name()))
		if err != nil {
			continue
		}
		plan, err := parsePlanMarkdown(string(data))
		if err != nil {
			continue
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (s *Space) pendingPath(task *core.Task) string {
	return filepath.Join(s.pendingDir(), taskFilename(task))
}

func (s *Space) completedPath(task *core.Task) string {
	return filepath.Join(s.completedDir(), taskFilename(task))
}

func taskFilename(task *core.Task) string {
	return fmt.Sprintf("%s-%s.md", task.ID, slugify(task.Title))
}

// CreatePendingTask writes a newly created task into tasks/pending/.
func (s *Space) CreatePendingTask(task *core.Task) error {
	return os.WriteFile(s.pendingPath(task), []byte(formatTaskMarkdown(task)), 0o600)
}

// DiscoverPendingTasks reads every file under tasks/pending/, including
// ones a human dropped in by hand, and parses them back into Tasks.
func (s *Space) DiscoverPendingTasks() ([]*core.Task, error) {
	entries, err := os.ReadDir(s.pendingDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading pending tasks directory: %w", err)
	}

	var tasks []*core.Task
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := fsutil.ReadFileScoped(filepath.Join(s.pendingDir(), entry.Name()))
		if err != nil {
			continue
		}
		task, err := parseTaskMarkdown(string(data))
		if err != nil {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// DocumentCompletedTask moves a task's markdown file from pending to
// completed, appending a Result section and completion footer. If the
// pending file does not exist (e.g. the task was never mirrored), a new
// completed file is written directly.
func (s *Space) DocumentCompletedTask(task *core.Task, result string) error {
	if err := os.MkdirAll(s.completedDir(), 0o750); err != nil {
		return fmt.Errorf("creating completed tasks directory: %w", err)
	}

	completedAt := time.Now()
	if task.CompletedAt != nil {
		completedAt = *task.CompletedAt
	}

	pendingPath := s.pendingPath(task)
	completedPath := s.completedPath(task)

	data, err := fsutil.ReadFileScoped(pendingPath)
	if err != nil {
		data = []byte(formatTaskMarkdown(task))
	}
	finalContent := appendResultFooter(string(data), result, completedAt)

	if err := os.WriteFile(completedPath, []byte(finalContent), 0o600); err != nil {
		return fmt.Errorf("writing completed task file: %w", err)
	}
	if _, statErr := os.Stat(pendingPath); statErr == nil {
		if err := os.Remove(pendingPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing pending task file: %w", err)
		}
	}
	return nil
}

// GetStats counts plans, pending tasks, and completed tasks currently on disk.
func (s *Space) GetStats() (Stats, error) {
	stats := Stats{}
	for _, c := range []struct {
		dir *int
		path string
	}{
		{&stats.Plans, s.plansDir()},
		{&stats.PendingTasks, s.pendingDir()},
		{&stats.CompletedTasks, s.completedDir()},
	} {
		entries, err := os.ReadDir(c.path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Stats{}, fmt.Errorf("reading %s: %w", c.path, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".md") {
				*c.dir++
			}
		}
	}
	return stats, nil
}

// CleanupOldCompletedTasks keeps only the keepN most recently modified
// completed task files, deleting the rest.
func (s *Space) CleanupOldCompletedTasks(keepN int) (int, error) {
	entries, err := os.ReadDir(s.completedDir())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading completed tasks directory: %w", err)
	}

	type fileInfo struct {
		name    string
		modTime time.Time
	}
	var files []fileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: entry.Name(), modTime: info.ModTime()})
	}
	if len(files) <= keepN {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	removed := 0
	for _, f := range files[keepN:] {
		if err := os.Remove(filepath.Join(s.completedDir(), f.name)); err == nil {
			removed++
		}
	}
	return removed, nil
}
