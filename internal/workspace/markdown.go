package workspace

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/polka-dev/polka/internal/core"
)

var (
	headerRe = regexp.MustCompile(`(?i)^#{1,6}\s*(Plan|Task)\s*:\s*(.*)$`)
	sectionRe = regexp.MustCompile(`^#{1,6}\s*(.+?)\s*$`)
	fieldRe  = regexp.MustCompile(`^\*\*([^*:]+):?\*\*:?\s*(.*)$`)
)

// formatTaskMarkdown renders a task as the human-editable markdown schema:
// an H1 header, `**Key:** value` scalar fields, and `## Section` lists.
func formatTaskMarkdown(task *core.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Task: %s\n\n", task.Title)
	fmt.Fprintf(&b, "**ID:** %s\n", task.ID)
	fmt.Fprintf(&b, "**Type:** %s\n", task.Type)
	fmt.Fprintf(&b, "**Priority:** %d\n", task.Priority)
	fmt.Fprintf(&b, "**Complexity:** %s\n", task.Complexity)
	fmt.Fprintf(&b, "**Estimated Time:** %d minutes\n", task.EstimatedTime)
	fmt.Fprintf(&b, "**Status:** %s\n", task.Status)
	fmt.Fprintf(&b, "**Workflow:** %s\n", task.Workflow)
	b.WriteString("\n")

	if task.Description != "" {
		b.WriteString("## Description\n")
		b.WriteString(task.Description)
		b.WriteString("\n\n")
	}
	if len(task.Dependencies) > 0 {
		b.WriteString("## Dependencies\n")
		for _, dep := range task.Dependencies {
			fmt.Fprintf(&b, "- %s\n", dep)
		}
		b.WriteString("\n")
	}
	if len(task.Files) > 0 {
		b.WriteString("## Files\n")
		for _, f := range task.Files {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// parseTaskMarkdown reconstructs a Task from its markdown projection. The
// parser is tolerant: headers may be H1-H6, field names are case-
// insensitive, and values may or may not be backticked.
func parseTaskMarkdown(content string) (*core.Task, error) {
	task := &core.Task{Status: core.TaskStatusPending, Priority: core.PriorityMedium}
	lines := strings.Split(content, "\n")

	section := ""
	var descLines, depLines, fileLines, resultLines []string

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if m := headerRe.FindStringSubmatch(trimmed); m != nil {
			task.Title = strings.TrimSpace(m[2])
			section = ""
			continue
		}
		if m := fieldRe.FindStringSubmatch(trimmed); m != nil {
			applyTaskField(task, strings.TrimSpace(m[1]), unbacktick(strings.TrimSpace(m[2])))
			continue
		}
		if m := sectionRe.FindStringSubmatch(trimmed); m != nil && strings.HasPrefix(line, "#") {
			section = strings.ToLower(strings.TrimSpace(m[1]))
			continue
		}

		switch section {
		case "description":
			if trimmed != "" {
				descLines = append(descLines, trimmed)
			}
		case "dependencies":
			if dep := strings.TrimPrefix(trimmed, "- "); dep != trimmed && dep != "" {
				depLines = append(depLines, dep)
			}
		case "files":
			if f := strings.TrimPrefix(trimmed, "- "); f != trimmed && f != "" {
				fileLines = append(fileLines, f)
			}
		case "result":
			if trimmed != "" {
				resultLines = append(resultLines, trimmed)
			}
		}
	}

	task.Description = strings.Join(descLines, "\n")
	for _, d := range depLines {
		task.Dependencies = append(task.Dependencies, core.TaskID(d))
	}
	task.Files = fileLines
	if len(resultLines) > 0 {
		if task.Metadata == nil {
			task.Metadata = map[string]interface{}{}
		}
		task.Metadata["result"] = strings.Join(resultLines, "\n")
	}
	if task.ID == "" {
		task.ID = core.NewTaskID()
	}
	return task, nil
}

func unbacktick(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && strings.HasPrefix(v, "`") && strings.HasSuffix(v, "`") {
		return strings.TrimSpace(v[1 : len(v)-1])
	}
	return v
}

func applyTaskField(task *core.Task, key, value string) {
	switch strings.ToLower(key) {
	case "id":
		task.ID = core.TaskID(value)
	case "type":
		task.Type = core.TaskType(value)
	case "priority":
		if n, err := strconv.Atoi(value); err == nil {
			task.Priority = core.Priority(n).Clamp()
		} else if p, ok := core.ParsePriority(strings.ToLower(value)); ok {
			task.Priority = p
		}
	case "complexity":
		task.Complexity = core.Complexity(strings.ToLower(value))
	case "estimated time":
		fields := strings.Fields(value)
		if len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err == nil {
				task.EstimatedTime = n
			}
		}
	case "status":
		task.Status = core.TaskStatus(strings.ToLower(value))
	case "workflow":
		task.Workflow = core.WorkflowName(strings.ToLower(value))
	}
}

// appendResultFooter appends a `## Result` section and a completion
// timestamp footer to an existing task markdown document.
func appendResultFooter(content, result string, completedAt time.Time) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(content, "\n"))
	b.WriteString("\n\n## Result\n")
	b.WriteString(result)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "*Completed:* %s\n", completedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// formatPlanMarkdown renders a plan as its markdown projection.
func formatPlanMarkdown(plan *core.Plan) string {
	var b strings.Builder
	goal := plan.Goal
	if goal == "" {
		goal = "(continuous mode)"
	}
	fmt.Fprintf(&b, "# Plan: %s\n\n", goal)
	fmt.Fprintf(&b, "**Estimated Time:** %d minutes\n", plan.EstimatedTime)
	fmt.Fprintf(&b, "**Degraded:** %t\n\n", plan.DegradedDAG)

	if plan.HighLevelPlan != "" {
		b.WriteString("## Description\n")
		b.WriteString(plan.HighLevelPlan)
		b.WriteString("\n\n")
	}

	b.WriteString("## Tasks\n")
	for _, t := range plan.Tasks {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", t.ID, t.Title, t.Status)
	}
	b.WriteString("\n")

	if len(plan.Risks) > 0 {
		b.WriteString("## Risks\n")
		for _, r := range plan.Risks {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// parsePlanMarkdown reconstructs a best-effort Plan summary from its
// markdown projection: goal, metadata, risks, and a lightweight task list
// (id/title/status only — WorkingSpace is a human-interop mirror, not the
// source of truth for full task state, which lives in AgentState).
func parsePlanMarkdown(content string) (*core.Plan, error) {
	plan := &core.Plan{}
	lines := strings.Split(content, "\n")
	section := ""
	var descLines []string

	taskLineRe := regexp.MustCompile(`^-\s*([^:]+):\s*(.+?)\s*\(([^)]+)\)\s*$`)

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		if m := headerRe.FindStringSubmatch(trimmed); m != nil {
			plan.Goal = strings.TrimSpace(m[2])
			if plan.Goal == "(continuous mode)" {
				plan.Goal = ""
			}
			section = ""
			continue
		}
		if m := fieldRe.FindStringSubmatch(trimmed); m != nil {
			key := strings.ToLower(strings.TrimSpace(m[1]))
			value := unbacktick(strings.TrimSpace(m[2]))
			switch key {
			case "estimated time":
				fields := strings.Fields(value)
				if len(fields) > 0 {
					if n, err := strconv.Atoi(fields[0]); err == nil {
						plan.EstimatedTime = n
					}
				}
			case "degraded":
				plan.DegradedDAG = strings.EqualFold(value, "true")
			}
			continue
		}
		if m := sectionRe.FindStringSubmatch(trimmed); m != nil && strings.HasPrefix(line, "#") {
			section = strings.ToLower(strings.TrimSpace(m[1]))
			continue
		}

		switch section {
		case "description":
			if trimmed != "" {
				descLines = append(descLines, trimmed)
			}
		case "tasks":
			if m := taskLineRe.FindStringSubmatch(trimmed); m != nil {
				plan.Tasks = append(plan.Tasks, &core.Task{
					ID:     core.TaskID(strings.TrimSpace(m[1])),
					Title:  strings.TrimSpace(m[2]),
					Status: core.TaskStatus(strings.ToLower(strings.TrimSpace(m[3]))),
				})
			}
		case "risks":
			if r := strings.TrimPrefix(trimmed, "- "); r != trimmed && r != "" {
				plan.Risks = append(plan.Risks, r)
			}
		}
	}
	plan.HighLevelPlan = strings.Join(descLines, "\n")
	return plan, nil
}
