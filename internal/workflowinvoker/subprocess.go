// Package workflowinvoker implements a default, concrete WorkflowInvoker:
// it delegates a task's workflow to an external command, passing the wire
// request on stdin and parsing the wire response from stdout, exactly per
// the Workflow Invoker contract an operator's coding-agent backend must
// speak.
package workflowinvoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/polka-dev/polka/internal/core"
)

// request is the JSON payload written to the invoked command's stdin.
type request struct {
	Workflow string      `json:"workflow"`
	Input    interface{} `json:"input"`
}

// wireError mirrors the contract's {message, kind} error shape.
type wireError struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// response is the JSON payload read from the invoked command's stdout.
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *wireError  `json:"error,omitempty"`
	Output  string      `json:"output,omitempty"`
}

// Subprocess invokes a fixed external command once per task, honoring ctx
// cancellation by killing the child process. It is safe to call Invoke
// concurrently: each call starts its own process.
type Subprocess struct {
	command []string
	workDir string
}

// NewSubprocess returns a Subprocess invoker that runs command (argv form,
// e.g. []string{"my-agent-cli"}) with workDir as its working directory.
func NewSubprocess(command []string, workDir string) *Subprocess {
	return &Subprocess{command: command, workDir: workDir}
}

// Invoke runs the configured command once, writing task's workflow name
// and workflow input as JSON on its stdin and parsing its stdout as the
// wire response. A ctx cancellation mid-run is reported as ctx.Err()
// rather than a generic execution failure so callers can distinguish
// cancellation from a real workflow error.
func (s *Subprocess) Invoke(ctx context.Context, task *core.Task) (core.WorkflowResult, error) {
	if len(s.command) == 0 {
		return core.WorkflowResult{}, fmt.Errorf("workflow invoker: no command configured")
	}

	payload, err := json.Marshal(request{Workflow: string(task.Workflow), Input: task.WorkflowInput})
	if err != nil {
		return core.WorkflowResult{}, fmt.Errorf("encoding workflow invoker request: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.Dir = s.workDir
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return core.WorkflowResult{}, ctx.Err()
	}

	var resp response
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		if runErr != nil {
			return core.WorkflowResult{Success: false, Output: stderr.String(), Err: runErr}, nil
		}
		return core.WorkflowResult{}, fmt.Errorf("parsing workflow invoker response: %w (stdout: %q)", err, stdout.String())
	}

	result := core.WorkflowResult{Success: resp.Success, Output: resp.Output}
	if files, ok := resp.Data.([]interface{}); ok {
		for _, f := range files {
			if name, ok := f.(string); ok {
				result.FilesTouched = append(result.FilesTouched, name)
			}
		}
	}
	if resp.Error != nil {
		result.Err = fmt.Errorf("workflow invoker (%s): %s", resp.Error.Kind, resp.Error.Message)
	}
	return result, nil
}
