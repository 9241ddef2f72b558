// Package gitutil wraps the narrow slice of git plumbing the agent core
// needs: the current commit, branch, dirty-tree check, and tracked env
// files. It validates the resolved git binary the same way the teacher's
// git client does, since these commands run against whatever repository
// the agent happens to be pointed at.
package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Client runs narrow git plumbing commands against a working directory.
type Client struct {
	dir     string
	gitPath string
	timeout time.Duration
}

// New resolves the git binary and returns a Client rooted at dir.
func New(dir string) (*Client, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	gitPath, err := resolveGitBinaryPath(absDir)
	if err != nil {
		return nil, err
	}
	return &Client{dir: absDir, gitPath: gitPath, timeout: 15 * time.Second}, nil
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.gitPath, args...)
	cmd.Dir = c.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("git %s: timed out", strings.Join(args, " "))
		}
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), stderr.String(), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// HeadCommit returns the current commit hash (`git rev-parse HEAD`).
func (c *Client) HeadCommit(ctx context.Context) (string, error) {
	return c.run(ctx, "rev-parse", "HEAD")
}

// CurrentBranch returns the current branch name, empty in detached HEAD.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	return c.run(ctx, "branch", "--show-current")
}

// IsDirty reports whether the working tree has uncommitted changes.
func (c *Client) IsDirty(ctx context.Context) (bool, error) {
	out, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// EnvFiles lists tracked files matching *.env.
func (c *Client) EnvFiles(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "ls-files", "*.env")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func resolveGitBinaryPath(repoAbs string) (string, error) {
	p, err := exec.LookPath("git")
	if err != nil {
		return "", fmt.Errorf("git not found in PATH: %w", err)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving git path: %w", err)
	}

	real := abs
	if rr, err := filepath.EvalSymlinks(abs); err == nil {
		real = rr
	}

	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("stat git binary: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("git binary is not a regular file: %s", real)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("git binary is not executable: %s", real)
	}
	if isPathWithinDir(repoAbs, real) {
		return "", fmt.Errorf("refusing to execute git from within repository: %s", real)
	}
	return real, nil
}

func isPathWithinDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
