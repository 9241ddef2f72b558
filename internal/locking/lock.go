// Package locking implements SessionLock: a cross-process mutex over an
// on-disk lockfile with owner metadata, plus an in-process registry for
// the common case of repeated acquire calls from the same session.
package locking

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/fsutil"
)

// staleAfter is the age at which a lockfile (or in-process registry entry)
// is considered abandoned and eligible for reclamation.
const staleAfter = time.Hour

// currentUsername returns the invoking OS user's name, falling back to the
// USER/USERNAME environment variables if the user package cannot resolve one.
func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return os.Getenv("USERNAME")
}

// AcquireResult is the outcome of an acquire attempt.
type AcquireResult struct {
	Acquired bool
	Session  core.SessionInfo
	Reason   string
	Existing *core.SessionInfo
}

// Lock is a SessionLock instance scoped to a single lock directory.
type Lock struct {
	dir string

	mu       sync.Mutex
	registry map[string]core.SessionInfo
}

// New returns a Lock whose lockfiles live under dir.
func New(dir string) *Lock {
	return &Lock{dir: dir, registry: make(map[string]core.SessionInfo)}
}

func (l *Lock) path(sessionID string) string {
	return filepath.Join(l.dir, sessionID+".lock")
}

// Acquire attempts to take exclusive ownership of sessionID. It first
// consults the in-process registry, then the on-disk lockfile, reclaiming
// either if older than the staleness threshold.
func (l *Lock) Acquire(sessionID string) (AcquireResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	if existing, ok := l.registry[sessionID]; ok {
		if now.Sub(existing.StartTime) < staleAfter {
			e := existing
			return AcquireResult{Reason: "active in process registry", Existing: &e}, nil
		}
		delete(l.registry, sessionID)
	}

	lockPath := l.path(sessionID)
	if info, err := os.Stat(lockPath); err == nil {
		if now.Sub(info.ModTime()) < staleAfter {
			existing, readErr := l.readLockInfo(lockPath)
			return AcquireResult{Reason: "active lockfile", Existing: existing}, readErr
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return AcquireResult{}, fmt.Errorf("removing stale lockfile: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return AcquireResult{}, fmt.Errorf("stat lockfile: %w", err)
	}

	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return AcquireResult{}, fmt.Errorf("creating lock directory: %w", err)
	}

	hostname, _ := os.Hostname()
	session := core.SessionInfo{
		SessionID: sessionID,
		PID:       os.Getpid(),
		PPID:      os.Getppid(),
		Hostname:  hostname,
		Username:  currentUsername(),
		StartTime: now,
	}
	data, err := json.Marshal(session)
	if err != nil {
		return AcquireResult{}, fmt.Errorf("marshaling session info: %w", err)
	}
	if err := atomicWriteFile(lockPath, data, 0o600); err != nil {
		return AcquireResult{}, fmt.Errorf("writing lockfile: %w", err)
	}

	l.registry[sessionID] = session
	return AcquireResult{Acquired: true, Session: session}, nil
}

// readLockInfo reads and parses a candidate lockfile, treating read or
// parse failure as an absent lock per the failure semantics of 4.1.
func (l *Lock) readLockInfo(path string) (*core.SessionInfo, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, nil
	}
	var info core.SessionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, nil
	}
	return &info, nil
}

// Release removes the in-process registration and the on-disk lockfile for
// sessionID. Release is idempotent and best-effort: an already-released or
// never-acquired lock is not an error.
func (l *Lock) Release(sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.registry, sessionID)

	lockPath := l.path(sessionID)
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lockfile: %w", err)
	}
	return nil
}

// IsActive reports whether sessionID currently holds an unexpired lock,
// consulting the in-process registry first and the on-disk file second.
func (l *Lock) IsActive(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if existing, ok := l.registry[sessionID]; ok {
		return now.Sub(existing.StartTime) < staleAfter
	}
	info, err := os.Stat(l.path(sessionID))
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) < staleAfter
}

// List returns every session currently believed active, combining the
// in-process registry with any on-disk lockfiles it does not yet know about.
func (l *Lock) List() []core.SessionInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	seen := make(map[string]bool, len(l.registry))
	out := make([]core.SessionInfo, 0, len(l.registry))
	for id, info := range l.registry {
		if now.Sub(info.StartTime) < staleAfter {
			out = append(out, info)
			seen[id] = true
		}
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return out
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		const suffix = ".lock"
		if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		id := name[:len(name)-len(suffix)]
		if seen[id] {
			continue
		}
		fi, err := entry.Info()
		if err != nil || now.Sub(fi.ModTime()) >= staleAfter {
			continue
		}
		if info, err := l.readLockInfo(filepath.Join(l.dir, name)); err == nil && info != nil {
			out = append(out, *info)
		}
	}
	return out
}
