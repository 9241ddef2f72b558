// Package resource implements ResourceMonitor: periodic sampling of process
// memory, wall-clock session time, and per-task elapsed time, firing limit
// events with hysteresis so a sustained breach is reported exactly once.
package resource

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// LimitKind identifies which resource limit a callback fires for.
type LimitKind string

const (
	LimitMemory       LimitKind = "memory"
	LimitSessionTime  LimitKind = "session_time"
	LimitTaskTime     LimitKind = "task_time"
)

// Limits bounds the quantities ResourceMonitor samples.
type Limits struct {
	MaxMemoryMB      float64
	MaxSessionMinutes float64
	MaxTaskMinutes   float64
}

// OnExceeded is invoked at most once per threshold crossing: it fires again
// for the same kind only after a sample drops back under the limit and then
// crosses it anew.
type OnExceeded func(kind LimitKind, observed, limit float64)

// sampleInterval is how often the monitor samples process state.
const sampleInterval = time.Second

// Monitor samples this process's RSS and elapsed wall-clock time on a
// fixed tick and reports crossings of the configured Limits.
type Monitor struct {
	proc *process.Process

	mu            sync.Mutex
	sessionStart  time.Time
	taskStart     time.Time
	taskRunning   bool
	breached      map[LimitKind]bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New returns a Monitor for the current process.
func New() (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Monitor{
		proc:     proc,
		breached: make(map[LimitKind]bool),
	}, nil
}

// Start begins sampling on a background goroutine until the context is
// cancelled or Stop is called. Start is not safe to call concurrently with
// itself; call Stop before starting a new cycle.
func (m *Monitor) Start(ctx context.Context, limits Limits, onExceeded OnExceeded) {
	m.mu.Lock()
	m.sessionStart = time.Now()
	m.breached = make(map[LimitKind]bool)
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.mu.Unlock()

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(sampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				m.sample(limits, onExceeded)
			}
		}
	}()
}

// Stop halts sampling and blocks until the background goroutine exits.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.mu.Unlock()
	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	if doneCh != nil {
		<-doneCh
	}
}

// StartTask marks the beginning of a new task's elapsed-time tracking.
func (m *Monitor) StartTask() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskStart = time.Now()
	m.taskRunning = true
	delete(m.breached, LimitTaskTime)
}

// EndTask stops per-task elapsed-time tracking.
func (m *Monitor) EndTask() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskRunning = false
}

func (m *Monitor) sample(limits Limits, onExceeded OnExceeded) {
	m.mu.Lock()
	sessionStart := m.sessionStart
	taskStart := m.taskStart
	taskRunning := m.taskRunning
	m.mu.Unlock()

	now := time.Now()

	if limits.MaxMemoryMB > 0 {
		if memInfo, err := m.proc.MemoryInfo(); err == nil {
			rssMB := float64(memInfo.RSS) / 1024 / 1024
			m.check(LimitMemory, rssMB, limits.MaxMemoryMB, onExceeded)
		}
	}

	if limits.MaxSessionMinutes > 0 {
		elapsed := now.Sub(sessionStart).Minutes()
		m.check(LimitSessionTime, elapsed, limits.MaxSessionMinutes, onExceeded)
	}

	if limits.MaxTaskMinutes > 0 && taskRunning {
		elapsed := now.Sub(taskStart).Minutes()
		m.check(LimitTaskTime, elapsed, limits.MaxTaskMinutes, onExceeded)
	}
}

// check fires onExceeded at most once per crossing, per the hysteresis rule:
// a limit re-fires only after a sample drops below it and then crosses again.
func (m *Monitor) check(kind LimitKind, observed, limit float64, onExceeded OnExceeded) {
	m.mu.Lock()
	wasBreached := m.breached[kind]
	exceeded := observed > limit
	m.breached[kind] = exceeded
	m.mu.Unlock()

	if exceeded && !wasBreached && onExceeded != nil {
		onExceeded(kind, observed, limit)
	}
}
