// Package interrupt implements InterruptHandler: it subscribes to OS
// interrupt/termination signals and turns the first one into an orderly
// shutdown, forcing an immediate exit on the second.
package interrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// DefaultExitCode is used when a second signal forces immediate exit.
const DefaultExitCode = 130

// Handler is InterruptHandler, C14.
type Handler struct {
	onInterrupt func()
	cleanup     func()
	exit        func(code int)
	exitCode    int

	mu          sync.Mutex
	interrupted bool
	sigCh       chan os.Signal
	doneCh      chan struct{}
}

// Option configures a Handler.
type Option func(*Handler)

// WithExitFunc overrides the function called on a second signal, default
// os.Exit. Tests should override this to avoid killing the test binary.
func WithExitFunc(exit func(code int)) Option {
	return func(h *Handler) { h.exit = exit }
}

// WithExitCode overrides the code passed to the exit function.
func WithExitCode(code int) Option {
	return func(h *Handler) { h.exitCode = code }
}

// New returns a Handler. onInterrupt stops whatever is currently
// running (e.g. cancelling the orchestrator/continuous loop's context);
// cleanup runs afterward (ResourceMonitor.Stop, SessionLock.Release,
// StateStore.Checkpoint). Both may be nil.
func New(onInterrupt, cleanup func(), opts ...Option) *Handler {
	h := &Handler{
		onInterrupt: onInterrupt,
		cleanup:     cleanup,
		exit:        os.Exit,
		exitCode:    DefaultExitCode,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start subscribes to SIGINT and SIGTERM and begins watching for them in
// a background goroutine.
func (h *Handler) Start() {
	h.mu.Lock()
	h.sigCh = make(chan os.Signal, 2)
	h.doneCh = make(chan struct{})
	sigCh := h.sigCh
	doneCh := h.doneCh
	h.mu.Unlock()

	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go h.watch(sigCh, doneCh)
}

func (h *Handler) watch(sigCh chan os.Signal, doneCh chan struct{}) {
	select {
	case <-sigCh:
	case <-doneCh:
		return
	}
	h.handleFirstSignal()

	select {
	case <-sigCh:
	case <-doneCh:
		return
	}
	h.handleSecondSignal()
}

func (h *Handler) handleFirstSignal() {
	h.mu.Lock()
	h.interrupted = true
	h.mu.Unlock()

	if h.onInterrupt != nil {
		h.onInterrupt()
	}
	if h.cleanup != nil {
		h.cleanup()
	}
}

func (h *Handler) handleSecondSignal() {
	h.exit(h.exitCode)
}

// IsInterrupted reports whether at least one signal has been received.
func (h *Handler) IsInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Stop unsubscribes from signals and lets the watch goroutine exit. Safe
// to call even if Start was never called.
func (h *Handler) Stop() {
	h.mu.Lock()
	sigCh := h.sigCh
	doneCh := h.doneCh
	h.mu.Unlock()

	if sigCh != nil {
		signal.Stop(sigCh)
	}
	if doneCh != nil {
		select {
		case <-doneCh:
		default:
			close(doneCh)
		}
	}
}
