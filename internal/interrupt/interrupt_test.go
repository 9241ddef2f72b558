package interrupt

import (
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func selfSignal(t *testing.T, sig syscall.Signal) {
	t.Helper()
	if err := syscall.Kill(os.Getpid(), sig); err != nil {
		t.Fatalf("sending signal to self: %v", err)
	}
}

func TestHandler_FirstSignalRunsInterruptAndCleanup(t *testing.T) {
	var interruptCalls, cleanupCalls int32
	h := New(
		func() { atomic.AddInt32(&interruptCalls, 1) },
		func() { atomic.AddInt32(&cleanupCalls, 1) },
		WithExitFunc(func(code int) {}),
	)
	h.Start()
	defer h.Stop()

	selfSignal(t, syscall.SIGINT)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.IsInterrupted() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !h.IsInterrupted() {
		t.Fatalf("expected handler to record interruption")
	}
	if atomic.LoadInt32(&interruptCalls) != 1 {
		t.Fatalf("expected onInterrupt to run once, got %d", interruptCalls)
	}
	if atomic.LoadInt32(&cleanupCalls) != 1 {
		t.Fatalf("expected cleanup to run once, got %d", cleanupCalls)
	}
}

func TestHandler_SecondSignalForcesExit(t *testing.T) {
	exitCh := make(chan int, 1)
	h := New(
		func() {},
		func() {},
		WithExitFunc(func(code int) { exitCh <- code }),
		WithExitCode(130),
	)
	h.Start()
	defer h.Stop()

	selfSignal(t, syscall.SIGINT)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !h.IsInterrupted() {
		time.Sleep(5 * time.Millisecond)
	}
	if !h.IsInterrupted() {
		t.Fatalf("expected first signal to register")
	}

	selfSignal(t, syscall.SIGINT)

	select {
	case code := <-exitCh:
		if code != 130 {
			t.Fatalf("expected exit code 130, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected exit func to run after second signal")
	}
}

func TestHandler_NilCallbacksAreTolerated(t *testing.T) {
	h := New(nil, nil, WithExitFunc(func(code int) {}))
	h.Start()
	defer h.Stop()

	selfSignal(t, syscall.SIGINT)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !h.IsInterrupted() {
		time.Sleep(5 * time.Millisecond)
	}
	if !h.IsInterrupted() {
		t.Fatalf("expected handler to tolerate nil callbacks")
	}
}

func TestHandler_StopBeforeAnySignalIsSafe(t *testing.T) {
	h := New(func() {}, func() {}, WithExitFunc(func(code int) {}))
	h.Start()
	h.Stop()
}
