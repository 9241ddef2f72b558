package discovery

import "sync"

const (
	minBackoffSeconds = 60
	maxBackoffSeconds = 900
)

// backoff tracks the discovery retry interval: doubling on empty/failed
// discovery, resetting to the floor once discovery finds work.
type backoff struct {
	mu      sync.Mutex
	current int
}

func newBackoff() *backoff {
	return &backoff{current: minBackoffSeconds}
}

func (b *backoff) Seconds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *backoff) Increase() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current *= 2
	if b.current > maxBackoffSeconds {
		b.current = maxBackoffSeconds
	}
}

func (b *backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = minBackoffSeconds
}
