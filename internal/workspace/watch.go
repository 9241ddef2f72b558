package workspace

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/polka-dev/polka/internal/core"
)

// Watch starts watching tasks/pending/ for externally created, edited, or
// removed markdown files — a human dropping in or tweaking a task by hand.
// On any such event it re-runs DiscoverPendingTasks and sends the refreshed
// list on the returned channel. The watcher stops and the channel closes
// when ctx is done. pendingDir must already exist (Initialize creates it).
func (s *Space) Watch(ctx context.Context) (<-chan []*core.Task, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting working space watcher: %w", err)
	}
	if err := watcher.Add(s.pendingDir()); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching pending tasks directory: %w", err)
	}

	out := make(chan []*core.Task)
	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				tasks, err := s.DiscoverPendingTasks()
				if err != nil {
					continue
				}
				select {
				case out <- tasks:
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}
