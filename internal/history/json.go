package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/fsutil"
)

// jsonStore is the default TaskHistory backend: a single JSON array
// rewritten atomically on every append.
type jsonStore struct {
	path string
	mu      sync.Mutex
	records []core.ExecutionRecord
}

func newJSONStore(path string) (*jsonStore, error) {
	s := &jsonStore{path: path}
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		// Corrupt or unreadable history is non-critical: start empty rather
		// than refuse to run.
		return s, nil
	}
	var records []core.ExecutionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return s, nil
	}
	s.records = records
	return s, nil
}

func (s *jsonStore) Add(rec core.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.flush()
}

func (s *jsonStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return nil
	}
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return nil
	}
	_ = atomicWriteFile(s.path, data, 0o600)
	return nil
}

func (s *jsonStore) snapshot() []core.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ExecutionRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *jsonStore) FindByType(t core.TaskType) []core.ExecutionRecord {
	return filterByType(s.snapshot(), t)
}

func (s *jsonStore) FindFailed(limit int) []core.ExecutionRecord {
	return filterFailed(s.snapshot(), limit)
}

func (s *jsonStore) FindSlow(limit int) []core.ExecutionRecord {
	return filterSlow(s.snapshot(), limit)
}

func (s *jsonStore) EstimationAccuracy() Accuracy {
	return computeAccuracy(s.snapshot())
}

func (s *jsonStore) Report() string {
	records := s.snapshot()
	acc := computeAccuracy(records)
	failed := filterFailed(records, 0)

	var b strings.Builder
	fmt.Fprintf(&b, "task history: %d record(s)\n", len(records))
	fmt.Fprintf(&b, "estimation accuracy: avg error %.1fm (%.1f%%) over %d estimated task(s)\n",
		acc.AvgError, acc.AvgErrorPct, acc.Total)
	fmt.Fprintf(&b, "failed: %d\n", len(failed))
	return b.String()
}

func (s *jsonStore) Close() error { return nil }
