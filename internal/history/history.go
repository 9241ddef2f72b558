// Package history implements TaskHistory: an append-only record of task
// execution outcomes used to condition future prioritization and to report
// estimation accuracy and failure patterns back to the operator.
package history

import (
	"sort"

	"github.com/polka-dev/polka/internal/core"
)

// Accuracy summarizes how close estimated durations came to actual ones.
type Accuracy struct {
	AvgError    float64 // minutes
	AvgErrorPct float64
	Total       int
}

// Store is the TaskHistory contract. Implementations must tolerate a
// missing backing file on first use (start empty) and treat write failures
// as non-fatal, since history is advisory, not authoritative state.
type Store interface {
	Add(rec core.ExecutionRecord) error
	FindByType(t core.TaskType) []core.ExecutionRecord
	FindFailed(limit int) []core.ExecutionRecord
	FindSlow(limit int) []core.ExecutionRecord
	EstimationAccuracy() Accuracy
	Report() string
	Close() error
}

// New returns a Store for the given backend ("json", default, or
// "sqlite"), persisting to path.
func New(backend, path string) (Store, error) {
	switch normalizeBackend(backend) {
	case "sqlite":
		return newSQLiteStore(path)
	default:
		return newJSONStore(path)
	}
}

func normalizeBackend(backend string) string {
	if backend == "" {
		return "json"
	}
	return backend
}

// filterByType returns records whose TaskType equals t.
func filterByType(records []core.ExecutionRecord, t core.TaskType) []core.ExecutionRecord {
	var out []core.ExecutionRecord
	for _, r := range records {
		if r.TaskType == t {
			out = append(out, r)
		}
	}
	return out
}

// filterFailed returns the most recent `limit` failed records, newest first.
func filterFailed(records []core.ExecutionRecord, limit int) []core.ExecutionRecord {
	var failed []core.ExecutionRecord
	for _, r := range records {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Timestamp.After(failed[j].Timestamp) })
	if limit > 0 && len(failed) > limit {
		failed = failed[:limit]
	}
	return failed
}

// filterSlow returns the `limit` records with the largest actual time,
// descending.
func filterSlow(records []core.ExecutionRecord, limit int) []core.ExecutionRecord {
	slow := append([]core.ExecutionRecord(nil), records...)
	sort.Slice(slow, func(i, j int) bool { return slow[i].ActualTime > slow[j].ActualTime })
	if limit > 0 && len(slow) > limit {
		slow = slow[:limit]
	}
	return slow
}

// computeAccuracy derives Accuracy over every successful record with a
// nonzero estimate.
func computeAccuracy(records []core.ExecutionRecord) Accuracy {
	var totalErr, totalErrPct float64
	count := 0
	for _, r := range records {
		if r.EstimatedTime <= 0 {
			continue
		}
		diff := float64(r.ActualTime - r.EstimatedTime)
		if diff < 0 {
			diff = -diff
		}
		totalErr += diff
		totalErrPct += diff / float64(r.EstimatedTime) * 100
		count++
	}
	if count == 0 {
		return Accuracy{}
	}
	return Accuracy{
		AvgError:    totalErr / float64(count),
		AvgErrorPct: totalErrPct / float64(count),
		Total:       count,
	}
}
