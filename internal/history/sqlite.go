package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/polka-dev/polka/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// sqliteStore is the optional TaskHistory backend for operators who want
// queryable history instead of a flat JSON array. It mirrors the dual
// write/read connection split used by the larger state backend: SQLite
// allows only one writer, so reads go through a separate read-only handle
// to avoid contending with appends.
type sqliteStore struct {
	db     *sql.DB
	readDB *sql.DB
	mu sync.Mutex
}

func newSQLiteStore(path string) (*sqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening history write database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&mode=ro&_pragma=busy_timeout(1000)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening history read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)

	s := &sqliteStore{db: db, readDB: readDB}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		_ = readDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(migrationV1)
	if err != nil {
		return fmt.Errorf("running history migration: %w", err)
	}
	return nil
}

func (s *sqliteStore) Add(rec core.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO execution_records
			(task_id, task_type, timestamp, success, estimated_time, actual_time, error_summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rec.TaskID), string(rec.TaskType), rec.Timestamp.UTC().Format(time.RFC3339Nano),
		boolToInt(rec.Success), rec.EstimatedTime, rec.ActualTime, rec.ErrorSummary)
	return err
}

func (s *sqliteStore) all() []core.ExecutionRecord {
	rows, err := s.readDB.QueryContext(context.Background(),
		`SELECT task_id, task_type, timestamp, success, estimated_time, actual_time, error_summary
		 FROM execution_records ORDER BY id ASC`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []core.ExecutionRecord
	for rows.Next() {
		var rec core.ExecutionRecord
		var taskID, taskType, ts string
		var success int
		var errSummary sql.NullString
		if err := rows.Scan(&taskID, &taskType, &ts, &success, &rec.EstimatedTime, &rec.ActualTime, &errSummary); err != nil {
			continue
		}
		rec.TaskID = core.TaskID(taskID)
		rec.TaskType = core.TaskType(taskType)
		rec.Success = success != 0
		rec.ErrorSummary = errSummary.String
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = parsed
		}
		out = append(out, rec)
	}
	return out
}

func (s *sqliteStore) FindByType(t core.TaskType) []core.ExecutionRecord {
	return filterByType(s.all(), t)
}

func (s *sqliteStore) FindFailed(limit int) []core.ExecutionRecord {
	return filterFailed(s.all(), limit)
}

func (s *sqliteStore) FindSlow(limit int) []core.ExecutionRecord {
	return filterSlow(s.all(), limit)
}

func (s *sqliteStore) EstimationAccuracy() Accuracy {
	return computeAccuracy(s.all())
}

func (s *sqliteStore) Report() string {
	records := s.all()
	acc := computeAccuracy(records)
	failed := filterFailed(records, 0)
	return fmt.Sprintf("task history: %d record(s)\nestimation accuracy: avg error %.1fm (%.1f%%) over %d estimated task(s)\nfailed: %d\n",
		len(records), acc.AvgError, acc.AvgErrorPct, acc.Total, len(failed))
}

func (s *sqliteStore) Close() error {
	var firstErr error
	if err := s.db.Close(); err != nil {
		firstErr = err
	}
	if err := s.readDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
