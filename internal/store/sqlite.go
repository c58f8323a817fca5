package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leaptrust/pkg/trust"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists snapshots in an embedded SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	locks *datasetLocks
}

// OpenSQLite opens (creating if needed) the SQLite store at path and runs
// pending migrations. Use ":memory:" for an in-memory store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, &StorageError{Op: "open", Err: err}
			}
		}
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}
	if err := migrate(db, "sqlite"); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Err: err}
	}
	return &SQLiteStore{db: db, path: path, locks: newDatasetLocks()}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const insertSnapshot = `INSERT INTO trust_scores
	(dataset_name, field_name, trust_score, grade, color,
	 completeness, validity, anomaly_free, freshness,
	 sample_size, generated_at, warnings, reasons)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Save writes all field rows of the report in one transaction. Saves for
// the same dataset are serialized.
func (s *SQLiteStore) Save(ctx context.Context, rep *trust.Report) error {
	mu := s.locks.lock(rep.DatasetName)
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSnapshot)
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	defer stmt.Close()

	for _, snap := range SnapshotsFromReport(rep) {
		if _, err := stmt.ExecContext(ctx,
			snap.DatasetName, snap.FieldName, snap.TrustScore, snap.Grade, snap.Color,
			snap.Completeness, snap.Validity, snap.AnomalyFree, snap.Freshness,
			snap.SampleSize, snap.GeneratedAt.UTC(), snap.Warnings, snap.Reasons,
		); err != nil {
			return &StorageError{Op: "save", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	return nil
}

const selectColumns = `dataset_name, field_name, trust_score, grade, color,
	completeness, validity, anomaly_free, freshness,
	sample_size, generated_at, warnings, reasons`

func (s *SQLiteStore) QueryLatest(ctx context.Context, datasetName, fieldName string) ([]Snapshot, error) {
	// MAX over zero rows yields NULL, so probe existence first.
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trust_scores WHERE dataset_name = ?`,
		datasetName).Scan(&count); err != nil {
		return nil, &StorageError{Op: "query_latest", Err: err}
	}
	if count == 0 {
		return nil, &NotFoundError{DatasetName: datasetName}
	}

	query := `SELECT ` + selectColumns + ` FROM trust_scores
		WHERE dataset_name = ?
		  AND generated_at = (SELECT MAX(generated_at) FROM trust_scores WHERE dataset_name = ?)`
	args := []any{datasetName, datasetName}
	if fieldName != "" {
		query += ` AND field_name = ?`
		args = append(args, fieldName)
	}
	query += ` ORDER BY field_name`

	snaps, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query_latest", Err: err}
	}
	return snaps, nil
}

func (s *SQLiteStore) QueryHistory(ctx context.Context, datasetName, fieldName string, days int) ([]Snapshot, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	query := `SELECT ` + selectColumns + ` FROM trust_scores
		WHERE dataset_name = ? AND generated_at >= ?`
	args := []any{datasetName, since}
	if fieldName != "" {
		query += ` AND field_name = ?`
		args = append(args, fieldName)
	}
	query += ` ORDER BY generated_at ASC, field_name`

	snaps, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query_history", Err: err}
	}
	return snaps, nil
}

func (s *SQLiteStore) Prune(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM trust_scores WHERE generated_at < ?`, cutoff)
	if err != nil {
		return 0, &StorageError{Op: "prune", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "prune", Err: err}
	}
	return n, nil
}

func (s *SQLiteStore) queryRows(ctx context.Context, query string, args ...any) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(
			&snap.DatasetName, &snap.FieldName, &snap.TrustScore, &snap.Grade, &snap.Color,
			&snap.Completeness, &snap.Validity, &snap.AnomalyFree, &snap.Freshness,
			&snap.SampleSize, &snap.GeneratedAt, &snap.Warnings, &snap.Reasons,
		); err != nil {
			return nil, err
		}
		snap.GeneratedAt = snap.GeneratedAt.UTC()
		out = append(out, snap)
	}
	return out, rows.Err()
}
