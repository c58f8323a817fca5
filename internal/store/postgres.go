package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/leaptrust/pkg/trust"
)

// PostgresStore persists snapshots in PostgreSQL via the pgx driver.
type PostgresStore struct {
	db    *sql.DB
	locks *datasetLocks
}

// OpenPostgres connects to the database named by the DSN and runs pending
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}
	if err := migrate(db, "postgres"); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Err: err}
	}
	return &PostgresStore{db: db, locks: newDatasetLocks()}, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const insertSnapshotPG = `INSERT INTO trust_scores
	(dataset_name, field_name, trust_score, grade, color,
	 completeness, validity, anomaly_free, freshness,
	 sample_size, generated_at, warnings, reasons)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func (s *PostgresStore) Save(ctx context.Context, rep *trust.Report) error {
	mu := s.locks.lock(rep.DatasetName)
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	defer tx.Rollback()

	for _, snap := range SnapshotsFromReport(rep) {
		if _, err := tx.ExecContext(ctx, insertSnapshotPG,
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

func (s *PostgresStore) QueryLatest(ctx context.Context, datasetName, fieldName string) ([]Snapshot, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trust_scores WHERE dataset_name = $1`,
		datasetName).Scan(&count); err != nil {
		return nil, &StorageError{Op: "query_latest", Err: err}
	}
	if count == 0 {
		return nil, &NotFoundError{DatasetName: datasetName}
	}

	query := `SELECT ` + selectColumns + ` FROM trust_scores
		WHERE dataset_name = $1
		  AND generated_at = (SELECT MAX(generated_at) FROM trust_scores WHERE dataset_name = $1)`
	args := []any{datasetName}
	if fieldName != "" {
		query += ` AND field_name = $2`
		args = append(args, fieldName)
	}
	query += ` ORDER BY field_name`

	snaps, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query_latest", Err: err}
	}
	return snaps, nil
}

func (s *PostgresStore) QueryHistory(ctx context.Context, datasetName, fieldName string, days int) ([]Snapshot, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	query := `SELECT ` + selectColumns + ` FROM trust_scores
		WHERE dataset_name = $1 AND generated_at >= $2`
	args := []any{datasetName, since}
	if fieldName != "" {
		query += ` AND field_name = $3`
		args = append(args, fieldName)
	}
	query += ` ORDER BY generated_at ASC, field_name`

	snaps, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query_history", Err: err}
	}
	return snaps, nil
}

func (s *PostgresStore) Prune(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM trust_scores WHERE generated_at < $1`, cutoff)
	if err != nil {
		return 0, &StorageError{Op: "prune", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "prune", Err: err}
	}
	return n, nil
}

func (s *PostgresStore) queryRows(ctx context.Context, query string, args ...any) ([]Snapshot, error) {
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
