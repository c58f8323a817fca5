// Package store persists trust-report snapshots and serves historical
// trend queries. Snapshots are append-only: one row per (dataset, field,
// generated_at), written atomically per report.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/leaptrust/internal/config"
	"github.com/leapstack-labs/leaptrust/pkg/trust"
)

// Snapshot is the persisted, flattened form of one FieldScore.
type Snapshot struct {
	DatasetName  string    `json:"dataset_name"`
	FieldName    string    `json:"field_name"`
	TrustScore   float64   `json:"trust_score"`
	Grade        string    `json:"grade"`
	Color        string    `json:"color"`
	Completeness float64   `json:"completeness"`
	Validity     float64   `json:"validity"`
	AnomalyFree  float64   `json:"anomaly_free"`
	Freshness    float64   `json:"freshness"`
	SampleSize   int       `json:"sample_size"`
	GeneratedAt  time.Time `json:"generated_at"`
	Warnings     string    `json:"warnings"`
	Reasons      string    `json:"reasons"`
}

// listDelimiter joins warning and reason lists in the flattened row.
const listDelimiter = "; "

// SnapshotsFromReport flattens a report into persistable rows.
func SnapshotsFromReport(rep *trust.Report) []Snapshot {
	out := make([]Snapshot, 0, len(rep.FieldScores))
	for _, fs := range rep.FieldScores {
		out = append(out, Snapshot{
			DatasetName:  rep.DatasetName,
			FieldName:    fs.FieldName,
			TrustScore:   fs.TrustScore,
			Grade:        fs.Grade(),
			Color:        fs.Color(),
			Completeness: fs.Completeness,
			Validity:     fs.Validity,
			AnomalyFree:  fs.AnomalyFree,
			Freshness:    fs.Freshness,
			SampleSize:   fs.SampleSize,
			GeneratedAt:  rep.GeneratedAt,
			Warnings:     strings.Join(fs.Warnings, listDelimiter),
			Reasons:      strings.Join(fs.Reasons, listDelimiter),
		})
	}
	return out
}

// Store is the snapshot persistence interface. Save must be atomic per
// report; queries never mutate.
type Store interface {
	// Save appends one row per field score, tagged with the report's
	// generated_at. Either every row lands or none do.
	Save(ctx context.Context, rep *trust.Report) error
	// QueryLatest returns the rows of the most recent snapshot for the
	// dataset, optionally filtered to one field. Returns NotFoundError
	// when the dataset has no snapshots.
	QueryLatest(ctx context.Context, datasetName, fieldName string) ([]Snapshot, error)
	// QueryHistory returns snapshots within [now - days, now], ordered by
	// generated_at ascending. An empty window is not an error.
	QueryHistory(ctx context.Context, datasetName, fieldName string, days int) ([]Snapshot, error)
	// Prune deletes snapshots older than the retention window. Only ever
	// called explicitly, never from Save or the queries.
	Prune(ctx context.Context, olderThanDays int) (int64, error)
	Close() error
}

// StorageError wraps a backend failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("trust store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotFoundError reports a dataset with no persisted snapshots.
type NotFoundError struct {
	DatasetName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no snapshots for dataset %q", e.DatasetName)
}

// UnknownBackendError reports an unregistered store backend.
type UnknownBackendError struct {
	Backend string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown store backend %q (supported: sqlite, postgres)", e.Backend)
}

// Open creates the store selected by the configuration and runs pending
// migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, &UnknownBackendError{Backend: cfg.Backend}
	}
}

// datasetLocks serializes concurrent saves per dataset. Saves for
// different datasets proceed independently.
type datasetLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDatasetLocks() *datasetLocks {
	return &datasetLocks{locks: map[string]*sync.Mutex{}}
}

func (d *datasetLocks) lock(name string) *sync.Mutex {
	d.mu.Lock()
	m, ok := d.locks[name]
	if !ok {
		m = &sync.Mutex{}
		d.locks[name] = m
	}
	d.mu.Unlock()
	m.Lock()
	return m
}
