package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptrust/internal/config"
	"github.com/leapstack-labs/leaptrust/pkg/trust"
)

func configFor(backend string) config.StoreConfig {
	return config.StoreConfig{Backend: backend}
}

func memoryStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(name string, generatedAt time.Time) *trust.Report {
	return &trust.Report{
		DatasetName: name,
		Overall:     88.5,
		GeneratedAt: generatedAt,
		FieldScores: []trust.FieldScore{
			{
				FieldName:    "email",
				TrustScore:   94.0,
				Completeness: 80.0,
				Validity:     100.0,
				AnomalyFree:  100.0,
				Freshness:    100.0,
				SampleSize:   100,
				Warnings:     []string{"Low completeness (80.0%)"},
				Reasons:      []string{"Passes schema validation checks", "Data is fresh"},
			},
			{
				FieldName:    "id",
				TrustScore:   100.0,
				Completeness: 100.0,
				Validity:     100.0,
				AnomalyFree:  100.0,
				Freshness:    100.0,
				SampleSize:   100,
			},
		},
	}
}

func TestSaveAndQueryLatestRoundTrip(t *testing.T) {
	s := memoryStore(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	rep := sampleReport("users", at)
	require.NoError(t, s.Save(ctx, rep))

	snaps, err := s.QueryLatest(ctx, "users", "")
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	// Ordered by field name.
	email := snaps[0]
	assert.Equal(t, "email", email.FieldName)
	assert.Equal(t, 94.0, email.TrustScore)
	assert.Equal(t, "A", email.Grade)
	assert.Equal(t, "#10a37f", email.Color)
	assert.Equal(t, 80.0, email.Completeness)
	assert.Equal(t, 100.0, email.Validity)
	assert.Equal(t, 100, email.SampleSize)
	assert.Equal(t, "Low completeness (80.0%)", email.Warnings)
	assert.Equal(t, "Passes schema validation checks; Data is fresh", email.Reasons)
	assert.True(t, email.GeneratedAt.Equal(at), "generated_at = %v", email.GeneratedAt)
}

func TestQueryLatestReturnsNewestRun(t *testing.T) {
	s := memoryStore(t)
	ctx := context.Background()
	old := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, sampleReport("users", old)))
	require.NoError(t, s.Save(ctx, sampleReport("users", newer)))

	snaps, err := s.QueryLatest(ctx, "users", "")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	for _, snap := range snaps {
		assert.True(t, snap.GeneratedAt.Equal(newer))
	}
}

func TestQueryLatestFieldFilter(t *testing.T) {
	s := memoryStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleReport("users", time.Now().UTC())))

	snaps, err := s.QueryLatest(ctx, "users", "id")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "id", snaps[0].FieldName)
}

func TestQueryLatestNotFound(t *testing.T) {
	s := memoryStore(t)
	_, err := s.QueryLatest(context.Background(), "missing", "")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.DatasetName)
}

func TestQueryHistoryWindowAndOrder(t *testing.T) {
	s := memoryStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	inWindow1 := now.AddDate(0, 0, -20)
	inWindow2 := now.AddDate(0, 0, -5)
	outOfWindow := now.AddDate(0, 0, -40)
	require.NoError(t, s.Save(ctx, sampleReport("users", inWindow2)))
	require.NoError(t, s.Save(ctx, sampleReport("users", outOfWindow)))
	require.NoError(t, s.Save(ctx, sampleReport("users", inWindow1)))

	snaps, err := s.QueryHistory(ctx, "users", "email", 30)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].GeneratedAt.Before(snaps[1].GeneratedAt), "history must be ascending")
}

func TestQueryHistoryEmptyWindowIsNotError(t *testing.T) {
	s := memoryStore(t)
	snaps, err := s.QueryHistory(context.Background(), "users", "", 30)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestPruneDeletesOnlyExpired(t *testing.T) {
	s := memoryStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.Save(ctx, sampleReport("users", now.AddDate(0, 0, -100))))
	require.NoError(t, s.Save(ctx, sampleReport("users", now)))

	n, err := s.Prune(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	snaps, err := s.QueryLatest(ctx, "users", "")
	require.NoError(t, err)
	assert.Len(t, snaps, 2, "recent snapshot must survive pruning")
}

func TestConcurrentSavesDifferentDatasets(t *testing.T) {
	s := memoryStore(t)
	ctx := context.Background()
	names := []string{"alpha", "beta", "gamma", "delta"}

	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			errs[i] = s.Save(ctx, sampleReport(name, time.Now().UTC()))
		}(i, name)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, names[i])
	}
	for _, name := range names {
		snaps, err := s.QueryLatest(ctx, name, "")
		require.NoError(t, err)
		assert.Len(t, snaps, 2, name)
	}
}

func TestSnapshotsFromReportJoinsLists(t *testing.T) {
	rep := sampleReport("d", time.Now())
	snaps := SnapshotsFromReport(rep)
	require.Len(t, snaps, 2)
	assert.Equal(t, "Low completeness (80.0%)", snaps[0].Warnings)
	assert.Empty(t, snaps[1].Warnings)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), configFor("mongodb"))
	var ub *UnknownBackendError
	require.ErrorAs(t, err, &ub)
	assert.Equal(t, "mongodb", ub.Backend)
}
