package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

func numericDataset(t *testing.T, name string, vals ...float64) *dataset.Dataset {
	t.Helper()
	ds := dataset.New("test")
	values := make([]dataset.Value, len(vals))
	for i, v := range vals {
		values[i] = v
	}
	require.NoError(t, ds.AddColumn(name, dataset.TypeNumeric, values))
	return ds
}

func TestIQRFlagsSingleExtreme(t *testing.T) {
	ds := numericDataset(t, "amount", 1, 2, 3, 4, 5, 1000)
	d, err := NewDetector(MethodIQR, DefaultConfig(), nil)
	require.NoError(t, err)
	rep, err := d.Detect(ds)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.TotalAnomalies)
	assert.Equal(t, 1, rep.ByColumn["amount"])
	assert.Equal(t, []int{5}, rep.Indices("amount"))
	assert.InDelta(t, 100.0/6.0, rep.AnomalyPercentage, 0.01)

	stats := rep.ColumnStats["amount"]
	assert.Equal(t, 2.0, stats.Q1)
	assert.Equal(t, 5.0, stats.Q3)
	assert.Equal(t, 3.0, stats.IQR)
	assert.Equal(t, -2.5, stats.Lower)
	assert.Equal(t, 9.5, stats.Upper)
}

func TestQuartilesMedianOfHalves(t *testing.T) {
	q1, q3 := Quartiles([]float64{1, 2, 3, 4, 5, 1000})
	assert.Equal(t, 2.0, q1)
	assert.Equal(t, 5.0, q3)

	// Odd count shares the median with both halves.
	q1, q3 = Quartiles([]float64{1, 2, 3, 4, 5})
	assert.Equal(t, 2.0, q1)
	assert.Equal(t, 4.0, q3)
}

func TestIQRSkipsShortColumn(t *testing.T) {
	ds := numericDataset(t, "x", 1, 2, 3)
	d, _ := NewDetector(MethodIQR, DefaultConfig(), nil)
	rep, err := d.Detect(ds)
	require.NoError(t, err)
	assert.Zero(t, rep.TotalAnomalies)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "need at least 4")
}

func TestConstantColumnNoAnomalies(t *testing.T) {
	ds := numericDataset(t, "x", 7, 7, 7, 7, 7, 7)
	for _, m := range []Method{MethodIQR, MethodZScore} {
		d, _ := NewDetector(m, DefaultConfig(), nil)
		rep, err := d.Detect(ds)
		require.NoError(t, err, string(m))
		assert.Zero(t, rep.TotalAnomalies, string(m))
	}
}

func injectedOutlierDataset(t *testing.T) (*dataset.Dataset, int) {
	vals := make([]float64, 0, 21)
	base := []float64{48, 49, 50, 51, 52}
	for i := 0; i < 4; i++ {
		vals = append(vals, base...)
	}
	vals = append(vals, 500)
	return numericDataset(t, "v", vals...), 20
}

func TestDetectorsAgreeOnInjectedOutlier(t *testing.T) {
	ds, outlierIdx := injectedOutlierDataset(t)
	for _, m := range []Method{MethodIQR, MethodZScore} {
		d, _ := NewDetector(m, DefaultConfig(), nil)
		rep, err := d.Detect(ds)
		require.NoError(t, err, string(m))
		assert.Equal(t, []int{outlierIdx}, rep.Indices("v"), string(m))
	}
}

func TestZScoreUsesSampleStdDev(t *testing.T) {
	mean, sd := meanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 5.0, mean)
	// Sample stddev (divisor n-1), not population.
	assert.InDelta(t, 2.138, sd, 0.001)
}

func TestIsolationForestDeterministic(t *testing.T) {
	ds, outlierIdx := injectedOutlierDataset(t)
	d, _ := NewDetector(MethodIsolationForest, DefaultConfig(), nil)
	rep1, err := d.Detect(ds)
	require.NoError(t, err)
	rep2, err := d.Detect(ds)
	require.NoError(t, err)
	assert.Equal(t, rep1.Indices("v"), rep2.Indices("v"))
	assert.Contains(t, rep1.Indices("v"), outlierIdx)
}

func TestEnsembleMajorityVote(t *testing.T) {
	ds, outlierIdx := injectedOutlierDataset(t)
	cfg := DefaultConfig()
	cfg.VotePolicy = VoteMajority
	d, err := NewDetector(MethodEnsemble, cfg, nil)
	require.NoError(t, err)
	rep, err := d.Detect(ds)
	require.NoError(t, err)
	assert.Contains(t, rep.Indices("v"), outlierIdx)
	// Post-vote counting: the cell is flagged once, not per member.
	assert.Equal(t, rep.ByColumn["v"], len(rep.Indices("v")))
}

func TestEnsembleUnanimousIsStricter(t *testing.T) {
	ds, _ := injectedOutlierDataset(t)
	anyCfg := DefaultConfig()
	anyCfg.VotePolicy = VoteAny
	unCfg := DefaultConfig()
	unCfg.VotePolicy = VoteUnanimous

	da, _ := NewDetector(MethodEnsemble, anyCfg, nil)
	du, _ := NewDetector(MethodEnsemble, unCfg, nil)
	ra, err := da.Detect(ds)
	require.NoError(t, err)
	ru, err := du.Detect(ds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ra.TotalAnomalies, ru.TotalAnomalies)
}

func TestRowVersusValueCounts(t *testing.T) {
	// Both columns extreme on the same row: 2 anomalous values, 1 row.
	ds := dataset.New("test")
	require.NoError(t, ds.AddColumn("a", dataset.TypeNumeric,
		[]dataset.Value{1.0, 2.0, 3.0, 4.0, 5.0, 1000.0}))
	require.NoError(t, ds.AddColumn("b", dataset.TypeNumeric,
		[]dataset.Value{10.0, 20.0, 30.0, 40.0, 50.0, 9999.0}))
	d, _ := NewDetector(MethodIQR, DefaultConfig(), nil)
	rep, err := d.Detect(ds)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TotalAnomalies)
	assert.Equal(t, 1, rep.AnomalousRows)
	assert.InDelta(t, 100.0/6.0, rep.AnomalyPercentage, 0.01)
}

func TestUnknownMethod(t *testing.T) {
	_, err := NewDetector("dbscan", DefaultConfig(), nil)
	var ue *UnknownMethodError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, Method("dbscan"), ue.Method)
}
