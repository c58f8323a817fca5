package privacy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

func textColumn(t *testing.T, name string, vals ...string) *dataset.Dataset {
	t.Helper()
	ds := dataset.New("test")
	values := make([]dataset.Value, len(vals))
	for i, v := range vals {
		values[i] = v
	}
	require.NoError(t, ds.AddColumn(name, dataset.TypeText, values))
	return ds
}

func TestDetectByName(t *testing.T) {
	ds := textColumn(t, "customer_email", "whatever")
	det := NewMasker(nil).Detect(ds)
	require.Len(t, det, 1)
	assert.Equal(t, KindEmail, det[0].Kind)
	assert.True(t, det[0].ByName)
}

func TestDetectByValuePattern(t *testing.T) {
	ds := textColumn(t, "contact", "a@x.com", "b@y.org", "not-an-email", "c@z.io")
	det := NewMasker(nil).Detect(ds)
	require.Len(t, det, 1)
	assert.Equal(t, KindEmail, det[0].Kind)
	assert.False(t, det[0].ByName)
	assert.InDelta(t, 0.75, det[0].Confidence, 0.001)
}

func TestDetectBelowRateIgnored(t *testing.T) {
	ds := textColumn(t, "notes", "a@x.com", "plain", "text", "more", "words")
	det := NewMasker(nil).Detect(ds)
	assert.Empty(t, det)
}

func TestDetectSSN(t *testing.T) {
	ds := textColumn(t, "code", "123-45-6789", "987-65-4321")
	det := NewMasker(nil).Detect(ds)
	require.Len(t, det, 1)
	assert.Equal(t, KindSSN, det[0].Kind)
}

func TestPartialMaskEmail(t *testing.T) {
	assert.Equal(t, "a****@example.com", partialMask("alice@example.com", KindEmail))
}

func TestPartialMaskKeepsLastFour(t *testing.T) {
	assert.Equal(t, "*******6789", partialMask("123-45-6789", KindSSN))
}

func TestMaskStrategies(t *testing.T) {
	ds := textColumn(t, "email", "alice@example.com", "bob@example.com")
	m := NewMasker(nil)
	det := m.Detect(ds)
	require.Len(t, det, 1)

	full, err := m.Mask(ds, det, StrategyFull)
	require.NoError(t, err)
	c, _ := full.Column("email")
	assert.Equal(t, strings.Repeat("*", 17), c.Values[0])

	hashed, err := m.Mask(ds, det, StrategyHash)
	require.NoError(t, err)
	c, _ = hashed.Column("email")
	h := c.Values[0].(string)
	assert.Len(t, h, 16)
	// Same input always hashes the same.
	hashed2, _ := m.Mask(ds, det, StrategyHash)
	c2, _ := hashed2.Column("email")
	assert.Equal(t, h, c2.Values[0])

	removed, err := m.Mask(ds, det, StrategyRemove)
	require.NoError(t, err)
	assert.False(t, removed.HasColumn("email"))

	_, err = m.Mask(ds, det, Strategy("bogus"))
	assert.Error(t, err)
}

func TestMaskDoesNotMutateInput(t *testing.T) {
	ds := textColumn(t, "email", "alice@example.com")
	m := NewMasker(nil)
	_, err := m.Mask(ds, m.Detect(ds), StrategyFull)
	require.NoError(t, err)
	c, _ := ds.Column("email")
	assert.Equal(t, "alice@example.com", c.Values[0])
}

func TestMinimize(t *testing.T) {
	ds := dataset.New("d")
	require.NoError(t, ds.AddColumn("keep", dataset.TypeText, []dataset.Value{"a"}))
	require.NoError(t, ds.AddColumn("drop", dataset.TypeText, []dataset.Value{"b"}))
	out := Minimize(ds, []string{"keep"}, 0)
	assert.Equal(t, []string{"keep"}, out.ColumnNames())
	assert.True(t, ds.HasColumn("drop"), "input must be unchanged")
}

func TestMinimizeCapsRows(t *testing.T) {
	ds := dataset.New("d")
	require.NoError(t, ds.AddColumn("keep", dataset.TypeText, []dataset.Value{"a", "b", "c"}))
	out := Minimize(ds, []string{"keep"}, 2)
	c, ok := out.Column("keep")
	require.True(t, ok)
	assert.Equal(t, []dataset.Value{"a", "b"}, c.Values)
}
