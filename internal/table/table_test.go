package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodata/internal/schema"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestAppendAndLookup(t *testing.T) {
	tbl := New(schema.FieldClose)
	tbl.Set(day(2), "BTC", schema.FieldClose, 42000, "cm")
	tbl.Set(day(1), "BTC", schema.FieldClose, 41000, "cm")

	v, ok := tbl.Value(day(1), "BTC", schema.FieldClose)
	require.True(t, ok)
	assert.Equal(t, 41000.0, v)

	_, ok = tbl.Value(day(3), "BTC", schema.FieldClose)
	assert.False(t, ok)
}

func TestRowsSortedDeterministically(t *testing.T) {
	tbl := New(schema.FieldClose)
	tbl.Set(day(3), "ETH", schema.FieldClose, 3, "x")
	tbl.Set(day(1), "ETH", schema.FieldClose, 1, "x")
	tbl.Set(day(1), "BTC", schema.FieldClose, 10, "x")
	tbl.Set(day(3), "BTC", schema.FieldClose, 30, "x")

	rows := tbl.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, Key{day(1), "BTC"}, rows[0].Key())
	assert.Equal(t, Key{day(1), "ETH"}, rows[1].Key())
	assert.Equal(t, Key{day(3), "BTC"}, rows[2].Key())
	assert.Equal(t, Key{day(3), "ETH"}, rows[3].Key())
}

func TestMergeFirstWriterWins(t *testing.T) {
	base := New(schema.FieldClose)
	base.Set(day(1), "BTC", schema.FieldClose, 100, "primary")

	other := New(schema.FieldClose, schema.FieldVolume)
	other.Set(day(1), "BTC", schema.FieldClose, 999, "secondary")
	other.Set(day(1), "BTC", schema.FieldVolume, 7, "secondary")
	other.Set(day(2), "BTC", schema.FieldClose, 200, "secondary")

	base.Merge(other)

	v, _ := base.Value(day(1), "BTC", schema.FieldClose)
	assert.Equal(t, 100.0, v, "existing cell must not be overwritten")

	v, ok := base.Value(day(1), "BTC", schema.FieldVolume)
	require.True(t, ok, "new field adopted into existing row")
	assert.Equal(t, 7.0, v)

	v, ok = base.Value(day(2), "BTC", schema.FieldClose)
	require.True(t, ok, "new row adopted")
	assert.Equal(t, 200.0, v)

	row, _ := base.RowAt(day(1), "BTC")
	assert.Equal(t, "primary", row.Sources[schema.FieldClose])
	assert.Equal(t, "secondary", row.Sources[schema.FieldVolume])
}

func TestSeriesSkipsMissingCells(t *testing.T) {
	tbl := New(schema.FieldClose, schema.FieldVolume)
	tbl.Set(day(1), "BTC", schema.FieldClose, 1, "x")
	tbl.Set(day(2), "BTC", schema.FieldVolume, 5, "x")
	tbl.Set(day(3), "BTC", schema.FieldClose, 3, "x")

	series := tbl.Series("BTC", schema.FieldClose)
	require.Len(t, series, 2)
	assert.Equal(t, day(1), series[0].Timestamp)
	assert.Equal(t, day(3), series[1].Timestamp)
}

func TestValidateRejectsDuplicateKeys(t *testing.T) {
	tbl := New(schema.FieldClose)
	r1 := NewRow(day(1), "BTC")
	r1.Set(schema.FieldClose, 1, "a")
	r2 := NewRow(day(1), "BTC")
	r2.Set(schema.FieldClose, 2, "b")
	tbl.Append(r1)
	tbl.Append(r2)

	assert.Error(t, tbl.Validate())
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := New(schema.FieldClose)
	tbl.Set(day(1), "BTC", schema.FieldClose, 1, "x")

	clone := tbl.Clone()
	clone.Set(day(1), "BTC", schema.FieldClose, 99, "y")

	v, _ := tbl.Value(day(1), "BTC", schema.FieldClose)
	assert.Equal(t, 1.0, v)
}
