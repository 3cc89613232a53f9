package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFisherExact(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		want  float64
	}{
		{"tea tasting", Table{A: 3, B: 1, C: 1, D: 3}, 34.0 / 70.0},
		{"skewed", Table{A: 8, B: 2, C: 1, D: 5}, 280.0 / 8008.0},
		{"small enriched", Table{A: 2, B: 1, C: 0, D: 2}, 0.4},
		{"small depleted", Table{A: 1, B: 2, C: 2, D: 0}, 0.4},
		{"empty row", Table{A: 0, B: 0, C: 3, D: 4}, 1},
		{"empty column", Table{A: 0, B: 5, C: 0, D: 4}, 1},
		{"empty table", Table{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FisherExact(tt.table)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestFisherExact_Symmetric(t *testing.T) {
	p1, err := FisherExact(Table{A: 8, B: 2, C: 1, D: 5})
	require.NoError(t, err)
	p2, err := FisherExact(Table{A: 2, B: 8, C: 5, D: 1})
	require.NoError(t, err)
	assert.InDelta(t, p1, p2, 1e-12)
}

func TestFisherExact_NeverAboveOne(t *testing.T) {
	for a := 0; a <= 6; a++ {
		for b := 0; b <= 6; b++ {
			p, err := FisherExact(Table{A: a, B: b, C: 3, D: 3})
			require.NoError(t, err)
			assert.LessOrEqual(t, p, 1.0)
			assert.Greater(t, p, 0.0)
		}
	}
}

func TestFisherExact_LargeTable(t *testing.T) {
	p, err := FisherExact(Table{A: 500, B: 10, C: 10, D: 5000})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.Less(t, p, 1e-100)
}

func TestFisherExact_Negative(t *testing.T) {
	_, err := FisherExact(Table{A: 1, B: 1, C: 1, D: -1})
	assert.Error(t, err)
}

func TestTable_Total(t *testing.T) {
	assert.Equal(t, 10, Table{A: 1, B: 2, C: 3, D: 4}.Total())
}

func TestFisherTest_Memoizes(t *testing.T) {
	f, err := NewFisherTest(8)
	require.NoError(t, err)

	tbl := Table{A: 3, B: 1, C: 1, D: 3}
	p1, err := f.PValue(tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())

	p2, err := f.PValue(tbl)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, f.Len())
}

func TestNewFisherTest_InvalidSize(t *testing.T) {
	_, err := NewFisherTest(0)
	assert.Error(t, err)
}
