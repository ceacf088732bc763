package outlier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"microstructmon/internal/model"
)

func levels(sizes ...float64) []model.PriceLevel {
	out := make([]model.PriceLevel, len(sizes))
	for i, s := range sizes {
		out[i] = model.PriceLevel{
			Price: decimal.NewFromFloat(100 + float64(i)),
			Size:  decimal.NewFromFloat(s),
		}
	}
	return out
}

// No outliers at Z=5 across three heavy-tailed size distributions.
func TestDetect_NoOutlierAtZ5(t *testing.T) {
	cases := [][]float64{
		{10, 10, 10, 10, 1000},
		{1, 1, 1, 1, 100},
		{1, 1, 1, 1, 1, 1, 1, 1, 1, 1000},
	}
	for _, sizes := range cases {
		got := Detect(levels(sizes...), ZOutlier)
		assert.Empty(t, got)
	}
}

func TestDetect_EmptySide(t *testing.T) {
	assert.Nil(t, Detect(nil, ZOutlier))
}

func TestDetect_SingleLevelSigmaZero(t *testing.T) {
	got := Detect(levels(42), ZOutlier)
	assert.Nil(t, got)
}

func bigOutlierSizes() []float64 {
	sizes := make([]float64, 30)
	sizes[0] = 1_000_000
	for i := 1; i < len(sizes); i++ {
		sizes[i] = 1
	}
	return sizes
}

func TestDetect_QualifyingOutlier(t *testing.T) {
	got := Detect(levels(bigOutlierSizes()...), ZOutlier)
	if assert.Len(t, got, 1) {
		assert.Equal(t, 1, got[0].Rank)
		assert.GreaterOrEqual(t, got[0].ZScore, ZOutlier)
	}
}

func TestCountAtOrAbove_ZMetrics(t *testing.T) {
	n := CountAtOrAbove(levels(bigOutlierSizes()...), ZMetrics)
	assert.Equal(t, 1, n)
}
