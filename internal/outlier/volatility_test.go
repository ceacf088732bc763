package outlier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMidHistory_Volatility(t *testing.T) {
	h := NewMidHistory()
	h.Append(0, 100)
	h.Append(1000, 110)
	h.Append(2000, 100)

	r1 := math.Log(110.0 / 100.0)
	r2 := math.Log(100.0 / 110.0)
	want := math.Sqrt((r1*r1 + r2*r2) / 2)

	assert.InDelta(t, want, h.Volatility(2000, Window1m), 1e-12)
}

// Two mid points yield one return and a nonzero vol.
func TestMidHistory_SingleReturn(t *testing.T) {
	h := NewMidHistory()
	h.Append(0, 100)
	h.Append(1000, 110)

	r := math.Log(110.0 / 100.0)
	assert.InDelta(t, math.Sqrt(r*r), h.Volatility(1000, Window1m), 1e-12)
}

func TestMidHistory_SinglePointHasNoVol(t *testing.T) {
	h := NewMidHistory()
	h.Append(0, 100)
	assert.Equal(t, 0.0, h.Volatility(0, Window1m))
}

func TestMidHistory_WindowExcludesOldPoints(t *testing.T) {
	h := NewMidHistory()
	h.Append(0, 50) // outside the 1m window at now=120s
	h.Append(100_000, 100)
	h.Append(110_000, 110)
	h.Append(120_000, 100)

	r1 := math.Log(110.0 / 100.0)
	r2 := math.Log(100.0 / 110.0)
	want := math.Sqrt((r1*r1 + r2*r2) / 2)

	assert.InDelta(t, want, h.Volatility(120_000, Window1m), 1e-12)
}

func TestMidHistory_AppendPrunesBeyondRetention(t *testing.T) {
	h := NewMidHistory()
	h.Append(0, 100)
	h.Append(midHistoryRetention+1000, 110)

	// The first point fell out of the 5m retention, leaving one point
	// and therefore no computable return even over the widest window.
	assert.Equal(t, 0.0, h.Volatility(midHistoryRetention+1000, Window5m))
}
