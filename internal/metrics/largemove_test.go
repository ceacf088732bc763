package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructmon/internal/model"
)

func lv(price, size float64) model.PriceLevel {
	return model.PriceLevel{
		Price: decimal.NewFromFloat(price),
		Size:  decimal.NewFromFloat(size),
	}
}

// Qualification threshold: max(baseMmNotional/windowLevels, floor).
func TestDetectLargeMoves_Threshold(t *testing.T) {
	prev := []model.PriceLevel{lv(101, 50)}

	// 50 -> 200: notionalDelta = 150*101 = 15150 < 30000, not reported.
	moves := DetectLargeMoves(model.SideAsk, prev, []model.PriceLevel{lv(101, 200)}, 100, 30000, 200, 2000)
	assert.Empty(t, moves)

	// 50 -> 500: notionalDelta = 450*101 = 45450 >= 30000, reported.
	moves = DetectLargeMoves(model.SideAsk, prev, []model.PriceLevel{lv(101, 500)}, 100, 30000, 200, 2000)
	require.Len(t, moves, 1)
	assert.Equal(t, 450.0, moves[0].DeltaSize)
	assert.InDelta(t, 45450.0, moves[0].NotionalDelta, 1e-9)
	assert.InDelta(t, 100.0, moves[0].BpsFromMid, 1e-9)
}

// A removed level qualifies on its previous size's notional.
func TestDetectLargeMoves_Removal(t *testing.T) {
	prev := []model.PriceLevel{lv(100.5, 400), lv(101, 1)}
	next := []model.PriceLevel{lv(101, 1)}

	moves := DetectLargeMoves(model.SideAsk, prev, next, 100, 30000, 200, 2000)
	require.Len(t, moves, 1)
	assert.Equal(t, 400.0, moves[0].PrevSize)
	assert.Equal(t, 0.0, moves[0].NextSize)
	assert.Equal(t, -400.0, moves[0].DeltaSize)
}

func TestDetectLargeMoves_SortedByNotional(t *testing.T) {
	prev := []model.PriceLevel{}
	next := []model.PriceLevel{lv(100.1, 500), lv(100.2, 900)}

	moves := DetectLargeMoves(model.SideAsk, prev, next, 100, 30000, 200, 2000)
	require.Len(t, moves, 2)
	assert.True(t, moves[0].NotionalDelta >= moves[1].NotionalDelta)
}

func TestTopNMoves(t *testing.T) {
	moves := make([]model.LevelMove, 12)
	assert.Len(t, TopNMoves(moves, 8), 8)
	assert.Len(t, TopNMoves(moves[:3], 8), 3)
}
