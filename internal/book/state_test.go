package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructmon/internal/model"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Incremental updates followed by a size-0 delete.
func TestState_IncrementalThenDelete(t *testing.T) {
	s := NewState()

	s.Set(model.SideBid, d("100.0"), d("2.0"))
	s.Set(model.SideBid, d("101.0"), d("1.0"))

	top := s.TopN(model.SideBid, 10)
	require.Len(t, top, 2)
	assert.True(t, top[0].Price.Equal(d("101.0")))
	assert.True(t, top[1].Price.Equal(d("100.0")))

	bid, _ := s.SnapshotMoveStats()
	assert.Equal(t, 2, bid.Adds)
	assert.Equal(t, 3.0, bid.SizeDelta)

	s.Set(model.SideBid, d("100.0"), d("0"))
	top = s.TopN(model.SideBid, 10)
	require.Len(t, top, 1)
	assert.True(t, top[0].Price.Equal(d("101.0")))

	bid, _ = s.SnapshotMoveStats()
	assert.Equal(t, 1, bid.Removals)
	assert.Equal(t, 2.0, bid.SizeDelta)
}

// delete on an absent price is a no-op.
func TestState_DeleteAbsentIsNoop(t *testing.T) {
	s := NewState()
	s.Set(model.SideBid, d("100.0"), d("0"))
	top := s.TopN(model.SideBid, 10)
	assert.Empty(t, top)

	bid, _ := s.SnapshotMoveStats()
	assert.Equal(t, model.MoveStats{}, bid)
}

// replacing a level with the same size yields no change.
func TestState_SameSizeReplaceIsNoop(t *testing.T) {
	s := NewState()
	s.Set(model.SideBid, d("100.0"), d("2.0"))
	s.SnapshotMoveStats() // clear the add

	s.Set(model.SideBid, d("100.0"), d("2.0"))
	bid, _ := s.SnapshotMoveStats()
	assert.Equal(t, 0, bid.Changes)
	assert.Equal(t, 0, bid.Adds)
}

// Full-snapshot diff against previous state.
func TestState_ReplaceSnapshotDiff(t *testing.T) {
	s := NewState()
	s.Set(model.SideBid, d("100"), d("1"))
	s.Set(model.SideBid, d("99"), d("2"))
	s.SnapshotMoveStats()

	s.ReplaceSnapshot(model.SideBid, []model.PriceLevel{
		{Price: d("100"), Size: d("3")},
		{Price: d("98"), Size: d("1")},
	})

	top := s.TopN(model.SideBid, 10)
	require.Len(t, top, 2)
	assert.True(t, top[0].Price.Equal(d("100")))
	assert.True(t, top[1].Price.Equal(d("98")))

	bid, _ := s.SnapshotMoveStats()
	assert.Equal(t, 1, bid.Changes)
	assert.Equal(t, 1, bid.Adds)
	assert.Equal(t, 1, bid.Removals)
}

func TestMerge_SumsAndTruncates(t *testing.T) {
	a := []model.PriceLevel{{Price: d("100"), Size: d("1")}, {Price: d("99"), Size: d("2")}}
	b := []model.PriceLevel{{Price: d("100"), Size: d("0.5")}, {Price: d("98"), Size: d("3")}}

	out := Merge(model.SideBid, 2, a, b)
	require.Len(t, out, 2)
	assert.True(t, out[0].Price.Equal(d("100")))
	assert.True(t, out[0].Size.Equal(d("1.5")))
	assert.True(t, out[1].Price.Equal(d("99")))
}
