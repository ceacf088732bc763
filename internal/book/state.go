// Package book maintains per-venue×market×symbol order book state and
// the LevelTracker that accumulates per-tick change counters for it.
package book

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"microstructmon/internal/model"
)

type level struct {
	price decimal.Decimal
	size  decimal.Decimal
}

// key canonicalizes a price into a stable map key regardless of how many
// decimal places the originating venue message used for this particular
// tick (e.g. "100.0" and "100.00" must collide). Using decimal.Decimal
// directly as a map key does not do this — two decimals holding the same
// numeric value but built from separate parses carry independent internal
// big.Int allocations, so Go's struct equality (pointer identity on that
// field) would treat them as different keys.
func key(price decimal.Decimal) string {
	return price.StringFixed(10)
}

// State is a mutable {price → size} map for both sides of one book,
// owned exclusively by one feed adapter. Reads (sorted top-N snapshots)
// are safe from any goroutine via the RWMutex.
//
// Invariant: no entry has size <= 0; a size-0 update deletes the entry.
type State struct {
	mu     sync.RWMutex
	bids   map[string]level
	asks   map[string]level
	bidTrk LevelTracker
	askTrk LevelTracker
}

// NewState creates an empty book.
func NewState() *State {
	return &State{
		bids: make(map[string]level),
		asks: make(map[string]level),
	}
}

// Set applies a single [price, size] update to one side. size <= 0
// deletes the entry; deleting an absent price is a no-op and produces no
// tracker event.
func (s *State) Set(side model.Side, price, size decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, trk := s.sideMap(side)
	k := key(price)
	sizeF, _ := size.Float64()

	prev, existed := m[k]
	var prevF float64
	if existed {
		prevF, _ = prev.size.Float64()
	}

	if sizeF <= 0 {
		if !existed {
			return
		}
		delete(m, k)
		trk.Apply(prevF, 0)
		return
	}

	m[k] = level{price: price, size: size}
	trk.Apply(prevF, sizeF)
}

// ReplaceSnapshot diffs a full top-N snapshot against the existing side,
// used by SnapshotWS/SnapshotPoll adapters: every level in next is
// set, and every previously known price absent from next is
// removed (emitted to the tracker as nextSize=0, prevSize=lastSize).
func (s *State) ReplaceSnapshot(side model.Side, next []model.PriceLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, trk := s.sideMap(side)

	seen := make(map[string]struct{}, len(next))
	for _, lv := range next {
		k := key(lv.Price)
		seen[k] = struct{}{}

		prev, existed := m[k]
		newF, _ := lv.Size.Float64()
		var prevF float64
		if existed {
			prevF, _ = prev.size.Float64()
		}
		if prevF != newF {
			trk.Apply(prevF, newF)
		}
		m[k] = level{price: lv.Price, size: lv.Size}
	}
	for k, prev := range m {
		if _, stillPresent := seen[k]; !stillPresent {
			prevF, _ := prev.size.Float64()
			delete(m, k)
			trk.Apply(prevF, 0)
		}
	}
}

func (s *State) sideMap(side model.Side) (map[string]level, *LevelTracker) {
	if side == model.SideBid {
		return s.bids, &s.bidTrk
	}
	return s.asks, &s.askTrk
}

// TopN returns up to n sorted levels for the given side: bids descending
// by price, asks ascending.
func (s *State) TopN(side model.Side, n int) []model.PriceLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, _ := s.sideMap(side)
	out := make([]model.PriceLevel, 0, len(m))
	for _, lv := range m {
		out = append(out, model.PriceLevel{Price: lv.price, Size: lv.size})
	}

	if side == model.SideBid {
		sort.Slice(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// SnapshotMoveStats returns and resets both sides' accumulated MoveStats.
func (s *State) SnapshotMoveStats() (bid, ask model.MoveStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bidTrk.Snapshot(), s.askTrk.Snapshot()
}
