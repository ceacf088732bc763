package model

import "github.com/shopspring/decimal"

// PriceLevel is a single resting level on one side of a book.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// PriceF returns the level's price as a float64 for metrics arithmetic.
func (l PriceLevel) PriceF() float64 { f, _ := l.Price.Float64(); return f }

// SizeF returns the level's size as a float64 for metrics arithmetic.
func (l PriceLevel) SizeF() float64 { f, _ := l.Size.Float64(); return f }

// MoveStats accumulates LevelTracker deltas for one side over a tick
// interval.
type MoveStats struct {
	Adds      int     `json:"adds"`
	Changes   int     `json:"changes"`
	Removals  int     `json:"removals"`
	SizeDelta float64 `json:"sizeDelta"`
}

// Add merges another MoveStats into this one (used to aggregate per-venue
// MoveStats into a merged-book total).
func (m *MoveStats) Add(o MoveStats) {
	m.Adds += o.Adds
	m.Changes += o.Changes
	m.Removals += o.Removals
	m.SizeDelta += o.SizeDelta
}
