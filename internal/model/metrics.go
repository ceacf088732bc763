package model

// DistanceBucket pairs a large level with its notional for the largeLevels
// summary on a MetricsPoint.
type DistanceBucket struct {
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	Notional    float64 `json:"notional"`
	DistanceBps float64 `json:"distanceBps"`
}

// SideMetrics is the per-side half of a MetricsPoint or ExchangeMetrics
// block.
type SideMetrics struct {
	TotalNotional     float64          `json:"totalNotional"`
	DistanceBinCounts []int            `json:"distanceBinCounts"` // length len(DistanceBinsBps)+1
	MaxDistanceBps    float64          `json:"maxDistanceBps"`
	AvgDistanceBps    float64          `json:"avgDistanceBps"`
	OutlierCount      int              `json:"outlierCount"`
	LargeLevels       []DistanceBucket `json:"largeLevels,omitempty"` // up to 5, sorted desc by notional
}

// ExchangeMetrics is the optional per-venue sub-block embedded in a
// MetricsPoint's `exchanges` map. It carries the same shape as the
// aggregated metrics minus largeLevels/moveStats.
type ExchangeMetrics struct {
	Venue   Venue       `json:"venue"`
	BestBid float64     `json:"bestBid"`
	BestAsk float64     `json:"bestAsk"`
	Mid     float64     `json:"mid"`
	Bid     SideMetrics `json:"bid"`
	Ask     SideMetrics `json:"ask"`
}

// MetricsPoint is one per symbol per tick.
type MetricsPoint struct {
	Ts           int64                     `json:"ts"`
	Symbol       Symbol                    `json:"symbol"`
	Market       Market                    `json:"market"`
	BestBid      float64                   `json:"bestBid"`
	BestAsk      float64                   `json:"bestAsk"`
	Mid          float64                   `json:"mid"`
	Depth        int                       `json:"depth"`
	BaseNotional float64                   `json:"baseNotional"`
	Bid          SideMetrics               `json:"bid"`
	Ask          SideMetrics               `json:"ask"`
	MoveStats    MoveStats                 `json:"moveStats"`
	Exchanges    map[Venue]ExchangeMetrics `json:"exchanges,omitempty"` // absent venues are simply missing keys
}

// LevelMove is a single qualifying large move between two consecutive
// merged books.
type LevelMove struct {
	Ts            int64   `json:"ts"`
	Symbol        Symbol  `json:"symbol"`
	Side          Side    `json:"side"`
	Price         float64 `json:"price"`
	PrevSize      float64 `json:"prevSize"`
	NextSize      float64 `json:"nextSize"`
	DeltaSize     float64 `json:"deltaSize"`
	NotionalDelta float64 `json:"notionalDelta"`
	BpsFromMid    float64 `json:"bpsFromMid"`
}
