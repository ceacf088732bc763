package model

// OutlierRecord is one outlying resting level observed on one tick.
// The transient enrichment fields are populated only when
// the record is handed to the span tracker, never when appended bare to
// the outlier store.
type OutlierRecord struct {
	Ts         int64   `json:"ts"`
	Symbol     Symbol  `json:"symbol"`
	Market     Market  `json:"market"`
	Exchange   Venue   `json:"exchange"`
	Side       Side    `json:"side"`
	Price      float64 `json:"price"`
	Size       float64 `json:"size"`
	ZScore     float64 `json:"zScore"`
	BpsFromMid float64 `json:"bpsFromMid"`

	// Transient enrichment — used only for span tracking, never persisted
	// on the bare outlier row.
	Mid        float64 `json:"mid,omitempty"`
	BestBid    float64 `json:"bestBid,omitempty"`
	BestAsk    float64 `json:"bestAsk,omitempty"`
	SpreadBps  float64 `json:"spreadBps,omitempty"`
	BidDepth   float64 `json:"bidDepth,omitempty"`
	AskDepth   float64 `json:"askDepth,omitempty"`
	Imbalance  float64 `json:"imbalance,omitempty"`
	Microprice float64 `json:"microprice,omitempty"`
	LevelRank  int     `json:"levelRank,omitempty"`
	Vol1m      float64 `json:"vol1m,omitempty"`
	Vol5m      float64 `json:"vol5m,omitempty"`
	Book       string  `json:"book,omitempty"` // opaque book snapshot label
}

// SpanKey identifies a span's identity across ticks.
type SpanKey struct {
	Symbol   Symbol  `json:"symbol"`
	Market   Market  `json:"market"`
	Exchange Venue   `json:"exchange"`
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`
}

// SpanEndpoint captures the book/flow context snapshot taken at span open
// or span close.
type SpanEndpoint struct {
	BestBid    float64 `json:"bestBid"`
	BestAsk    float64 `json:"bestAsk"`
	SpreadBps  float64 `json:"spreadBps"`
	Imbalance  float64 `json:"imbalance"`
	BidDepth   float64 `json:"bidDepth"`
	AskDepth   float64 `json:"askDepth"`
	Microprice float64 `json:"microprice"`
	LevelRank  int     `json:"levelRank"`
	Vol1m      float64 `json:"vol1m"`
	Vol5m      float64 `json:"vol5m"`
	Book       string  `json:"book"`
}

// OutlierSpan is the durable record of an outlier's contiguous lifetime.
type OutlierSpan struct {
	ID           string       `json:"id"`
	StartTs      int64        `json:"startTs"`
	EndTs        int64        `json:"endTs"`
	DurationMs   int64        `json:"durationMs"`
	Key          SpanKey      `json:"key"`
	MaxZ         float64      `json:"maxZ"`
	AvgZ         float64      `json:"avgZ"`
	Count        int          `json:"count"`
	StartSize    float64      `json:"startSize"`
	EndSize      float64      `json:"endSize"`
	FilledPct    float64      `json:"filledPct"`
	StartBps     float64      `json:"startBps"`
	EndBps       float64      `json:"endBps"`
	StartBook    string       `json:"startBook"`
	EndBook      string       `json:"endBook"`
	Start        SpanEndpoint `json:"start"`
	End          SpanEndpoint `json:"end"`
	SizeDelta    float64      `json:"sizeDelta"`
	SizeDeltaPct float64      `json:"sizeDeltaPct"`
	TradeBuyQty  float64      `json:"tradeBuyQty"`
	TradeSellQty float64      `json:"tradeSellQty"`
	TradeCount   int          `json:"tradeCount"`
}
