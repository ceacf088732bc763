package model

// Trade is a normalized trade print from any venue/market.
type Trade struct {
	Ts       int64     `json:"ts"`
	Symbol   Symbol    `json:"symbol"`
	Market   Market    `json:"market"`
	Exchange Venue     `json:"exchange"`
	Price    float64   `json:"price"`
	Qty      float64   `json:"qty"`
	Side     TradeSide `json:"side"`
}

// Liquidation is a normalized forced-liquidation event.
type Liquidation struct {
	Ts       int64     `json:"ts"`
	Symbol   Symbol    `json:"symbol"`
	Market   Market    `json:"market"`
	Exchange Venue     `json:"exchange"`
	Price    float64   `json:"price"`
	Qty      float64   `json:"qty"`
	Side     TradeSide `json:"side"`
}

// OiFunding is a normalized open-interest/funding tick.
type OiFunding struct {
	Ts              int64   `json:"ts"`
	Symbol          Symbol  `json:"symbol"`
	Exchange        Venue   `json:"exchange"`
	OpenInterest    float64 `json:"openInterest"`
	FundingRate     float64 `json:"fundingRate"`
	NextFundingTime int64   `json:"nextFundingTime"`
}
