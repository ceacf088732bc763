package span

import (
	"strings"

	"microstructmon/internal/model"
)

const tradeProximityBps = 5.0

// OnTrade accumulates trade flow into every active span whose
// (symbol, market, exchange) match (exchange compared case-insensitively)
// and whose span price is within 5 bps of the trade price, using
// mid=(spanPrice+tradePrice)/2. Best-effort: trades observed after a
// span has already closed are ignored.
func (t *Tracker) OnTrade(tr model.Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, a := range t.active {
		if a.key.Symbol != tr.Symbol || a.key.Market != tr.Market {
			continue
		}
		if !strings.EqualFold(string(a.key.Exchange), string(tr.Exchange)) {
			continue
		}

		mid := (a.key.Price + tr.Price) / 2
		if mid == 0 {
			continue
		}
		bps := absF(a.key.Price-tr.Price) / mid * 10000
		if bps > tradeProximityBps {
			continue
		}

		switch tr.Side {
		case model.TradeBuy:
			a.tradeBuyQty += tr.Qty
		case model.TradeSell:
			a.tradeSellQty += tr.Qty
		}
		a.tradeCount++
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
