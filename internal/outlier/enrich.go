package outlier

import "microstructmon/internal/model"

// Context carries the per-venue book context needed to enrich an outlier
// candidate into a full model.OutlierRecord: imbalance, spread, and
// microprice over the top-20 levels of that venue's book.
type Context struct {
	Mid     float64
	BestBid float64
	BestAsk float64
	BidTop  []model.PriceLevel // top-20
	AskTop  []model.PriceLevel // top-20
	Vol1m   float64
	Vol5m   float64
	Book    string
}

// Enrich builds the transient enrichment fields on a candidate record.
func Enrich(ctx Context) (bidDepth, askDepth, imbalance, spreadBps, microprice float64) {
	for _, lv := range ctx.BidTop {
		bidDepth += lv.SizeF()
	}
	for _, lv := range ctx.AskTop {
		askDepth += lv.SizeF()
	}

	total := bidDepth + askDepth
	if total > 0 {
		imbalance = (bidDepth - askDepth) / total
	}

	if ctx.Mid > 0 {
		spreadBps = (ctx.BestAsk - ctx.BestBid) / ctx.Mid * 10000
	}

	var bestBidSize, bestAskSize float64
	if len(ctx.BidTop) > 0 {
		bestBidSize = ctx.BidTop[0].SizeF()
	}
	if len(ctx.AskTop) > 0 {
		bestAskSize = ctx.AskTop[0].SizeF()
	}
	sizeSum := bestBidSize + bestAskSize
	if sizeSum > 0 {
		microprice = (ctx.BestAsk*bestBidSize + ctx.BestBid*bestAskSize) / sizeSum
	} else {
		microprice = ctx.Mid
	}
	return
}

// BuildRecord converts a detector Candidate plus book context into a full
// enriched OutlierRecord.
func BuildRecord(ts int64, symbol model.Symbol, market model.Market, exchange model.Venue, side model.Side, c Candidate, ctx Context) model.OutlierRecord {
	bidDepth, askDepth, imbalance, spreadBps, microprice := Enrich(ctx)

	var bps float64
	if ctx.Mid > 0 {
		bps = abs(c.Level.PriceF()-ctx.Mid) / ctx.Mid * 10000
	}

	return model.OutlierRecord{
		Ts:         ts,
		Symbol:     symbol,
		Market:     market,
		Exchange:   exchange,
		Side:       side,
		Price:      c.Level.PriceF(),
		Size:       c.Level.SizeF(),
		ZScore:     c.ZScore,
		BpsFromMid: bps,
		Mid:        ctx.Mid,
		BestBid:    ctx.BestBid,
		BestAsk:    ctx.BestAsk,
		SpreadBps:  spreadBps,
		BidDepth:   bidDepth,
		AskDepth:   askDepth,
		Imbalance:  imbalance,
		Microprice: microprice,
		LevelRank:  c.Rank,
		Vol1m:      ctx.Vol1m,
		Vol5m:      ctx.Vol5m,
		Book:       ctx.Book,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
