package metrics

import (
	"microstructmon/internal/book"
	"microstructmon/internal/model"
	"microstructmon/internal/outlier"
)

// perpPath computes per-venue perp metrics with
// MoveStats snapshot-and-reset, a merged aggregated MetricsPoint,
// large-move detection against the previous tick's merged perp book, and
// persistence/broadcast. It returns the enriched outlier candidates for
// the caller's single per-tick OutlierSpanTracker.Update call.
func (e *Engine) perpPath(now int64, sym model.Symbol) []model.OutlierRecord {
	aState := e.bookFor(model.VenueA, model.MarketPerp, sym)
	bState := e.bookFor(model.VenueB, model.MarketPerp, sym)

	exchanges := make(map[model.Venue]model.ExchangeMetrics)
	var aggMoveStats model.MoveStats
	var enriched []model.OutlierRecord

	var aBid, aAsk, bBid, bAsk []model.PriceLevel
	if aState != nil {
		aBid = aState.TopN(model.SideBid, e.depth)
		aAsk = aState.TopN(model.SideAsk, e.depth)
		em := buildExchangeMetrics(model.VenueA, aBid, aAsk, e.distanceBinsBps, e.baseMMNotional, outlier.ZMetrics)
		exchanges[model.VenueA] = em
		bidStats, askStats := aState.SnapshotMoveStats()
		aggMoveStats.Add(bidStats)
		aggMoveStats.Add(askStats)
		enriched = append(enriched, e.runPerpOutliers(now, sym, model.VenueA, aBid, aAsk)...)
	}
	if bState != nil {
		bBid = bState.TopN(model.SideBid, e.depth)
		bAsk = bState.TopN(model.SideAsk, e.depth)
		em := buildExchangeMetrics(model.VenueB, bBid, bAsk, e.distanceBinsBps, e.baseMMNotional, outlier.ZMetrics)
		exchanges[model.VenueB] = em
		bidStats, askStats := bState.SnapshotMoveStats()
		aggMoveStats.Add(bidStats)
		aggMoveStats.Add(askStats)
		enriched = append(enriched, e.runPerpOutliers(now, sym, model.VenueB, bBid, bAsk)...)
	}

	mergedBid := book.Merge(model.SideBid, e.depth, aBid, bBid)
	mergedAsk := book.Merge(model.SideAsk, e.depth, aAsk, bAsk)
	mergedMid := mid(mergedBid, mergedAsk)

	// Empty side -> no MetricsPoint this tick; the previous
	// merged book is kept so large-move diffing resumes cleanly once
	// both sides are back.
	if len(mergedBid) == 0 || len(mergedAsk) == 0 {
		return enriched
	}

	point := model.MetricsPoint{
		Ts: now, Symbol: sym, Market: model.MarketPerp,
		Depth: e.depth, BaseNotional: e.baseMMNotional,
		Mid: mergedMid, MoveStats: aggMoveStats, Exchanges: exchanges,
	}
	if len(mergedBid) > 0 {
		point.BestBid = mergedBid[0].PriceF()
	}
	if len(mergedAsk) > 0 {
		point.BestAsk = mergedAsk[0].PriceF()
	}
	point.Bid = bucketize(mergedBid, mergedMid, e.distanceBinsBps, e.baseMMNotional, outlier.ZMetrics)
	point.Ask = bucketize(mergedAsk, mergedMid, e.distanceBinsBps, e.baseMMNotional, outlier.ZMetrics)

	// Only the perp merged book is retained and diffed for large moves;
	// spot books are not.
	prev := e.prevPerp[sym]
	bidMoves := DetectLargeMoves(model.SideBid, prev.bid, mergedBid, mergedMid, e.baseMMNotional, e.largeMoveWindowBps, e.largeMoveFloor)
	askMoves := DetectLargeMoves(model.SideAsk, prev.ask, mergedAsk, mergedMid, e.baseMMNotional, e.largeMoveWindowBps, e.largeMoveFloor)
	for i := range bidMoves {
		bidMoves[i].Symbol = sym
		bidMoves[i].Ts = now
	}
	for i := range askMoves {
		askMoves[i].Symbol = sym
		askMoves[i].Ts = now
	}
	moves := append(append([]model.LevelMove{}, bidMoves...), askMoves...)
	e.prevPerp[sym] = mergedBook{bid: mergedBid, ask: mergedAsk}

	if len(moves) > 0 {
		e.store.AppendLargeMoves(moves)
	}
	e.store.AppendMetrics(point)

	if e.bc != nil {
		// Top 8 per side, riding inside the perpBook payload.
		broadcastMoves := append(TopNMoves(bidMoves, 8), TopNMoves(askMoves, 8)...)
		e.bc.Broadcast("metrics", point)
		e.bc.Broadcast("perpBook", map[string]any{
			"symbol": sym, "mid": mergedMid, "bids": mergedBid, "asks": mergedAsk,
			"depth": e.depth, "largeMoves": broadcastMoves,
		})
	}

	return enriched
}

// runPerpOutliers runs the detector over one venue's perp book, persists
// bare outlier records, and returns the enriched form for the span
// tracker (same semantics as the spot path).
func (e *Engine) runPerpOutliers(now int64, sym model.Symbol, venue model.Venue, bidLv, askLv []model.PriceLevel) []model.OutlierRecord {
	if len(bidLv) == 0 && len(askLv) == 0 {
		return nil
	}
	m := mid(bidLv, askLv)
	if m <= 0 {
		// No usable mid this tick -> no outliers for this venue.
		return nil
	}
	history := e.midHistoryFor(venue, model.MarketPerp, sym)
	history.Append(now, m)

	ctx := outlier.Context{
		Mid: m, Vol1m: history.Volatility(now, outlier.Window1m), Vol5m: history.Volatility(now, outlier.Window5m),
		Book: "Perp",
	}
	if len(bidLv) > 0 {
		ctx.BestBid = bidLv[0].PriceF()
		ctx.BidTop = top(bidLv, outlier.TopNForEnrichment)
	}
	if len(askLv) > 0 {
		ctx.BestAsk = askLv[0].PriceF()
		ctx.AskTop = top(askLv, outlier.TopNForEnrichment)
	}

	var bare, enriched []model.OutlierRecord
	for _, c := range outlier.Detect(bidLv, outlier.ZOutlier) {
		rec := outlier.BuildRecord(now, sym, model.MarketPerp, venue, model.SideBid, c, ctx)
		bare = append(bare, stripEnrichment(rec))
		enriched = append(enriched, rec)
	}
	for _, c := range outlier.Detect(askLv, outlier.ZOutlier) {
		rec := outlier.BuildRecord(now, sym, model.MarketPerp, venue, model.SideAsk, c, ctx)
		bare = append(bare, stripEnrichment(rec))
		enriched = append(enriched, rec)
	}
	if len(bare) > 0 {
		e.store.AppendOutliers(bare)
		if e.metrics != nil {
			e.metrics.OutliersFound.Add(float64(len(bare)))
		}
	}
	return enriched
}
