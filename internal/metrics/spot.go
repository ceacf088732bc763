package metrics

import (
	"microstructmon/internal/book"
	"microstructmon/internal/model"
	"microstructmon/internal/outlier"
)

// spotPath merges the venue A/B spot books, runs per-venue outlier
// detection, persists bare records, and broadcasts the merged book. It
// returns the enriched candidates for the caller to fold into this
// tick's single OutlierSpanTracker.Update call.
func (e *Engine) spotPath(now int64, sym model.Symbol) []model.OutlierRecord {
	aState := e.bookFor(model.VenueA, model.MarketSpot, sym)
	bState := e.bookFor(model.VenueB, model.MarketSpot, sym)

	var aBid, aAsk, bBid, bAsk []model.PriceLevel
	if aState != nil {
		aBid = aState.TopN(model.SideBid, e.depth)
		aAsk = aState.TopN(model.SideAsk, e.depth)
	}
	if bState != nil {
		bBid = bState.TopN(model.SideBid, e.depth)
		bAsk = bState.TopN(model.SideAsk, e.depth)
	}

	mergedBid := book.Merge(model.SideBid, e.depth, aBid, bBid)
	mergedAsk := book.Merge(model.SideAsk, e.depth, aAsk, bAsk)
	mergedMid := mid(mergedBid, mergedAsk)

	var allOutliers []model.OutlierRecord
	var enriched []model.OutlierRecord

	e.detectSpotVenue(now, sym, model.VenueA, aBid, aAsk, &allOutliers, &enriched)
	e.detectSpotVenue(now, sym, model.VenueB, bBid, bAsk, &allOutliers, &enriched)

	if len(allOutliers) > 0 {
		e.store.AppendOutliers(allOutliers)
		if e.metrics != nil {
			e.metrics.OutliersFound.Add(float64(len(allOutliers)))
		}
	}
	if e.bc != nil {
		e.bc.Broadcast("book", map[string]any{
			"symbol": sym, "mid": mergedMid, "bids": mergedBid, "asks": mergedAsk,
			"depth":   e.depth,
			"sources": map[string]bool{"A": aState != nil, "B": bState != nil},
		})
	}

	return enriched
}

// detectSpotVenue runs the detector over one venue's spot book (if
// present) and appends both the bare and enriched record forms to the
// caller's accumulators.
func (e *Engine) detectSpotVenue(now int64, sym model.Symbol, venue model.Venue, bidLv, askLv []model.PriceLevel, bare, enriched *[]model.OutlierRecord) {
	if len(bidLv) == 0 && len(askLv) == 0 {
		return
	}
	m := mid(bidLv, askLv)
	if m <= 0 {
		// No usable mid this tick -> no outliers for this venue.
		return
	}
	history := e.midHistoryFor(venue, model.MarketSpot, sym)
	history.Append(now, m)

	ctx := outlier.Context{
		Mid: m, Vol1m: history.Volatility(now, outlier.Window1m), Vol5m: history.Volatility(now, outlier.Window5m),
		Book: "Spot",
	}
	if len(bidLv) > 0 {
		ctx.BestBid = bidLv[0].PriceF()
		ctx.BidTop = top(bidLv, outlier.TopNForEnrichment)
	}
	if len(askLv) > 0 {
		ctx.BestAsk = askLv[0].PriceF()
		ctx.AskTop = top(askLv, outlier.TopNForEnrichment)
	}

	for _, c := range outlier.Detect(bidLv, outlier.ZOutlier) {
		rec := outlier.BuildRecord(now, sym, model.MarketSpot, venue, model.SideBid, c, ctx)
		*bare = append(*bare, stripEnrichment(rec))
		*enriched = append(*enriched, rec)
	}
	for _, c := range outlier.Detect(askLv, outlier.ZOutlier) {
		rec := outlier.BuildRecord(now, sym, model.MarketSpot, venue, model.SideAsk, c, ctx)
		*bare = append(*bare, stripEnrichment(rec))
		*enriched = append(*enriched, rec)
	}
}

// stripEnrichment returns a copy of rec with only its persisted fields
// set. The
// OutlierStore itself decides which columns to write; this just avoids
// accidentally depending on the transient values downstream.
func stripEnrichment(rec model.OutlierRecord) model.OutlierRecord {
	return model.OutlierRecord{
		Ts: rec.Ts, Symbol: rec.Symbol, Market: rec.Market, Exchange: rec.Exchange,
		Side: rec.Side, Price: rec.Price, Size: rec.Size, ZScore: rec.ZScore, BpsFromMid: rec.BpsFromMid,
	}
}
