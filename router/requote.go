package router

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/venue"
)

// prepKey identifies one venue-specific prepared snapshot, reused across
// every candidate path re-quoted within a single FindBestRoute attempt
// (spec §9 "scoped snapshots": prepare at most once per (venue, edge) per
// request, not once per path that happens to touch it).
type prepKey struct {
	venueID venue.ID
	edgeID  venue.EdgeID
}

// requoteResult is one candidate path's outcome after an exact re-quote.
type requoteResult struct {
	path      []edge.Handle
	steps     []RouteStep
	inAmount  uint64
	outAmount uint64
	slot      uint64
}

// divergesBeyond reports whether actual has drifted from estimated by more
// than factor in either direction. A non-positive estimate can't be
// compared and is treated as non-divergent, since it means no cached
// sample existed to compare against.
func divergesBeyond(actual, estimated, factor float64) bool {
	if estimated <= 0 {
		return false
	}
	ratio := actual / estimated
	return ratio > factor || ratio < 1/factor
}

// exactRequote walks path against the real venue adapters, quoting exact-in
// forward or exact-out backward depending on mode, and writes each hop's
// result into execution order regardless of walk direction. A hop that
// fails, returns zero output, or diverges more than quoteDivergenceFactor
// from its cached estimate puts that edge into cooldown and rejects the
// whole path.
func (r *Router) exactRequote(ctx context.Context, path []edge.Handle, exactOut bool, amount uint64, now time.Time, prepCache map[prepKey]venue.PreparedEdge) (requoteResult, error) {
	order := make([]int, len(path))
	for i := range path {
		if exactOut {
			order[i] = len(path) - 1 - i
		} else {
			order[i] = i
		}
	}

	steps := make([]RouteStep, len(path))
	running := amount
	var slot uint64

	for _, idx := range order {
		h := path[idx]
		e := r.registry.Get(h)

		adapter, ok := r.venues[e.VenueID]
		if !ok {
			return requoteResult{}, fmt.Errorf("%w: venue %q edge %q", ErrCouldNotComputeOut, e.VenueID, e.VenueEdgeID)
		}

		key := prepKey{venueID: e.VenueID, edgeID: e.VenueEdgeID}
		prepared, ok := prepCache[key]
		if !ok {
			var err error
			prepared, err = adapter.Prepare(ctx, e.VenueEdgeID, r.state)
			if err != nil {
				return requoteResult{}, fmt.Errorf("%w: venue %q edge %q", ErrCouldNotComputeOut, e.VenueID, e.VenueEdgeID)
			}
			prepCache[key] = prepared
		}

		var quote venue.Quote
		var err error
		if exactOut {
			quote, err = adapter.QuoteExactOut(ctx, prepared, e.VenueEdgeID, running)
		} else {
			quote, err = adapter.QuoteExactIn(ctx, prepared, e.VenueEdgeID, running)
		}
		zero := (!exactOut && quote.OutAmount == 0) || (exactOut && quote.InAmount == 0)
		if err != nil || zero {
			e.EnterCooldown(now)
			return requoteResult{}, fmt.Errorf("%w: venue %q edge %q", ErrCouldNotComputeOut, e.VenueID, e.VenueEdgeID)
		}

		if sample, ok := e.SamplesAt(exactOut, running, now); ok && sample.Rate() > 0 {
			var actual, estimated float64
			if exactOut {
				actual, estimated = float64(quote.InAmount), float64(running)/sample.Rate()
			} else {
				actual, estimated = float64(quote.OutAmount), float64(running)*sample.Rate()
			}
			if divergesBeyond(actual, estimated, quoteDivergenceFactor) {
				e.EnterCooldown(now)
				return requoteResult{}, fmt.Errorf("%w: venue %q edge %q", ErrQuoteDiverged, e.VenueID, e.VenueEdgeID)
			}
		}

		steps[idx] = RouteStep{
			Edge:       h,
			VenueID:    string(e.VenueID),
			InputMint:  e.InputMint,
			OutputMint: e.OutputMint,
			InAmount:   quote.InAmount,
			OutAmount:  quote.OutAmount,
			FeeAmount:  quote.FeeAmount,
			FeeMint:    quote.FeeMint,
			CUEstimate: quote.CUEstimate,
		}

		if exactOut {
			running = quote.InAmount
		} else {
			running = quote.OutAmount
		}
		if s := e.LastUpdateSlot(); s > slot {
			slot = s
		}
	}

	result := requoteResult{path: path, steps: steps, slot: slot}
	if exactOut {
		result.inAmount = running
		result.outAmount = amount
	} else {
		result.inAmount = amount
		result.outAmount = running
	}
	return result, nil
}

// finalizeRoute rebuilds the winning candidate at the caller's real
// (non-overquoted) amount and computes its price impact. For ExactIn this
// means a fresh exact re-quote at the real amount, since venue curves are
// amount-sensitive. For ExactOut the winning candidate was quoted against
// the overquoted out_amount, so its in_amount is scaled proportionally back
// to the un-overquoted basis instead of a second round of venue calls; its
// steps keep the per-hop amounts quoted at the overquoted target.
func (r *Router) finalizeRoute(ctx context.Context, req QuoteRequest, best requoteResult, overAmt uint64, exactOut bool, prepCache map[prepKey]venue.PreparedEdge, now time.Time) (*Route, error) {
	final := best
	if !exactOut {
		refined, err := r.exactRequote(ctx, best.path, false, req.Amount, now, prepCache)
		if err != nil {
			return nil, err
		}
		final = refined
	} else {
		scale := float64(req.Amount) / float64(overAmt)
		final.inAmount = uint64(float64(best.inAmount)*scale + 0.5)
		final.outAmount = req.Amount
	}

	impactBps := r.priceImpactBps(ctx, best.path, final, now, prepCache)

	return &Route{
		InputMint:      req.InputMint,
		OutputMint:     req.OutputMint,
		Mode:           req.Mode,
		InAmount:       final.inAmount,
		OutAmount:      final.outAmount,
		PriceImpactBps: impactBps,
		Slot:           final.slot,
		Steps:          final.steps,
	}, nil
}

// priceImpactBps probes the path with a tiny exact-in reference amount to
// establish its small-size rate, then compares that to the rate the real
// quote actually received: impact_bps = round(((ref_rate)/(actual_rate)-1)
// *10000), where a rate is always output-per-input regardless of the
// request's own mode.
func (r *Router) priceImpactBps(ctx context.Context, path []edge.Handle, final requoteResult, now time.Time, prepCache map[prepKey]venue.PreparedEdge) int64 {
	ref, err := r.exactRequote(ctx, path, false, referenceImpactAmount, now, prepCache)
	if err != nil || ref.inAmount == 0 || ref.outAmount == 0 || final.inAmount == 0 || final.outAmount == 0 {
		return 0
	}
	refRate := float64(ref.outAmount) / float64(ref.inAmount)
	actualRate := float64(final.outAmount) / float64(final.inAmount)
	if actualRate == 0 || math.IsNaN(refRate) || math.IsNaN(actualRate) {
		return 0
	}
	impact := (refRate/actualRate - 1) * 10000
	return int64(math.Round(impact))
}
