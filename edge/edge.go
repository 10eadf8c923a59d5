// Package edge models one directed, single-venue swap leg and the mutable
// price-sample state the router consults before committing to a path.
//
// Grounded on protocols/tokenregistry/token.go + its indexer/indexable.go for
// the registry's byID-map-plus-defensive-copy shape, and
// protocols/tokenpoolregistry/system.go for the per-struct locking discipline
// applied here per-edge instead of per-registry.
package edge

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/solroute/swap-router-go/mint"
	"github.com/solroute/swap-router-go/venue"
)

// cooldownDuration is how long an edge is treated as invalid after a failed
// or zero-output re-quote.
const cooldownDuration = 30 * time.Second

// ErrInvalidEdge is returned when an Edge fails its construction invariants.
var ErrInvalidEdge = errors.New("edge: invalid edge")

// PriceSample is one observed (amount, quoted-amount) point, used as a cheap
// estimate before an exact venue re-quote.
type PriceSample struct {
	Amount       uint64
	QuotedAmount uint64
}

// Handle is a dense, process-lifetime index into a Registry's edge arena.
type Handle int32

// Edge is one directed swap leg: input_mint -> output_mint through a single
// venue. Immutable once constructed; only the EdgeState it owns mutates.
type Edge struct {
	VenueID        venue.ID
	VenueEdgeID    venue.EdgeID
	InputMint      mint.Mint
	OutputMint     mint.Mint
	AccountsNeeded int

	state EdgeState
}

// validate enforces the construction invariants: distinct mints, at least
// one account touched.
func (e *Edge) validate() error {
	if e.InputMint == e.OutputMint {
		return fmt.Errorf("%w: input_mint == output_mint", ErrInvalidEdge)
	}
	if e.AccountsNeeded < 1 {
		return fmt.Errorf("%w: accounts_needed must be >= 1, got %d", ErrInvalidEdge, e.AccountsNeeded)
	}
	return nil
}

// EdgeState is the mutable, concurrently-accessed price/health state owned
// by one Edge. All access goes through Edge's methods, which hold mu.
type EdgeState struct {
	mu sync.Mutex

	valid                bool
	cachedPrices         []PriceSample // ascending by Amount (exact-in samples)
	cachedPricesExactOut []PriceSample // ascending by QuotedAmount (exact-out samples)
	lastUpdateSlot       uint64
	cooldownUntil        time.Time
}

// Valid reports whether the edge is currently usable: constructed valid and
// not presently in a failure cooldown.
func (e *Edge) Valid(now time.Time) bool {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	if !e.state.valid {
		return false
	}
	return now.After(e.state.cooldownUntil)
}

// LastUpdateSlot returns the slot of the most recent price-sample update.
func (e *Edge) LastUpdateSlot() uint64 {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.lastUpdateSlot
}

// EnterCooldown marks the edge unusable for cooldownDuration, called when a
// re-quote fails outright or returns zero output.
func (e *Edge) EnterCooldown(now time.Time) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	e.state.cooldownUntil = now.Add(cooldownDuration)
}

// UpdatePriceSamples replaces the edge's cached price samples and bumps its
// last-update slot. Samples must already be sorted ascending by the
// estimation axis (Amount for exactIn, QuotedAmount for exactOut); callers
// own that ordering since it is established during the RPC round trip.
func (e *Edge) UpdatePriceSamples(exactIn, exactOut []PriceSample, slot uint64) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	e.state.cachedPrices = exactIn
	e.state.cachedPricesExactOut = exactOut
	e.state.lastUpdateSlot = slot
	e.state.valid = true
}

// EstimateExactIn returns the cached estimate for a given exact input
// amount: the sample with the largest cached input amount <= inAmount, or
// the smallest sample if all cached amounts exceed it. Returns false if the
// edge is invalid, in cooldown, or has no samples.
func (e *Edge) EstimateExactIn(inAmount uint64, now time.Time) (PriceSample, bool) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	if !e.state.valid || !now.After(e.state.cooldownUntil) {
		return PriceSample{}, false
	}
	return nearestSample(e.state.cachedPrices, inAmount, func(s PriceSample) uint64 { return s.Amount })
}

// EstimateExactOut returns the cached estimate for a given exact output
// amount, with the comparison axis reversed relative to EstimateExactIn:
// the sample with the largest cached output amount <= outAmount, or the
// smallest if all exceed it.
func (e *Edge) EstimateExactOut(outAmount uint64, now time.Time) (PriceSample, bool) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	if !e.state.valid || !now.After(e.state.cooldownUntil) {
		return PriceSample{}, false
	}
	return nearestSample(e.state.cachedPricesExactOut, outAmount, func(s PriceSample) uint64 { return s.QuotedAmount })
}

// HasExactOutSupport reports whether the edge has any exact-out price
// samples, the signal used by pruning to distinguish venues that do not
// implement quote_exact_out for this edge.
func (e *Edge) HasExactOutSupport(now time.Time) bool {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	if !e.state.valid || !now.After(e.state.cooldownUntil) {
		return false
	}
	return len(e.state.cachedPricesExactOut) > 0
}

// PriceImpact computes the relative difference between the edge's rate at
// its smallest and largest cached sample for the given mode, per spec:
// |pN/p0 - 1| if p0 >= pN, else |p0/pN - 1|. Returns +Inf if the edge is
// invalid, in cooldown, has fewer than two samples, or either endpoint rate
// is zero.
func (e *Edge) PriceImpact(exactOut bool, now time.Time) float64 {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	if !e.state.valid || !now.After(e.state.cooldownUntil) {
		return math.Inf(1)
	}
	samples := e.state.cachedPrices
	if exactOut {
		samples = e.state.cachedPricesExactOut
	}
	if len(samples) < 2 {
		return math.Inf(1)
	}
	p0 := rate(samples[0])
	pN := rate(samples[len(samples)-1])
	if p0 == 0 || pN == 0 {
		return math.Inf(1)
	}
	if p0 >= pN {
		return math.Abs(pN/p0 - 1)
	}
	return math.Abs(p0/pN - 1)
}

// Rate returns the output-per-input rate of a cached sample.
func (s PriceSample) Rate() float64 {
	return rate(s)
}

func rate(s PriceSample) float64 {
	if s.Amount == 0 {
		return 0
	}
	return float64(s.QuotedAmount) / float64(s.Amount)
}

// SamplesAt returns the sample nearest amount for the given mode, exactly
// as EstimateExactIn/EstimateExactOut do, without exposing the full slice.
// Used by pruning, which samples at the exact path-warming amounts.
func (e *Edge) SamplesAt(exactOut bool, amount uint64, now time.Time) (PriceSample, bool) {
	if exactOut {
		return e.EstimateExactOut(amount, now)
	}
	return e.EstimateExactIn(amount, now)
}

// nearestSample scans an ascending-by-key slice for the entry with the
// largest key <= target, falling back to the first (smallest-key) entry if
// none qualifies.
func nearestSample(samples []PriceSample, target uint64, key func(PriceSample) uint64) (PriceSample, bool) {
	if len(samples) == 0 {
		return PriceSample{}, false
	}
	best := samples[0]
	found := false
	for _, s := range samples {
		if key(s) <= target {
			best = s
			found = true
			continue
		}
		break
	}
	if !found {
		return samples[0], true
	}
	return best, true
}
