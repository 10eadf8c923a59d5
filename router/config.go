package router

import (
	"fmt"
	"time"
)

// minAccountsFloor is subtracted from the caller's max_accounts budget
// before it is handed to PathSearch, reserving room for the compute
// budget / ATA / wrap instructions every assembled transaction carries
// regardless of route length.
const minAccountsFloor = 7

// quoteDivergenceFactor bounds how far an exact re-quote may drift from
// the cached estimate that produced the candidate before the edge is
// cooled down and the path rejected.
const quoteDivergenceFactor = 3.0

// referenceImpactAmount is the tiny exact-in probe used to establish a
// path's small-size reference rate for price_impact_bps.
const referenceImpactAmount = 1000

// Config holds the router-level tunables, loaded once at start-up.
type Config struct {
	MaxPathLength       int           `yaml:"max_path_length"`
	RetainPathCount     int           `yaml:"retain_path_count"`
	OverquoteRatio      float64       `yaml:"overquote_ratio"`
	PathCacheValidity   time.Duration `yaml:"path_cache_validity"`
	MaxEdgePerPair      int           `yaml:"max_edge_per_pair"`
	MaxEdgePerColdPair  int           `yaml:"max_edge_per_cold_pair"`
	PathWarmingAmounts  []uint64      `yaml:"path_warming_amounts"`
	// AvoidColdMints enables PathSearch's hot-mint recursion short-circuit
	// (spec §4.3 step 3). It only takes effect when the Router was built
	// with a non-empty hot-mints set.
	AvoidColdMints bool `yaml:"avoid_cold_mints"`
}

func (c Config) validate() error {
	if c.MaxPathLength < 1 {
		return fmt.Errorf("router: max_path_length must be >= 1, got %d", c.MaxPathLength)
	}
	if c.RetainPathCount < 1 {
		return fmt.Errorf("router: retain_path_count must be >= 1, got %d", c.RetainPathCount)
	}
	if c.OverquoteRatio < 0 {
		return fmt.Errorf("router: overquote_ratio must be >= 0, got %f", c.OverquoteRatio)
	}
	if c.PathCacheValidity <= 0 {
		return fmt.Errorf("router: path_cache_validity must be positive")
	}
	if c.MaxEdgePerPair < 1 || c.MaxEdgePerColdPair < 1 {
		return fmt.Errorf("router: max_edge_per_pair and max_edge_per_cold_pair must be >= 1")
	}
	if len(c.PathWarmingAmounts) == 0 {
		return fmt.Errorf("router: path_warming_amounts must be non-empty")
	}
	return nil
}

// overquoteAmount rounds amount up by the configured cushion, used to keep
// the search's and the initial re-quote pass's candidate ranking stable
// against the small amount the user will actually receive a quote for.
func overquoteAmount(amount uint64, ratio float64) uint64 {
	return uint64(float64(amount)*(1+ratio) + 0.5)
}
