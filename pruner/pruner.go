// Package pruner builds the compact pruned adjacency the search engine
// walks, from the full edge set.
//
// Grounded on protocols/tokenpoolregistry/system.go's atomic.Pointer[View]
// plus sync.Mutex single-writer/many-reader discipline, reused here for the
// pruned-adjacency swap-in: readers take a pointer load, writers replace the
// whole structure under a mutex.
package pruner

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/mint"
)

// refreshInterval is how old a pruned adjacency may get before EnsureFresh
// triggers a rebuild.
const refreshInterval = 15 * time.Minute

// Config holds the edge-selection tunables, loaded once at start-up.
type Config struct {
	MaxEdgePerPair     int
	MaxEdgePerColdPair int
	PathWarmingAmounts []uint64 // ascending
}

func (c Config) validate() error {
	if c.MaxEdgePerPair < 1 {
		return fmt.Errorf("pruner: max_edge_per_pair must be >= 1, got %d", c.MaxEdgePerPair)
	}
	if c.MaxEdgePerColdPair < 1 {
		return fmt.Errorf("pruner: max_edge_per_cold_pair must be >= 1, got %d", c.MaxEdgePerColdPair)
	}
	if len(c.PathWarmingAmounts) == 0 {
		return fmt.Errorf("pruner: path_warming_amounts must be non-empty")
	}
	for i := 1; i < len(c.PathWarmingAmounts); i++ {
		if c.PathWarmingAmounts[i] <= c.PathWarmingAmounts[i-1] {
			return fmt.Errorf("pruner: path_warming_amounts must be strictly ascending")
		}
	}
	return nil
}

// AdjTarget is one destination reachable from a source mint.
type AdjTarget struct {
	Target mint.Index
	Edge   edge.Handle
}

// Adjacency is an immutable pruned adjacency snapshot for one quote mode.
// Readers never mutate it; a rebuild replaces the pointer wholesale.
type Adjacency struct {
	outEdges [][]AdjTarget // indexed by mint.Index
	builtAt  time.Time
}

// OutEdges returns the ordered out-edges from src. The returned slice must
// not be mutated.
func (a *Adjacency) OutEdges(src mint.Index) []AdjTarget {
	if int(src) < 0 || int(src) >= len(a.outEdges) {
		return nil
	}
	return a.outEdges[src]
}

// BuiltAt returns when this snapshot was built.
func (a *Adjacency) BuiltAt() time.Time {
	return a.builtAt
}

// Pruner owns the two pruned-adjacency snapshots (exact-in, exact-out) and
// rebuilds them from the full edge set.
type Pruner struct {
	cfg      Config
	graph    *mint.Graph
	registry *edge.Registry
	hotMints map[mint.Mint]struct{}

	buildMu sync.Mutex // serializes Refresh; readers never block on it

	exactIn  atomic.Pointer[Adjacency]
	exactOut atomic.Pointer[Adjacency]
}

// New constructs a Pruner with no adjacency built yet; the first EnsureFresh
// call performs the initial build.
func New(cfg Config, graph *mint.Graph, registry *edge.Registry, hotMints map[mint.Mint]struct{}) (*Pruner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if hotMints == nil {
		hotMints = make(map[mint.Mint]struct{})
	}
	return &Pruner{cfg: cfg, graph: graph, registry: registry, hotMints: hotMints}, nil
}

// EnsureFresh returns the current adjacency for mode, rebuilding first if it
// is missing or older than refreshInterval.
func (p *Pruner) EnsureFresh(now time.Time, exactOut bool) *Adjacency {
	snap := p.load(exactOut)
	if snap != nil && now.Sub(snap.builtAt) < refreshInterval {
		return snap
	}
	p.Refresh(now)
	return p.load(exactOut)
}

func (p *Pruner) load(exactOut bool) *Adjacency {
	if exactOut {
		return p.exactOut.Load()
	}
	return p.exactIn.Load()
}

// Refresh rebuilds both pruned adjacencies from the current edge set. Only
// one rebuild runs at a time; concurrent callers block until it completes
// and then observe the new snapshot via their own load.
func (p *Pruner) Refresh(now time.Time) {
	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	edges := p.registry.All()

	p.exactIn.Store(p.build(edges, false, now))
	p.exactOut.Store(p.build(edges, true, now))
}

type pairKey struct {
	input, output mint.Index
}

func (p *Pruner) build(edges []*edge.Edge, exactOut bool, now time.Time) *Adjacency {
	selected := make(map[pairKey]map[edge.Handle]struct{})

	for _, amount := range p.cfg.PathWarmingAmounts {
		type scored struct {
			handle edge.Handle
			e      *edge.Edge
			price  float64
		}
		byPair := make(map[pairKey][]scored)

		for h, e := range edges {
			if !e.Valid(now) {
				continue
			}
			if exactOut && !e.HasExactOutSupport(now) {
				continue
			}
			sample, ok := e.SamplesAt(exactOut, amount, now)
			if !ok {
				continue
			}
			price := sample.Rate()
			if price <= 0 || math.IsNaN(price) {
				continue
			}
			inIdx, ok1 := p.graph.IndexOf(e.InputMint)
			outIdx, ok2 := p.graph.IndexOf(e.OutputMint)
			if !ok1 || !ok2 {
				continue
			}
			key := pairKey{input: inIdx, output: outIdx}
			byPair[key] = append(byPair[key], scored{handle: edge.Handle(h), e: e, price: price})
		}

		for key, group := range byPair {
			sort.Slice(group, func(i, j int) bool {
				if group[i].price != group[j].price {
					return group[i].price > group[j].price
				}
				return group[i].handle < group[j].handle
			})
			n := p.capFor(key)
			if n > len(group) {
				n = len(group)
			}
			set, ok := selected[key]
			if !ok {
				set = make(map[edge.Handle]struct{})
				selected[key] = set
			}
			for i := 0; i < n; i++ {
				set[group[i].handle] = struct{}{}
			}
		}
	}

	p.ensureIsolatedMintCoverage(edges, exactOut, now, selected)

	return p.assemble(selected, now)
}

// capFor returns the per-pair edge cap: the hot cap only when both mints in
// the pair are in the hot-mints set.
func (p *Pruner) capFor(key pairKey) int {
	inMint, err1 := p.graph.MintAt(key.input)
	outMint, err2 := p.graph.MintAt(key.output)
	if err1 == nil && err2 == nil {
		_, inHot := p.hotMints[inMint]
		_, outHot := p.hotMints[outMint]
		if inHot && outHot {
			return p.cfg.MaxEdgePerPair
		}
	}
	return p.cfg.MaxEdgePerColdPair
}

// mintDir identifies one (mint, direction) coverage slot: out=true means
// "this mint has at least one surviving out-edge", out=false means "this
// mint has at least one surviving in-edge".
type mintDir struct {
	idx mint.Index
	out bool
}

// ensureIsolatedMintCoverage guarantees every mint with at least one
// candidate edge keeps at least one in-edge AND one out-edge, even if
// pruning by pair would otherwise have dropped one direction entirely
// (e.g. an exotic token whose only edges lost every top-N cut). Mirrors
// _examples/original_source/bin/autobahn-router/src/routing.rs's
// select_best_pools, which tracks has_edge_for_mint for both
// (idx, true)/(idx, false) keys and backfills each independently.
func (p *Pruner) ensureIsolatedMintCoverage(edges []*edge.Edge, exactOut bool, now time.Time, selected map[pairKey]map[edge.Handle]struct{}) {
	represented := make(map[mintDir]bool)
	for key, set := range selected {
		if len(set) == 0 {
			continue
		}
		represented[mintDir{idx: key.input, out: true}] = true
		represented[mintDir{idx: key.output, out: false}] = true
	}

	p.backfillDirection(edges, exactOut, now, selected, represented, true)
	p.backfillDirection(edges, exactOut, now, selected, represented, false)
}

// backfillDirection finds, for every mint still missing coverage in the
// given direction, its single lowest price-impact qualifying edge and
// inserts it into selected. out=true backfills by InputMint (out-edge
// coverage); out=false backfills by OutputMint (in-edge coverage).
func (p *Pruner) backfillDirection(edges []*edge.Edge, exactOut bool, now time.Time, selected map[pairKey]map[edge.Handle]struct{}, represented map[mintDir]bool, out bool) {
	bestPerMint := make(map[mint.Index]struct {
		handle edge.Handle
		impact float64
	})

	for h, e := range edges {
		if !e.Valid(now) {
			continue
		}
		if exactOut && !e.HasExactOutSupport(now) {
			continue
		}
		m := e.InputMint
		if !out {
			m = e.OutputMint
		}
		idx, ok := p.graph.IndexOf(m)
		if !ok {
			continue
		}
		if represented[mintDir{idx: idx, out: out}] {
			continue
		}
		impact := e.PriceImpact(exactOut, now)
		cur, exists := bestPerMint[idx]
		if !exists || impact < cur.impact {
			bestPerMint[idx] = struct {
				handle edge.Handle
				impact float64
			}{handle: edge.Handle(h), impact: impact}
		}
	}

	for idx, best := range bestPerMint {
		e := edges[best.handle]
		inIdx, ok1 := p.graph.IndexOf(e.InputMint)
		outIdx, ok2 := p.graph.IndexOf(e.OutputMint)
		if !ok1 || !ok2 {
			continue
		}
		key := pairKey{input: inIdx, output: outIdx}
		set, ok := selected[key]
		if !ok {
			set = make(map[edge.Handle]struct{})
			selected[key] = set
		}
		set[best.handle] = struct{}{}

		represented[mintDir{idx: idx, out: out}] = true
		if out {
			represented[mintDir{idx: outIdx, out: false}] = true
		} else {
			represented[mintDir{idx: inIdx, out: true}] = true
		}
	}
}

func (p *Pruner) assemble(selected map[pairKey]map[edge.Handle]struct{}, now time.Time) *Adjacency {
	outEdges := make([][]AdjTarget, p.graph.Len())
	for key, set := range selected {
		handles := make([]edge.Handle, 0, len(set))
		for h := range set {
			handles = append(handles, h)
		}
		sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
		for _, h := range handles {
			outEdges[key.input] = append(outEdges[key.input], AdjTarget{Target: key.output, Edge: h})
		}
	}
	return &Adjacency{outEdges: outEdges, builtAt: now}
}
