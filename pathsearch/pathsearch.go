// Package pathsearch implements the depth-first, best-path-per-destination
// search over a pruned adjacency.
//
// Grounded on examples/graph/graph.go's findSwapPathsState (a package-level
// sync.Pool of scratch *big.Int objects feeding a Bellman-Ford relaxation
// loop, with a bitset-based "known" cycle guard), restructured into the
// explicit depth-first recursion and bucketed dominance pruning described in
// _examples/original_source/bin/autobahn-router/src/routing.rs
// (best_price_paths_depth_search / walk / try_append_to_best_results).
package pathsearch

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/solroute/swap-router-go/bitset"
	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/mint"
)

// Mode selects the optimisation direction: ExactIn maximises output,
// ExactOut minimises input.
type Mode int

const (
	ExactIn Mode = iota
	ExactOut
)

// minRemainingAccounts is the floor of account budget that must remain for
// recursion to continue past the current node.
const minRemainingAccounts = 4

// accountBucketWidth and accountBucketCount implement the dominance
// pruning's fixed 8-bucket-of-8-accounts partition, covering up to 64
// accounts.
const (
	accountBucketWidth = 8
	accountBucketCount = 8
	dominanceSlots     = 3
)

// OutEdge is one edge reachable from a source mint in the pruned adjacency.
type OutEdge struct {
	Target mint.Index
	Edge   edge.Handle
}

// Graph is the pruned-adjacency contract PathSearch walks. pruner.Adjacency
// satisfies this shape; callers that depend on both packages supply a thin
// adapter so pathsearch itself never imports pruner.
type Graph interface {
	OutEdges(src mint.Index) []OutEdge
}

// EdgeInfo is the cheap per-edge estimate PathSearch consults while
// exploring: the multiplicative price to apply to the running amount and
// the incremental account cost of taking this edge.
type EdgeInfo struct {
	Price    float64
	Accounts int
}

// EdgeInfoFunc estimates an edge's effect on the running amount, typically
// backed by an Edge's cached price samples. Returns false if the edge
// cannot currently be estimated (invalid, in cooldown, no samples).
type EdgeInfoFunc func(h edge.Handle, amount float64) (EdgeInfo, bool)

// Candidate is one surviving path to a destination, scored by cumulative
// amount (ExactIn: output; ExactOut: input, lower is better).
type Candidate struct {
	Score float64
	Path  []edge.Handle
}

// Params configures one Search call.
type Params struct {
	Source          mint.Index
	InitialAmount   float64
	NumMints        int
	Graph           Graph
	EdgeInfo        EdgeInfoFunc
	Mode            Mode
	MaxPathLength   int
	RetainPathCount int
	MaxAccounts     int
	AvoidColdMints  bool
	IsHot           func(mint.Index) bool
}

func (p Params) validate() error {
	if p.Graph == nil {
		return fmt.Errorf("pathsearch: Graph is required")
	}
	if p.EdgeInfo == nil {
		return fmt.Errorf("pathsearch: EdgeInfo is required")
	}
	if p.MaxPathLength < 1 {
		return fmt.Errorf("pathsearch: MaxPathLength must be >= 1")
	}
	if p.RetainPathCount < 1 {
		return fmt.Errorf("pathsearch: RetainPathCount must be >= 1")
	}
	if p.MaxAccounts > 40 {
		p.MaxAccounts = 40 // capped internally regardless of caller value
	}
	if p.NumMints < 1 {
		return fmt.Errorf("pathsearch: NumMints must be >= 1")
	}
	return nil
}

// Search runs the depth-first best-path-per-destination search and returns,
// for each reachable destination, up to RetainPathCount candidates ordered
// best-first.
func Search(params Params, pool *Pool) (map[mint.Index][]Candidate, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	maxAccounts := params.MaxAccounts
	if maxAccounts > 40 {
		maxAccounts = 40
	}

	scr := pool.get(params.NumMints, params.Mode)
	defer pool.put(scr)

	s := &searcher{
		graph:           params.Graph,
		edgeInfo:        params.EdgeInfo,
		mode:            params.Mode,
		maxPathLength:   params.MaxPathLength,
		retainCount:     params.RetainPathCount,
		maxAccounts:     maxAccounts,
		avoidColdMints:  params.AvoidColdMints,
		isHot:           params.IsHot,
		scratch:         scr,
	}

	s.scratch.inPath.Set(uint64(params.Source))
	s.walk(params.Source, params.InitialAmount, 0, nil, 0)
	s.scratch.inPath.Unset(uint64(params.Source))

	return s.results(), nil
}

type searcher struct {
	graph          Graph
	edgeInfo       EdgeInfoFunc
	mode           Mode
	maxPathLength  int
	retainCount    int
	maxAccounts    int
	avoidColdMints bool
	isHot          func(mint.Index) bool
	scratch        *scratch
}

func (s *searcher) walk(node mint.Index, currentAmount float64, currentAccounts int, path []edge.Handle, depth int) {
	if depth == s.maxPathLength {
		return
	}
	if s.maxAccounts-currentAccounts < minRemainingAccounts {
		return
	}
	if s.invalidAmount(currentAmount) {
		return
	}

	for _, oe := range s.graph.OutEdges(node) {
		if s.scratch.inPath.IsSet(uint64(oe.Target)) {
			continue // no cycles
		}
		info, ok := s.edgeInfo(oe.Edge, currentAmount)
		if !ok {
			continue
		}
		nextAccounts := currentAccounts + info.Accounts
		if nextAccounts > s.maxAccounts {
			continue
		}
		nextAmount := currentAmount * info.Price

		newPath := make([]edge.Handle, len(path)+1)
		copy(newPath, path)
		newPath[len(path)] = oe.Edge

		s.scratch.insertCandidate(oe.Target, nextAmount, newPath, s.mode, s.retainCount)

		if s.avoidColdMints && s.isHot != nil && !s.isHot(oe.Target) {
			continue // cold mints are recorded as candidates but never recursed into
		}

		bucket := nextAccounts / accountBucketWidth
		if bucket >= accountBucketCount {
			bucket = accountBucketCount - 1
		}
		if s.scratch.dominated(oe.Target, bucket, nextAmount, s.mode) {
			continue
		}
		s.scratch.recordDominance(oe.Target, bucket, nextAmount, s.mode)

		s.scratch.inPath.Set(uint64(oe.Target))
		s.walk(oe.Target, nextAmount, nextAccounts, newPath, depth+1)
		s.scratch.inPath.Unset(uint64(oe.Target))
	}
}

func (s *searcher) invalidAmount(amount float64) bool {
	if math.IsNaN(amount) {
		return true
	}
	if s.mode == ExactIn {
		return amount <= 0
	}
	return math.IsInf(amount, 1)
}

// results filters each destination's kept candidates per spec: ExactIn
// keeps positive finite scores, ExactOut keeps finite scores only.
func (s *searcher) results() map[mint.Index][]Candidate {
	out := make(map[mint.Index][]Candidate)
	for idx, slots := range s.scratch.bestPaths {
		var kept []Candidate
		for _, slot := range slots {
			if slot.path == nil {
				continue
			}
			if s.mode == ExactIn {
				if !(slot.score > 0 && !math.IsInf(slot.score, 0) && !math.IsNaN(slot.score)) {
					continue
				}
			} else {
				if math.IsInf(slot.score, 0) || math.IsNaN(slot.score) {
					continue
				}
			}
			kept = append(kept, Candidate{Score: slot.score, Path: slot.path})
		}
		if len(kept) > 0 {
			out[mint.Index(idx)] = kept
		}
	}
	return out
}

// candidateSlot is one kept path to a destination.
type candidateSlot struct {
	score float64
	path  []edge.Handle
}

// scratch is the per-search state pooled across requests: the two large
// structures (bestPaths, bestByNode) are sized by mint count and reused,
// not reallocated, across searches.
type scratch struct {
	bestPaths  [][]candidateSlot
	bestByNode [][accountBucketCount][dominanceSlots]float64
	inPath     bitset.BitSet
	numMints   int
}

func newScratch(numMints int) *scratch {
	return &scratch{
		bestPaths:  make([][]candidateSlot, numMints),
		bestByNode: make([][accountBucketCount][dominanceSlots]float64, numMints),
		inPath:     bitset.New(uint64(numMints)),
		numMints:   numMints,
	}
}

// resetForMode re-seeds the dominance sentinels for the upcoming search's
// mode: -Inf (keep-largest-3) for ExactIn, +Inf (keep-smallest-3) for
// ExactOut. bestPaths and inPath are assumed already cleared by the
// previous checked-in Put.
func (sc *scratch) resetForMode(mode Mode) {
	sentinel := math.Inf(-1)
	if mode == ExactOut {
		sentinel = math.Inf(1)
	}
	for i := range sc.bestByNode {
		for b := 0; b < accountBucketCount; b++ {
			for k := 0; k < dominanceSlots; k++ {
				sc.bestByNode[i][b][k] = sentinel
			}
		}
	}
}

// clear resets the per-request result and membership structures. Called at
// check-in (Put), not check-out, so a fresh Get only pays for re-seeding the
// dominance sentinels above.
func (sc *scratch) clear() {
	for i := range sc.bestPaths {
		sc.bestPaths[i] = sc.bestPaths[i][:0]
	}
	sc.inPath.Clear()
}

func better(mode Mode, a, b float64) bool {
	if mode == ExactIn {
		return a > b
	}
	return a < b
}

func (sc *scratch) insertCandidate(dest mint.Index, score float64, path []edge.Handle, mode Mode, retainCount int) {
	slots := sc.bestPaths[dest]
	for _, existing := range slots {
		if existing.score == score && pathsEqual(existing.path, path) {
			return
		}
	}
	if len(slots) < retainCount {
		slots = append(slots, candidateSlot{score: score, path: path})
		sort.SliceStable(slots, func(i, j int) bool { return better(mode, slots[i].score, slots[j].score) })
		sc.bestPaths[dest] = slots
		return
	}
	worstIdx := len(slots) - 1
	if better(mode, score, slots[worstIdx].score) {
		slots[worstIdx] = candidateSlot{score: score, path: path}
		sort.SliceStable(slots, func(i, j int) bool { return better(mode, slots[i].score, slots[j].score) })
	}
}

// dominated reports whether score is already beaten by every entry kept in
// bestByNode[dest][bucket] at equal-or-lower account cost.
func (sc *scratch) dominated(dest mint.Index, bucket int, score float64, mode Mode) bool {
	slots := sc.bestByNode[dest][bucket]
	if mode == ExactIn {
		worst := slots[0]
		for _, v := range slots {
			if v < worst {
				worst = v
			}
		}
		return score < worst
	}
	worst := slots[0]
	for _, v := range slots {
		if v > worst {
			worst = v
		}
	}
	return score > worst
}

func (sc *scratch) recordDominance(dest mint.Index, bucket int, score float64, mode Mode) {
	slots := &sc.bestByNode[dest][bucket]
	worstPos := 0
	for i := 1; i < dominanceSlots; i++ {
		if mode == ExactIn {
			if slots[i] < slots[worstPos] {
				worstPos = i
			}
		} else if slots[i] > slots[worstPos] {
			worstPos = i
		}
	}
	slots[worstPos] = score
}

func pathsEqual(a, b []edge.Handle) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Pool is a sync.Pool of scratch search state, sized by mint count. A pool
// entry is exclusively held for the duration of one Search call.
type Pool struct {
	pool sync.Pool
}

// NewPool creates an empty scratch pool.
func NewPool() *Pool {
	return &Pool{pool: sync.Pool{New: func() any { return (*scratch)(nil) }}}
}

func (p *Pool) get(numMints int, mode Mode) *scratch {
	v := p.pool.Get()
	sc, _ := v.(*scratch)
	if sc == nil || sc.numMints != numMints {
		sc = newScratch(numMints)
	}
	sc.resetForMode(mode)
	return sc
}

func (p *Pool) put(sc *scratch) {
	sc.clear()
	p.pool.Put(sc)
}
