// Package router is the orchestration core: it composes the pruned
// adjacency, the depth-first search, the path-discovery cache and the
// venue adapters into one FindBestRoute call, including the cheap-estimate
// -> exact-re-quote -> fallback-chain algorithm.
//
// Grounded on cmd/client/main.go's config-then-construct wiring shape and
// differ.StateDiffer's Config+validate()+metrics-at-construction pattern,
// applied here to the routing core instead of a protocol differ.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/solroute/swap-router-go/chainstate"
	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/mint"
	"github.com/solroute/swap-router-go/pathcache"
	"github.com/solroute/swap-router-go/pathsearch"
	"github.com/solroute/swap-router-go/pruner"
	"github.com/solroute/swap-router-go/venue"
)

// metrics are registered once per Router and exposed for a caller to wire
// into its own registry, matching differ.StateDiffer's construct-time
// metrics shape.
type metrics struct {
	searchDuration prometheus.Histogram
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_search_duration_seconds",
			Help:    "Wall-clock time spent inside PathSearch per FindBestRoute call.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_path_cache_hits_total",
			Help: "Quote requests satisfied without a fresh PathSearch call.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_path_cache_misses_total",
			Help: "Quote requests that required a fresh PathSearch call.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.searchDuration, m.cacheHits, m.cacheMisses)
	}
	return m
}

// Router composes every routing collaborator behind one FindBestRoute
// entrypoint.
type Router struct {
	cfg      Config
	graph    *mint.Graph
	registry *edge.Registry
	pruner   *pruner.Pruner
	cache    *pathcache.Cache
	pool     *pathsearch.Pool
	venues   map[venue.ID]venue.Adapter
	state    chainstate.Store
	hotMints map[mint.Mint]struct{}
	log      *slog.Logger
	metrics  *metrics
}

// New constructs a Router. venues must contain an entry for every venue.ID
// referenced by edges in registry, or exact re-quotes against those edges
// fail with ErrCouldNotComputeOut. hotMints is the same hot-mints set
// pruner.New was built with; a nil or empty set simply disables the
// avoid_cold_mints short-circuit regardless of cfg.AvoidColdMints.
func New(
	cfg Config,
	graph *mint.Graph,
	registry *edge.Registry,
	prun *pruner.Pruner,
	cache *pathcache.Cache,
	venues map[venue.ID]venue.Adapter,
	state chainstate.Store,
	hotMints map[mint.Mint]struct{},
	reg prometheus.Registerer,
	log *slog.Logger,
) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		graph:    graph,
		registry: registry,
		pruner:   prun,
		cache:    cache,
		pool:     pathsearch.NewPool(),
		venues:   venues,
		state:    state,
		hotMints: hotMints,
		log:      log,
		metrics:  newMetrics(reg),
	}, nil
}

// isHotMint reports whether idx's mint is in the configured hot-mints set.
// A mint that no longer resolves (shouldn't happen for an index the graph
// itself produced) is treated as hot, never cutting recursion on it.
func (r *Router) isHotMint(idx mint.Index) bool {
	m, err := r.graph.MintAt(idx)
	if err != nil {
		return true
	}
	_, ok := r.hotMints[m]
	return ok
}

// adjacencyGraph adapts a *pruner.Adjacency snapshot to pathsearch.Graph,
// the thin bridge the two leaf packages need since neither imports the
// other.
type adjacencyGraph struct {
	adj *pruner.Adjacency
}

func (g adjacencyGraph) OutEdges(src mint.Index) []pathsearch.OutEdge {
	targets := g.adj.OutEdges(src)
	if targets == nil {
		return nil
	}
	out := make([]pathsearch.OutEdge, len(targets))
	for i, t := range targets {
		out[i] = pathsearch.OutEdge{Target: t.Target, Edge: t.Edge}
	}
	return out
}

// FindBestRoute resolves the best route from req.InputMint to
// req.OutputMint, implementing the cache-lookup -> search ->
// exact-re-quote -> fallback-chain algorithm.
func (r *Router) FindBestRoute(ctx context.Context, req QuoteRequest) (*Route, error) {
	now := time.Now()

	if req.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	inIdx, ok := r.graph.IndexOf(req.InputMint)
	if !ok {
		return nil, ErrUnsupportedInputMint
	}
	outIdx, ok := r.graph.IndexOf(req.OutputMint)
	if !ok {
		return nil, ErrUnsupportedOutputMint
	}
	if req.MaxAccounts-minAccountsFloor < 1 {
		return nil, fmt.Errorf("%w: max_accounts %d leaves no budget after the %d-account floor", ErrInvalidAmount, req.MaxAccounts, minAccountsFloor)
	}

	exactOut := req.Mode.isExactOut()
	adj := r.pruner.EnsureFresh(now, exactOut)
	overAmt := overquoteAmount(req.Amount, r.cfg.OverquoteRatio)
	accountBudget := req.MaxAccounts - minAccountsFloor
	accountsBucket := pathcache.AccountsBucket(req.MaxAccounts)
	cacheMode := toCacheMode(req.Mode)

	ignoreCache := req.IgnoreCache
	pathLen := r.cfg.MaxPathLength - 1
	if pathLen < 1 {
		pathLen = r.cfg.MaxPathLength
	}
	fullLengthTried := pathLen == r.cfg.MaxPathLength

	for {
		route, usedCache, err := r.attempt(ctx, req, inIdx, outIdx, exactOut, overAmt, accountBudget, accountsBucket, cacheMode, ignoreCache, pathLen, adj, now)
		if err == nil {
			return route, nil
		}
		if err != ErrNoPathBetweenMintPair {
			return nil, err
		}

		if usedCache && !ignoreCache {
			r.cache.Invalidate(inIdx, outIdx, accountsBucket)
			ignoreCache = true
			continue
		}
		if !fullLengthTried {
			pathLen = r.cfg.MaxPathLength
			fullLengthTried = true
			continue
		}
		return nil, ErrNoPathBetweenMintPair
	}
}

// Sweep evicts stale path-discovery cache entries. Intended to be called
// periodically by a background goroutine (see cmd/router).
func (r *Router) Sweep(now time.Time) {
	r.cache.Sweep(now)
}

// RefreshAdjacency forces an immediate pruned-adjacency rebuild for both
// quote modes, bypassing EnsureFresh's staleness check. Intended to be
// called periodically by a background goroutine alongside Sweep.
func (r *Router) RefreshAdjacency(now time.Time) {
	r.pruner.Refresh(now)
}

func toCacheMode(m Mode) pathcache.Mode {
	if m == ExactOut {
		return pathcache.ExactOut
	}
	return pathcache.ExactIn
}

// attempt runs one cache-or-search pass and the exact re-quote/selection
// that follows it. usedCache reports whether the candidate set came from
// PathDiscoveryCache, the signal FindBestRoute needs to drive its fallback
// chain.
func (r *Router) attempt(
	ctx context.Context,
	req QuoteRequest,
	inIdx, outIdx mint.Index,
	exactOut bool,
	overAmt uint64,
	accountBudget int,
	accountsBucket uint64,
	cacheMode pathcache.Mode,
	ignoreCache bool,
	pathLen int,
	adj *pruner.Adjacency,
	now time.Time,
) (*Route, bool, error) {
	var candidatePaths [][]edge.Handle
	usedCache := false

	amountBucket := pathcache.AmountBucket(float64(req.Amount))

	if !ignoreCache {
		lower, upper := r.cache.Lookup(inIdx, outIdx, cacheMode, amountBucket, accountsBucket)
		if lower != nil {
			candidatePaths = append(candidatePaths, lower.Paths...)
			usedCache = true
		}
		if upper != nil {
			candidatePaths = append(candidatePaths, upper.Paths...)
			usedCache = true
		}
	}

	if usedCache {
		r.metrics.cacheHits.Inc()
	} else {
		r.metrics.cacheMisses.Inc()
		timer := prometheus.NewTimer(r.metrics.searchDuration)
		results, err := pathsearch.Search(pathsearch.Params{
			Source:          inIdx,
			InitialAmount:   float64(overAmt),
			NumMints:        r.graph.Len(),
			Graph:           adjacencyGraph{adj: adj},
			EdgeInfo:        r.edgeInfoFunc(exactOut, now),
			Mode:            req.Mode.toSearchMode(),
			MaxPathLength:   pathLen,
			RetainPathCount: r.cfg.RetainPathCount,
			MaxAccounts:     accountBudget,
			AvoidColdMints:  r.cfg.AvoidColdMints && len(r.hotMints) > 0,
			IsHot:           r.isHotMint,
		}, r.pool)
		timer.ObserveDuration()
		if err != nil {
			return nil, false, err
		}
		r.cacheSearchResults(inIdx, cacheMode, accountsBucket, amountBucket, req.Amount, results, now)
		if dests, ok := results[outIdx]; ok {
			for _, c := range dests {
				candidatePaths = append(candidatePaths, c.Path)
			}
		}
	}

	candidatePaths = unionPaths(candidatePaths, r.directPaths(inIdx, outIdx, adj, accountBudget))
	if len(candidatePaths) == 0 {
		return nil, usedCache, ErrNoPathBetweenMintPair
	}

	prepCache := make(map[prepKey]venue.PreparedEdge)
	var survivors []requoteResult
	for _, path := range candidatePaths {
		res, err := r.exactRequote(ctx, path, exactOut, overAmt, now, prepCache)
		if err != nil {
			r.log.Warn("path rejected during exact re-quote", "err", err, "hops", len(path))
			continue
		}
		survivors = append(survivors, res)
	}
	if len(survivors) == 0 {
		return nil, usedCache, ErrNoPathBetweenMintPair
	}

	sort.Slice(survivors, func(i, j int) bool {
		if exactOut {
			return survivors[i].inAmount < survivors[j].inAmount
		}
		return survivors[i].outAmount > survivors[j].outAmount
	})

	best, ok := r.selectWithinThreshold(survivors, req, exactOut)
	if !ok {
		return nil, usedCache, ErrNoPathBetweenMintPair
	}

	route, err := r.finalizeRoute(ctx, req, best, overAmt, exactOut, prepCache, now)
	if err != nil {
		r.log.Warn("best path rejected during final re-quote", "err", err, "hops", len(best.path))
		return nil, usedCache, ErrNoPathBetweenMintPair
	}
	return route, usedCache, nil
}

// selectWithinThreshold returns the best-ranked survivor that still clears
// the caller's other_amount_threshold, if one was set.
func (r *Router) selectWithinThreshold(survivors []requoteResult, req QuoteRequest, exactOut bool) (requoteResult, bool) {
	if req.OtherAmountThreshold == 0 {
		return survivors[0], true
	}
	for _, s := range survivors {
		if exactOut {
			if s.inAmount <= req.OtherAmountThreshold {
				return s, true
			}
		} else if s.outAmount >= req.OtherAmountThreshold {
			return s, true
		}
	}
	return requoteResult{}, false
}

func (r *Router) cacheSearchResults(from mint.Index, mode pathcache.Mode, accountsBucket, amountBucket uint64, requestAmount uint64, results map[mint.Index][]pathsearch.Candidate, now time.Time) {
	for to, candidates := range results {
		paths := make([][]edge.Handle, len(candidates))
		for i, c := range candidates {
			paths[i] = c.Path
		}
		r.cache.Insert(from, to, mode, accountsBucket, pathcache.Entry{
			AmountBucket: amountBucket,
			CreatedAt:    now,
			InAmount:     float64(requestAmount),
			Paths:        paths,
		})
	}
}

// directPaths returns every single-hop path from src to dst present in the
// pruned adjacency whose edge fits within accountBudget, guaranteeing such a
// direct edge is always considered alongside whatever PathSearch or the
// cache produced.
func (r *Router) directPaths(src, dst mint.Index, adj *pruner.Adjacency, accountBudget int) [][]edge.Handle {
	var out [][]edge.Handle
	for _, t := range adj.OutEdges(src) {
		if t.Target == dst && r.registry.Get(t.Edge).AccountsNeeded <= accountBudget {
			out = append(out, []edge.Handle{t.Edge})
		}
	}
	return out
}

// unionPaths merges two path sets, de-duplicating by the ordered sequence
// of (venue, venue-edge-id, input-mint) triples the underlying edges carry
// — equivalent to deduplicating by edge.Handle sequence, since a Registry
// hands out exactly one Handle per that triple.
func unionPaths(a, b [][]edge.Handle) [][]edge.Handle {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([][]edge.Handle, 0, len(a)+len(b))
	add := func(paths [][]edge.Handle) {
		for _, p := range paths {
			key := pathKey(p)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	add(a)
	add(b)
	return out
}

func pathKey(path []edge.Handle) string {
	b := make([]byte, 0, len(path)*5)
	for _, h := range path {
		b = append(b, byte(h), byte(h>>8), byte(h>>16), byte(h>>24), '|')
	}
	return string(b)
}

// edgeInfoFunc adapts an Edge's cached price estimate to the
// pathsearch.EdgeInfoFunc shape.
func (r *Router) edgeInfoFunc(exactOut bool, now time.Time) pathsearch.EdgeInfoFunc {
	return func(h edge.Handle, amount float64) (pathsearch.EdgeInfo, bool) {
		e := r.registry.Get(h)
		if !e.Valid(now) {
			return pathsearch.EdgeInfo{}, false
		}
		if exactOut && !e.HasExactOutSupport(now) {
			return pathsearch.EdgeInfo{}, false
		}
		amt := uint64(amount + 0.5)
		sample, ok := e.SamplesAt(exactOut, amt, now)
		if !ok {
			return pathsearch.EdgeInfo{}, false
		}
		rate := sample.Rate()
		if rate <= 0 || math.IsNaN(rate) {
			return pathsearch.EdgeInfo{}, false
		}
		price := rate
		if exactOut {
			price = 1 / rate
		}
		return pathsearch.EdgeInfo{Price: price, Accounts: e.AccountsNeeded}, true
	}
}
