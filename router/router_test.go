package router

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/solroute/swap-router-go/chainstate"
	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/mint"
	"github.com/solroute/swap-router-go/pathcache"
	"github.com/solroute/swap-router-go/pruner"
	"github.com/solroute/swap-router-go/venue"
)

// fakeAdapter is a linear, no-slippage reference venue used only by these
// tests: QuoteExactIn/QuoteExactOut apply a fixed per-edge rate exactly,
// and per-edge knobs let a test force a failure or a zero-output quote to
// exercise cooldown/fallback behaviour.
type fakeAdapter struct {
	id            venue.ID
	rate          map[venue.EdgeID]float64
	supportsOut   map[venue.EdgeID]bool
	failEdges     map[venue.EdgeID]bool
	deepRate      map[venue.EdgeID]float64 // rate applied once inAmount crosses deepThreshold
	deepThreshold map[venue.EdgeID]uint64
}

func newFakeAdapter(id venue.ID) *fakeAdapter {
	return &fakeAdapter{
		id:            id,
		rate:          map[venue.EdgeID]float64{},
		supportsOut:   map[venue.EdgeID]bool{},
		failEdges:     map[venue.EdgeID]bool{},
		deepRate:      map[venue.EdgeID]float64{},
		deepThreshold: map[venue.EdgeID]uint64{},
	}
}

func (a *fakeAdapter) ID() venue.ID { return a.id }

func (a *fakeAdapter) Prepare(ctx context.Context, e venue.EdgeID, state chainstate.Store) (venue.PreparedEdge, error) {
	return struct{}{}, nil
}

func (a *fakeAdapter) SupportsExactOut(e venue.EdgeID) bool { return a.supportsOut[e] }

// effectiveRate returns the edge's shallow rate, or its deep (post-threshold)
// rate once inAmount crosses the configured threshold, modelling a venue
// whose effective price depends on trade size.
func (a *fakeAdapter) effectiveRate(e venue.EdgeID, inAmount uint64) float64 {
	if threshold, ok := a.deepThreshold[e]; ok && inAmount >= threshold {
		return a.deepRate[e]
	}
	return a.rate[e]
}

func (a *fakeAdapter) QuoteExactIn(ctx context.Context, prepared venue.PreparedEdge, e venue.EdgeID, inAmount uint64) (venue.Quote, error) {
	if a.failEdges[e] {
		return venue.Quote{}, nil
	}
	r := a.effectiveRate(e, inAmount)
	return venue.Quote{InAmount: inAmount, OutAmount: uint64(float64(inAmount) * r)}, nil
}

func (a *fakeAdapter) QuoteExactOut(ctx context.Context, prepared venue.PreparedEdge, e venue.EdgeID, outAmount uint64) (venue.Quote, error) {
	if a.failEdges[e] {
		return venue.Quote{}, nil
	}
	r := a.rate[e]
	in := uint64(float64(outAmount)/r + 0.999999)
	return venue.Quote{InAmount: in, OutAmount: outAmount}, nil
}

func (a *fakeAdapter) BuildSwapIx(ctx context.Context, prepared venue.PreparedEdge, e venue.EdgeID, wallet solana.PublicKey, inAmount, outAmount uint64, maxSlippageBps int) (venue.SwapInstruction, error) {
	return venue.SwapInstruction{}, nil
}

func (a *fakeAdapter) EdgesPerPubkey() map[solana.PublicKey][]venue.EdgeID { return nil }

func (a *fakeAdapter) SubscriptionMode() venue.SubscriptionMode { return venue.SubscriptionModeAccounts }

// testHarness wires one Router instance with no on-chain state dependency,
// backed by fakeAdapter, for the scenario tests below.
type testHarness struct {
	t        *testing.T
	registry *edge.Registry
	adapter  *fakeAdapter
	mints    map[string]mint.Mint
	edgeIDs  map[string]venue.EdgeID
}

func newHarness(t *testing.T) *testHarness {
	return &testHarness{
		t:        t,
		registry: edge.NewRegistry(),
		adapter:  newFakeAdapter("fake"),
		mints:    map[string]mint.Mint{},
		edgeIDs:  map[string]venue.EdgeID{},
	}
}

func (h *testHarness) mintFor(name string) mint.Mint {
	m, ok := h.mints[name]
	if !ok {
		m = solana.NewWallet().PublicKey()
		h.mints[name] = m
	}
	return m
}

// addEdge registers a directed edge inName->outName at the given rate
// (output units per input unit), with cached price samples consistent
// with that rate for both quote directions.
func (h *testHarness) addEdge(name, inName, outName string, rate float64, accounts int, exactOut bool) edge.Handle {
	edgeID := venue.EdgeID(name)
	h.edgeIDs[name] = edgeID
	h.adapter.rate[edgeID] = rate
	h.adapter.supportsOut[edgeID] = exactOut

	handle, err := h.registry.Add(edge.Edge{
		VenueID:        h.adapter.id,
		VenueEdgeID:    edgeID,
		InputMint:      h.mintFor(inName),
		OutputMint:     h.mintFor(outName),
		AccountsNeeded: accounts,
	})
	require.NoError(h.t, err)

	e := h.registry.Get(handle)
	exactIn := []edge.PriceSample{{Amount: 10000, QuotedAmount: uint64(10000 * rate)}}
	var out []edge.PriceSample
	if exactOut {
		out = []edge.PriceSample{{Amount: uint64(10000 / rate), QuotedAmount: 10000}}
	}
	e.UpdatePriceSamples(exactIn, out, 42)
	return handle
}

func (h *testHarness) buildRouter(t *testing.T, maxPathLength int) *Router {
	mints := make([]mint.Mint, 0, len(h.mints))
	for _, m := range h.mints {
		mints = append(mints, m)
	}
	graph := mint.Build(mints)

	prunerCfg := pruner.Config{MaxEdgePerPair: 5, MaxEdgePerColdPair: 5, PathWarmingAmounts: []uint64{100, 1000, 10000}}
	p, err := pruner.New(prunerCfg, graph, h.registry, nil)
	require.NoError(t, err)

	cache, err := pathcache.New(pathcache.Config{MaxAge: time.Minute})
	require.NoError(t, err)

	cfg := Config{
		MaxPathLength:      maxPathLength,
		RetainPathCount:    5,
		OverquoteRatio:     0.2,
		PathCacheValidity:  time.Minute,
		MaxEdgePerPair:     5,
		MaxEdgePerColdPair: 5,
		PathWarmingAmounts: []uint64{100, 1000, 10000},
	}
	venues := map[venue.ID]venue.Adapter{h.adapter.id: h.adapter}
	r, err := New(cfg, graph, h.registry, p, cache, venues, chainstate.NewMemStore(), nil, nil, nil)
	require.NoError(t, err)
	return r
}

func (h *testHarness) req(inName, outName string, amount uint64, mode Mode, maxAccounts int) QuoteRequest {
	return QuoteRequest{
		InputMint:   h.mintFor(inName),
		OutputMint:  h.mintFor(outName),
		Amount:      amount,
		Mode:        mode,
		MaxAccounts: maxAccounts,
	}
}

func TestFindBestRouteDirectEdgeWins(t *testing.T) {
	h := newHarness(t)
	h.addEdge("direct", "USDC", "USDT", 0.99, 2, false)
	h.addEdge("leg1", "USDC", "SOL", 1.0/200, 2, false)
	h.addEdge("leg2", "SOL", "USDT", 0.90*200, 2, false)

	r := h.buildRouter(t, 3)
	route, err := r.FindBestRoute(context.Background(), h.req("USDC", "USDT", 1000, ExactIn, 20))
	require.NoError(t, err)
	require.Len(t, route.Steps, 1)
	require.Equal(t, uint64(1000), route.InAmount)
	require.Equal(t, uint64(990), route.OutAmount)
}

func TestFindBestRouteTwoHopWins(t *testing.T) {
	h := newHarness(t)
	h.addEdge("direct", "USDC", "USDT", 0.80, 2, false)
	h.addEdge("leg1", "USDC", "DAI", 1.01, 2, false)
	h.addEdge("leg2", "DAI", "USDT", 1.02, 2, false)

	r := h.buildRouter(t, 3)
	route, err := r.FindBestRoute(context.Background(), h.req("USDC", "USDT", 1000, ExactIn, 20))
	require.NoError(t, err)
	require.Len(t, route.Steps, 2)
	require.Equal(t, uint64(1000), route.InAmount)
	require.Greater(t, route.OutAmount, uint64(800))

	// step chain must be contiguous: step[i].OutputMint == step[i+1].InputMint
	for i := 0; i+1 < len(route.Steps); i++ {
		require.Equal(t, route.Steps[i].OutputMint, route.Steps[i+1].InputMint)
	}
	require.Equal(t, route.InputMint, route.Steps[0].InputMint)
	require.Equal(t, route.OutputMint, route.Steps[len(route.Steps)-1].OutputMint)
}

func TestFindBestRouteAccountBudgetExcludesCheaperEdge(t *testing.T) {
	h := newHarness(t)
	h.addEdge("cheap", "USDC", "USDT", 0.99, 20, false) // excluded: too many accounts
	h.addEdge("pricier", "USDC", "USDT", 0.95, 5, false)

	r := h.buildRouter(t, 3)
	// MaxAccounts=19 leaves a budget of 12 after the 7-account floor,
	// excluding the 20-account edge but admitting the 5-account one.
	route, err := r.FindBestRoute(context.Background(), h.req("USDC", "USDT", 1000, ExactIn, 19))
	require.NoError(t, err)
	require.Len(t, route.Steps, 1)
	require.Equal(t, h.edgeIDs["pricier"], h.registry.Get(route.Steps[0].Edge).VenueEdgeID)
	require.Equal(t, uint64(950), route.OutAmount)
}

func TestFindBestRouteExactOutMinimizesInput(t *testing.T) {
	h := newHarness(t)
	h.addEdge("direct", "USDC", "USDT", 0.99, 2, true)
	h.addEdge("leg1", "USDC", "SOL", 1.0/200, 2, true)
	h.addEdge("leg2", "SOL", "USDT", 0.90*200, 2, true)

	r := h.buildRouter(t, 3)
	route, err := r.FindBestRoute(context.Background(), h.req("USDC", "USDT", 1000, ExactOut, 20))
	require.NoError(t, err)
	require.Equal(t, uint64(1000), route.OutAmount)
	require.Len(t, route.Steps, 1)
	require.InDelta(t, 1000.0/0.99, float64(route.InAmount), 2)
}

func TestFindBestRouteNoPathReturnsNoPathBetweenMintPair(t *testing.T) {
	h := newHarness(t)
	h.addEdge("unrelated", "USDC", "USDT", 0.99, 2, false)
	h.mintFor("SOL") // a mint with no edges at all

	r := h.buildRouter(t, 3)
	_, err := r.FindBestRoute(context.Background(), h.req("USDC", "SOL", 1000, ExactIn, 20))
	require.ErrorIs(t, err, ErrNoPathBetweenMintPair)
}

func TestFindBestRouteUnsupportedMintsRejected(t *testing.T) {
	h := newHarness(t)
	h.addEdge("direct", "USDC", "USDT", 0.99, 2, false)
	r := h.buildRouter(t, 3)

	unknown := solana.NewWallet().PublicKey()
	_, err := r.FindBestRoute(context.Background(), QuoteRequest{
		InputMint: unknown, OutputMint: h.mintFor("USDT"), Amount: 100, Mode: ExactIn, MaxAccounts: 20,
	})
	require.ErrorIs(t, err, ErrUnsupportedInputMint)

	_, err = r.FindBestRoute(context.Background(), QuoteRequest{
		InputMint: h.mintFor("USDC"), OutputMint: unknown, Amount: 100, Mode: ExactIn, MaxAccounts: 20,
	})
	require.ErrorIs(t, err, ErrUnsupportedOutputMint)
}

func TestFindBestRouteFailingEdgeFallsBackToAlternatePath(t *testing.T) {
	h := newHarness(t)
	h.addEdge("direct", "USDC", "USDT", 0.99, 2, false)
	h.addEdge("leg1", "USDC", "SOL", 1.0/200, 2, false)
	h.addEdge("leg2", "SOL", "USDT", 0.95*200, 2, false)
	h.adapter.failEdges[h.edgeIDs["direct"]] = true

	r := h.buildRouter(t, 3)
	route, err := r.FindBestRoute(context.Background(), h.req("USDC", "USDT", 1000, ExactIn, 20))
	require.NoError(t, err)
	require.Len(t, route.Steps, 2)
}

// TestFindBestRouteRankingFlipsByAmount exercises the amount-sensitive
// re-quote: the direct edge looks best at small size but its rate collapses
// once the trade crosses its liquidity threshold, at which point the
// two-hop path — whose legs don't share that threshold — wins instead. The
// router can only observe this because every candidate is re-quoted exactly
// at the real trade size, not ranked off the single cached price sample.
func TestFindBestRouteRankingFlipsByAmount(t *testing.T) {
	h := newHarness(t)
	direct := h.addEdge("direct", "USDC", "USDT", 0.99, 2, false)
	h.addEdge("leg1", "USDC", "SOL", 1.0/200, 2, false)
	h.addEdge("leg2", "SOL", "USDT", 0.90*200, 2, false)

	directEdgeID := h.edgeIDs["direct"]
	h.adapter.deepThreshold[directEdgeID] = 100_000
	h.adapter.deepRate[directEdgeID] = 0.50

	r := h.buildRouter(t, 3)

	small, err := r.FindBestRoute(context.Background(), h.req("USDC", "USDT", 1000, ExactIn, 20))
	require.NoError(t, err)
	require.Len(t, small.Steps, 1)
	require.Equal(t, direct, small.Steps[0].Edge)

	large, err := r.FindBestRoute(context.Background(), h.req("USDC", "USDT", 200_000, ExactIn, 20))
	require.NoError(t, err)
	require.Len(t, large.Steps, 2)
}
