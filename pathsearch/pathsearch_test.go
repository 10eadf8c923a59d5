package pathsearch

import (
	"testing"

	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/mint"
	"github.com/stretchr/testify/require"
)

// testGraph is a fixed adjacency used across tests: mint indices 0..n-1,
// edges identified by their position in the edges slice (used as both the
// edge.Handle and the key into prices/accounts).
type testGraph struct {
	adj map[mint.Index][]OutEdge
}

func (g *testGraph) OutEdges(src mint.Index) []OutEdge { return g.adj[src] }

func (g *testGraph) add(from, to mint.Index, h edge.Handle) {
	g.adj[from] = append(g.adj[from], OutEdge{Target: to, Edge: h})
}

func newTestGraph() *testGraph { return &testGraph{adj: make(map[mint.Index][]OutEdge)} }

// fixedPriceInfo returns an EdgeInfoFunc where every edge has a constant
// price and account cost, keyed by handle.
func fixedPriceInfo(prices map[edge.Handle]float64, accounts map[edge.Handle]int) EdgeInfoFunc {
	return func(h edge.Handle, amount float64) (EdgeInfo, bool) {
		p, ok := prices[h]
		if !ok {
			return EdgeInfo{}, false
		}
		a := accounts[h]
		if a == 0 {
			a = 1
		}
		return EdgeInfo{Price: p, Accounts: a}, true
	}
}

func TestSearchDirectEdgeWins(t *testing.T) {
	// 0 = USDC, 1 = USDT, 2 = SOL
	g := newTestGraph()
	g.add(0, 1, 0) // USDC->USDT @ 0.99
	g.add(0, 1, 1) // USDC->USDT @ 0.95
	g.add(0, 2, 2) // USDC->SOL @ 1/200
	g.add(2, 1, 3) // SOL->USDT @ 0.98*200

	prices := map[edge.Handle]float64{0: 0.99, 1: 0.95, 2: 1.0 / 200, 3: 0.98 * 200}
	accounts := map[edge.Handle]int{0: 1, 1: 1, 2: 1, 3: 1}

	pool := NewPool()
	results, err := Search(Params{
		Source:          0,
		InitialAmount:   1000,
		NumMints:        3,
		Graph:           g,
		EdgeInfo:        fixedPriceInfo(prices, accounts),
		Mode:            ExactIn,
		MaxPathLength:   1,
		RetainPathCount: 10,
		MaxAccounts:     40,
	}, pool)
	require.NoError(t, err)

	usdt := results[1]
	require.NotEmpty(t, usdt)
	require.InDelta(t, 990, usdt[0].Score, 1e-9)
	require.Equal(t, []edge.Handle{0}, usdt[0].Path)
}

func TestSearchTwoHopWins(t *testing.T) {
	// 0 = USDC, 1 = USDT, 3 = DAI
	g := newTestGraph()
	g.add(0, 1, 0) // USDC->USDT @ 0.99
	g.add(0, 3, 1) // USDC->DAI @ 1.01
	g.add(3, 1, 2) // DAI->USDT @ 1.02

	prices := map[edge.Handle]float64{0: 0.99, 1: 1.01, 2: 1.02}
	accounts := map[edge.Handle]int{0: 1, 1: 1, 2: 1}

	pool := NewPool()
	results, err := Search(Params{
		Source:          0,
		InitialAmount:   1,
		NumMints:        4,
		Graph:           g,
		EdgeInfo:        fixedPriceInfo(prices, accounts),
		Mode:            ExactIn,
		MaxPathLength:   2,
		RetainPathCount: 3,
		MaxAccounts:     40,
	}, pool)
	require.NoError(t, err)

	usdt := results[1]
	require.NotEmpty(t, usdt)
	require.Equal(t, []edge.Handle{1, 2}, usdt[0].Path, "two-hop USDC->DAI->USDT must win")
	require.InDelta(t, 1.01*1.02, usdt[0].Score, 1e-9)
}

func TestSearchRejectsCycles(t *testing.T) {
	g := newTestGraph()
	g.add(0, 1, 0)
	g.add(1, 0, 1) // would cycle back to source

	prices := map[edge.Handle]float64{0: 1.1, 1: 1.1}
	accounts := map[edge.Handle]int{0: 1, 1: 1}

	pool := NewPool()
	results, err := Search(Params{
		Source:          0,
		InitialAmount:   1,
		NumMints:        2,
		Graph:           g,
		EdgeInfo:        fixedPriceInfo(prices, accounts),
		Mode:            ExactIn,
		MaxPathLength:   4,
		RetainPathCount: 10,
		MaxAccounts:     40,
	}, pool)
	require.NoError(t, err)

	for _, candidates := range results {
		for _, c := range candidates {
			seen := map[edge.Handle]bool{}
			for _, h := range c.Path {
				require.False(t, seen[h])
				seen[h] = true
			}
		}
	}
	require.NotContains(t, results, mint.Index(0), "source mint must never appear as a reachable destination")
}

func TestSearchRespectsAccountBudget(t *testing.T) {
	g := newTestGraph()
	g.add(0, 1, 0) // cheap: needs 6 accounts
	g.add(0, 1, 1) // needs 10 accounts, same price

	prices := map[edge.Handle]float64{0: 0.99, 1: 0.99}
	accounts := map[edge.Handle]int{0: 6, 1: 10}

	pool := NewPool()
	results, err := Search(Params{
		Source:          0,
		InitialAmount:   1000,
		NumMints:        2,
		Graph:           g,
		EdgeInfo:        fixedPriceInfo(prices, accounts),
		Mode:            ExactIn,
		MaxPathLength:   1,
		RetainPathCount: 10,
		MaxAccounts:     6, // the 7-account router floor is subtracted upstream of PathSearch
	}, pool)
	require.NoError(t, err)

	usdt := results[1]
	require.Len(t, usdt, 1)
	require.Equal(t, edge.Handle(0), usdt[0].Path[0])
}

func TestSearchExactOutMinimizesInput(t *testing.T) {
	// Direct USDC->USDT costs 1/0.99 input per output unit.
	g := newTestGraph()
	g.add(0, 1, 0)
	g.add(0, 2, 1)
	g.add(2, 1, 2)

	// ExactOut prices represent input-required-per-output-unit along the
	// reverse walk; a direct edge needing 1/0.99 input per unit output
	// beats a two-hop path needing more.
	prices := map[edge.Handle]float64{0: 1 / 0.99, 1: 200 / 0.98, 2: 1 / (200 * 0.98)}
	accounts := map[edge.Handle]int{0: 1, 1: 1, 2: 1}

	pool := NewPool()
	results, err := Search(Params{
		Source:          0,
		InitialAmount:   1000,
		NumMints:        3,
		Graph:           g,
		EdgeInfo:        fixedPriceInfo(prices, accounts),
		Mode:            ExactOut,
		MaxPathLength:   2,
		RetainPathCount: 10,
		MaxAccounts:     40,
	}, pool)
	require.NoError(t, err)

	usdt := results[1]
	require.NotEmpty(t, usdt)
	require.Equal(t, []edge.Handle{0}, usdt[0].Path)
	require.InDelta(t, 1000/0.99, usdt[0].Score, 1e-6)
}

func TestSearchTopKIsStablePrefixOfTopKPlusL(t *testing.T) {
	g := newTestGraph()
	prices := map[edge.Handle]float64{}
	accounts := map[edge.Handle]int{}
	for i := 0; i < 6; i++ {
		h := edge.Handle(i)
		g.add(0, 1, h)
		prices[h] = 0.5 + float64(i)*0.01 // strictly increasing, no ties
		accounts[h] = 1
	}

	info := fixedPriceInfo(prices, accounts)
	pool := NewPool()

	small, err := Search(Params{
		Source: 0, InitialAmount: 100, NumMints: 2, Graph: g, EdgeInfo: info,
		Mode: ExactIn, MaxPathLength: 1, RetainPathCount: 2, MaxAccounts: 40,
	}, pool)
	require.NoError(t, err)

	large, err := Search(Params{
		Source: 0, InitialAmount: 100, NumMints: 2, Graph: g, EdgeInfo: info,
		Mode: ExactIn, MaxPathLength: 1, RetainPathCount: 5, MaxAccounts: 40,
	}, pool)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.Equal(t, small[1][i].Path, large[1][i].Path)
	}
}

func TestSearchRespectsMaxPathLength(t *testing.T) {
	g := newTestGraph()
	g.add(0, 1, 0)
	g.add(1, 2, 1)
	g.add(2, 3, 2)

	prices := map[edge.Handle]float64{0: 1.1, 1: 1.1, 2: 1.1}
	accounts := map[edge.Handle]int{0: 1, 1: 1, 2: 1}

	pool := NewPool()
	results, err := Search(Params{
		Source:          0,
		InitialAmount:   1,
		NumMints:        4,
		Graph:           g,
		EdgeInfo:        fixedPriceInfo(prices, accounts),
		Mode:            ExactIn,
		MaxPathLength:   2,
		RetainPathCount: 10,
		MaxAccounts:     40,
	}, pool)
	require.NoError(t, err)

	require.Contains(t, results, mint.Index(2))
	require.NotContains(t, results, mint.Index(3), "destination 3 is three hops away, beyond MaxPathLength=2")
}
