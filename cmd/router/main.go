// Command router wires config, chain-state, the mint graph / edge
// registry / pruner / path-discovery cache, venue adapters, the routing
// core and the swap assembler together, then demonstrates one
// FindBestRoute (and BuildSwap) call.
//
// Grounded on cmd/client/main.go's signal-context + slog + construct-and-
// run wiring shape. There is no HTTP server here: the external interface
// (spec §6's Jupiter-shaped QuoteResponse/SwapResponse) is exposed by
// router.ToQuoteResponse and assembler.Assembler for an embedder to wire
// into whatever transport it needs; serving HTTP itself is out of scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/solroute/swap-router-go/assembler"
	"github.com/solroute/swap-router-go/chainstate"
	"github.com/solroute/swap-router-go/config"
	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/mint"
	"github.com/solroute/swap-router-go/pathcache"
	"github.com/solroute/swap-router-go/pruner"
	"github.com/solroute/swap-router-go/router"
	"github.com/solroute/swap-router-go/venue"
	"github.com/solroute/swap-router-go/venue/constantproduct"
)

func main() {
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	rootLogger := slog.New(rootLogHandler)
	close := func() {
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("failed to load configuration", "error", err)
		close()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, asm, err := build(cfg, rootLogger, prometheus.DefaultRegisterer)
	if err != nil {
		rootLogger.Error("failed to build router", "error", err)
		close()
		return
	}

	sweepEvery, err := cfg.SweepEvery()
	if err != nil {
		rootLogger.Error("invalid sweep_interval", "error", err)
		close()
		return
	}
	refreshEvery, err := cfg.RefreshEvery()
	if err != nil {
		rootLogger.Error("invalid refresh_interval", "error", err)
		close()
		return
	}
	go runMaintenance(ctx, rt, sweepEvery, refreshEvery)

	mints, err := cfg.MintPubkeys()
	if err != nil {
		rootLogger.Error("invalid mint configuration", "error", err)
		close()
		return
	}
	if len(mints) < 2 {
		rootLogger.Error("need at least two configured mints to demonstrate a route")
		close()
		return
	}

	demonstrate(ctx, rt, asm, mints[0], mints[len(mints)-1], rootLogger)

	<-ctx.Done()
}

func loadConfig() (*config.Config, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	return config.LoadConfig(*configPath)
}

// build constructs every collaborator from cfg: the mint graph, the edge
// registry (seeded from cfg.Pools), the pruner, the path-discovery cache,
// the venue adapters, the Router and the Assembler.
func build(cfg *config.Config, log *slog.Logger, reg prometheus.Registerer) (*router.Router, *assembler.Assembler, error) {
	mints, err := cfg.MintPubkeys()
	if err != nil {
		return nil, nil, err
	}
	graph := mint.Build(mints)

	registry := edge.NewRegistry()
	venues := map[venue.ID]venue.Adapter{}

	for _, p := range cfg.Pools {
		inMint, err := solana.PublicKeyFromBase58(p.InputMint)
		if err != nil {
			return nil, nil, fmt.Errorf("cmd/router: pool %s/%s: invalid input_mint: %w", p.VenueID, p.VenueEdgeID, err)
		}
		outMint, err := solana.PublicKeyFromBase58(p.OutputMint)
		if err != nil {
			return nil, nil, fmt.Errorf("cmd/router: pool %s/%s: invalid output_mint: %w", p.VenueID, p.VenueEdgeID, err)
		}

		if _, err := registry.Add(edge.Edge{
			VenueID:        venue.ID(p.VenueID),
			VenueEdgeID:    venue.EdgeID(p.VenueEdgeID),
			InputMint:      inMint,
			OutputMint:     outMint,
			AccountsNeeded: p.AccountsNeeded,
		}); err != nil {
			return nil, nil, fmt.Errorf("cmd/router: pool %s/%s: %w", p.VenueID, p.VenueEdgeID, err)
		}

		adapter, ok := venues[venue.ID(p.VenueID)].(*constantproduct.Adapter)
		if !ok {
			adapter = constantproduct.New(venue.ID(p.VenueID))
			venues[venue.ID(p.VenueID)] = adapter
		}
		adapter.SetPool(venue.EdgeID(p.VenueEdgeID), constantproduct.Pool{
			Token0:   inMint,
			Token1:   outMint,
			Reserve0: p.ReserveIn,
			Reserve1: p.ReserveOut,
			FeeBps:   uint16(p.FeeBps),
		})
	}

	hotMints, err := cfg.HotMintSet()
	if err != nil {
		return nil, nil, err
	}

	prunerCfg := cfg.ToPrunerConfig()
	prun, err := pruner.New(prunerCfg, graph, registry, hotMints)
	if err != nil {
		return nil, nil, fmt.Errorf("cmd/router: pruner: %w", err)
	}

	pathCacheCfg, err := cfg.ToPathCacheConfig()
	if err != nil {
		return nil, nil, err
	}
	cache, err := pathcache.New(pathCacheCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("cmd/router: pathcache: %w", err)
	}

	routerCfg, err := cfg.ToRouterConfig()
	if err != nil {
		return nil, nil, err
	}

	store := chainstate.NewMemStore()

	rt, err := router.New(routerCfg, graph, registry, prun, cache, venues, store, hotMints, reg, log.With("component", "router"))
	if err != nil {
		return nil, nil, fmt.Errorf("cmd/router: router: %w", err)
	}

	executorProgramID, err := cfg.ExecutorProgramKey()
	if err != nil {
		return nil, nil, err
	}
	asm := assembler.New(registry, venues, store, executorProgramID)
	return rt, asm, nil
}

// runMaintenance periodically sweeps stale path-discovery cache entries
// and refreshes the pruned adjacency snapshots, stopping when ctx is
// cancelled.
func runMaintenance(ctx context.Context, rt *router.Router, sweepEvery, refreshEvery time.Duration) {
	sweepTicker := time.NewTicker(sweepEvery)
	defer sweepTicker.Stop()
	refreshTicker := time.NewTicker(refreshEvery)
	defer refreshTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-sweepTicker.C:
			rt.Sweep(now)
		case now := <-refreshTicker.C:
			rt.RefreshAdjacency(now)
		}
	}
}

// demonstrate resolves one route between inMint and outMint, assembles its
// swap instructions, and logs the outcome.
func demonstrate(ctx context.Context, rt *router.Router, asm *assembler.Assembler, inMint, outMint solana.PublicKey, log *slog.Logger) {
	req := router.QuoteRequest{
		InputMint:   inMint,
		OutputMint:  outMint,
		Amount:      1_000_000,
		Mode:        router.ExactIn,
		MaxAccounts: 64,
	}

	route, err := rt.FindBestRoute(ctx, req)
	if err != nil {
		log.Warn("no route found for demonstration quote", "error", err)
		return
	}
	log.Info("resolved route",
		"in_amount", route.InAmount,
		"out_amount", route.OutAmount,
		"price_impact_bps", route.PriceImpactBps,
		"hops", len(route.Steps),
	)

	wallet := solana.NewWallet().PublicKey()
	swap, err := asm.BuildSwap(ctx, wallet, route, true, false, 50, 0)
	if err != nil {
		log.Warn("failed to assemble swap for demonstration route", "error", err)
		return
	}
	log.Info("assembled swap",
		"setup_ixs", len(swap.SetupInstructions),
		"swap_ix_accounts", len(swap.SwapInstruction.Accounts),
		"cleanup_ixs", len(swap.CleanupInstructions),
		"compute_unit_estimate", swap.ComputeUnitEstimate,
	)
}
