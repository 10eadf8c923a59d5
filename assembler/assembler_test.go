package assembler

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/solroute/swap-router-go/chainstate"
	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/router"
	"github.com/solroute/swap-router-go/venue"
)

// executorProgramID stands in for the deployed composed-instruction
// executor a real deployment would configure via
// config.Config.ExecutorProgramID.
var executorProgramID = solana.NewWallet().PublicKey()

// stubAdapter is a minimal venue.Adapter; data/inputOffset let a test shape
// the exact hop instruction generateSwapIxData composes.
type stubAdapter struct {
	id          venue.ID
	data        []byte
	inputOffset int
}

func (a stubAdapter) ID() venue.ID { return a.id }
func (a stubAdapter) Prepare(context.Context, venue.EdgeID, chainstate.Store) (venue.PreparedEdge, error) {
	return struct{}{}, nil
}
func (a stubAdapter) SupportsExactOut(venue.EdgeID) bool { return true }
func (a stubAdapter) QuoteExactIn(context.Context, venue.PreparedEdge, venue.EdgeID, uint64) (venue.Quote, error) {
	return venue.Quote{}, nil
}
func (a stubAdapter) QuoteExactOut(context.Context, venue.PreparedEdge, venue.EdgeID, uint64) (venue.Quote, error) {
	return venue.Quote{}, nil
}
func (a stubAdapter) BuildSwapIx(_ context.Context, _ venue.PreparedEdge, _ venue.EdgeID, wallet solana.PublicKey, inAmount, outAmount uint64, _ int) (venue.SwapInstruction, error) {
	data := a.data
	if data == nil {
		data = []byte{0}
	}
	return venue.SwapInstruction{
		ProgramID:   systemProgramID,
		Accounts:    solana.AccountMetaSlice{{PublicKey: wallet, IsSigner: true, IsWritable: true}},
		Data:        data,
		InputOffset: a.inputOffset,
	}, nil
}
func (a stubAdapter) EdgesPerPubkey() map[solana.PublicKey][]venue.EdgeID { return nil }
func (a stubAdapter) SubscriptionMode() venue.SubscriptionMode            { return venue.SubscriptionModeAccounts }

func buildHarness(t *testing.T, inMint, outMint solana.PublicKey) (*Assembler, edge.Handle) {
	registry := edge.NewRegistry()
	h, err := registry.Add(edge.Edge{
		VenueID:        "stub",
		VenueEdgeID:    "e1",
		InputMint:      inMint,
		OutputMint:     outMint,
		AccountsNeeded: 2,
	})
	require.NoError(t, err)

	venues := map[venue.ID]venue.Adapter{"stub": stubAdapter{id: "stub"}}
	return New(registry, venues, chainstate.NewMemStore(), executorProgramID), h
}

func oneStepRoute(in, out solana.PublicKey, h edge.Handle, mode router.Mode) *router.Route {
	return &router.Route{
		InputMint:  in,
		OutputMint: out,
		Mode:       mode,
		InAmount:   1000,
		OutAmount:  2000,
		Steps: []router.RouteStep{
			{Edge: h, VenueID: "stub", InputMint: in, OutputMint: out, InAmount: 1000, OutAmount: 2000},
		},
	}
}

func TestBuildSwapRejectsEmptyRoute(t *testing.T) {
	in := solana.NewWallet().PublicKey()
	out := solana.NewWallet().PublicKey()
	a, _ := buildHarness(t, in, out)
	wallet := solana.NewWallet().PublicKey()

	_, err := a.BuildSwap(context.Background(), wallet, &router.Route{InputMint: in, OutputMint: out}, false, false, 0, 0)
	require.Error(t, err)
}

func TestBuildSwapAddsWrapUnwrapWhenInputIsSol(t *testing.T) {
	out := solana.NewWallet().PublicKey()
	a, h := buildHarness(t, wrappedSolMint, out)
	wallet := solana.NewWallet().PublicKey()

	route := oneStepRoute(wrappedSolMint, out, h, router.ExactIn)
	swap, err := a.BuildSwap(context.Background(), wallet, route, true, false, 50, 1900)
	require.NoError(t, err)
	// create ATA + transfer + sync_native = 3 setup instructions, 1 cleanup (close).
	require.Len(t, swap.SetupInstructions, 3)
	require.Len(t, swap.CleanupInstructions, 1)
}

func TestBuildSwapAddsWrapUnwrapWhenOutputIsSol(t *testing.T) {
	in := solana.NewWallet().PublicKey()
	a, h := buildHarness(t, in, wrappedSolMint)
	wallet := solana.NewWallet().PublicKey()

	route := oneStepRoute(in, wrappedSolMint, h, router.ExactIn)
	swap, err := a.BuildSwap(context.Background(), wallet, route, true, false, 50, 1900)
	require.NoError(t, err)
	require.Len(t, swap.SetupInstructions, 1) // idempotent create for the out ATA
	require.Len(t, swap.CleanupInstructions, 1)
}

func TestBuildSwapNoWrapUnwrapWhenNeitherMintIsSol(t *testing.T) {
	in := solana.NewWallet().PublicKey()
	out := solana.NewWallet().PublicKey()
	a, h := buildHarness(t, in, out)
	wallet := solana.NewWallet().PublicKey()

	route := oneStepRoute(in, out, h, router.ExactIn)
	swap, err := a.BuildSwap(context.Background(), wallet, route, true, false, 50, 1900)
	require.NoError(t, err)
	require.Empty(t, swap.SetupInstructions)
	require.Empty(t, swap.CleanupInstructions)
}

func TestBuildSwapComputeUnitEstimateIncludesBaseAndHop(t *testing.T) {
	in := solana.NewWallet().PublicKey()
	out := solana.NewWallet().PublicKey()
	a, h := buildHarness(t, in, out)
	wallet := solana.NewWallet().PublicKey()

	route := oneStepRoute(in, out, h, router.ExactIn)
	swap, err := a.BuildSwap(context.Background(), wallet, route, false, false, 50, 1900)
	require.NoError(t, err)
	require.Equal(t, cuBase+cuPerHopDefault, swap.ComputeUnitEstimate)
}

// TestBuildSwapComposesSingleInstructionWithInputOffsetAndMinOut exercises
// generateSwapIxData: the hop's InputOffset and the route-wide min-out must
// both survive into the one composed SwapInstruction, per spec §4.7.
func TestBuildSwapComposesSingleInstructionWithInputOffsetAndMinOut(t *testing.T) {
	in := solana.NewWallet().PublicKey()
	out := solana.NewWallet().PublicKey()

	registry := edge.NewRegistry()
	h, err := registry.Add(edge.Edge{
		VenueID:        "stub",
		VenueEdgeID:    "e1",
		InputMint:      in,
		OutputMint:     out,
		AccountsNeeded: 2,
	})
	require.NoError(t, err)

	hopData := []byte{9, 9, 9}
	venues := map[venue.ID]venue.Adapter{"stub": stubAdapter{id: "stub", data: hopData, inputOffset: 1}}
	a := New(registry, venues, chainstate.NewMemStore(), executorProgramID)
	wallet := solana.NewWallet().PublicKey()

	route := oneStepRoute(in, out, h, router.ExactIn)
	const otherAmountThreshold = 1800
	swap, err := a.BuildSwap(context.Background(), wallet, route, false, false, 50, otherAmountThreshold)
	require.NoError(t, err)

	ix := swap.SwapInstruction
	require.True(t, ix.ProgramID.Equals(executorProgramID))
	require.Len(t, ix.Accounts, 1) // the single hop's one account, concatenated

	require.Equal(t, byte(1), ix.Data[0]) // router version
	require.Equal(t, uint64(otherAmountThreshold), binary.LittleEndian.Uint64(ix.Data[1:9]))
	require.Equal(t, byte(1), ix.Data[9]) // hop count

	hop := ix.Data[10:]
	require.Equal(t, byte(1), hop[0]) // this hop's account count
	require.Equal(t, uint16(len(hopData)), binary.LittleEndian.Uint16(hop[1:3]))
	require.Equal(t, hopData, hop[3:3+len(hopData)])
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(hop[3+len(hopData):3+len(hopData)+2]))
}

// TestBuildSwapMinOutUsesRouteOutAmountForExactOut confirms the exact-out
// path embeds route.OutAmount as min_out_amount rather than the caller's
// otherAmountThreshold (which bounds max-in on that side, not min-out).
func TestBuildSwapMinOutUsesRouteOutAmountForExactOut(t *testing.T) {
	in := solana.NewWallet().PublicKey()
	out := solana.NewWallet().PublicKey()
	a, h := buildHarness(t, in, out)
	wallet := solana.NewWallet().PublicKey()

	route := oneStepRoute(in, out, h, router.ExactOut)
	swap, err := a.BuildSwap(context.Background(), wallet, route, false, false, 50, 999)
	require.NoError(t, err)

	minOut := binary.LittleEndian.Uint64(swap.SwapInstruction.Data[1:9])
	require.Equal(t, route.OutAmount, minOut)
}
