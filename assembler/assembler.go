// Package assembler turns a resolved router.Route into the setup/swap/
// cleanup instruction triad ready for a transaction, including idempotent
// ATA creation, native-SOL wrap/unwrap, and a compute-unit estimate.
//
// Grounded on
// _examples/original_source/bin/autobahn-router/src/ix_builder.rs
// (SwapInstructionsBuilderImpl::build_ixs): the CU constants, the
// setup-before/cleanup-after instruction ordering, the idempotent
// create_associated_token_account call, and the 2x max-slippage-per-hop
// widening are carried over unchanged; instruction construction itself
// uses solana-go's solana.PublicKey/AccountMetaSlice the way
// venue/constantproduct/constantproduct.go already builds raw instruction
// data.
//
// The swap leg is a single composed instruction, not one instruction per
// hop: ix_builder.rs hands every per-hop SwapInstruction (its own program,
// accounts, data and in_amount_offset) to autobahn_executor's
// generate_swap_ix_data, which packs them into one instruction a single
// executor program CPIs through, enforcing the route-wide min-out only
// once at the end. generateSwapIxData below reproduces that packing
// (header + per-hop account-count/data/input-offset records); the exact
// byte layout autobahn_executor itself expects isn't in the retrieval
// pack, so this is our own wire encoding of the same composition.
package assembler

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/solroute/swap-router-go/chainstate"
	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/router"
	"github.com/solroute/swap-router-go/venue"
)

// Compute-unit constants (ix_builder.rs: CU_BASE, CU_PER_HOP_DEFAULT, and
// the 12_000 literal charged for each ATA create/native close).
const (
	cuBase          uint32 = 150_000
	cuPerHopDefault uint32 = 80_000
	cuPerAtaOrClose uint32 = 12_000
)

// Well-known program/mint addresses referenced while assembling.
var (
	wrappedSolMint      = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	splTokenProgramID   = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	splATAProgramID     = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	systemProgramID     = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
)

// Instruction is the program-agnostic instruction shape every setup, swap
// and cleanup step is expressed in.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  solana.AccountMetaSlice
	Data      []byte
}

// Swap is the fully-assembled instruction triad for one route, plus the
// compute-unit budget estimate the caller should request. SwapInstruction
// is one instruction composed from every hop (see generateSwapIxData), not
// a list of per-hop instructions: the executor program it targets enforces
// the route-wide min-out after CPI-ing through each hop in turn.
type Swap struct {
	SetupInstructions   []Instruction
	SwapInstruction     Instruction
	CleanupInstructions []Instruction
	ComputeUnitEstimate uint32
}

// Assembler builds instruction triads for resolved routes, looking up the
// venue-specific instruction builder and prepared snapshot for each hop.
type Assembler struct {
	registry          *edge.Registry
	venues            map[venue.ID]venue.Adapter
	state             chainstate.Store
	executorProgramID solana.PublicKey
}

// New constructs an Assembler sharing the same registry/venues/state a
// Router was built with. executorProgramID is the on-chain program the
// composed swap instruction targets (autobahn_executor's role in the
// original); it is caller-supplied rather than hardcoded since no real
// deployed address for it is available here.
func New(registry *edge.Registry, venues map[venue.ID]venue.Adapter, state chainstate.Store, executorProgramID solana.PublicKey) *Assembler {
	return &Assembler{registry: registry, venues: venues, state: state, executorProgramID: executorProgramID}
}

// BuildSwap assembles the instruction triad for route. wrapAndUnwrapSol
// wraps native SOL into the input ATA before the swap and closes the
// output wSOL ATA afterward when either leg touches wrapped SOL;
// autoCreateOutAta idempotently creates the destination ATA for every hop
// output regardless of mint. slippageBps is the user-facing tolerance;
// per-hop instructions receive double that, matching the original's
// "don't rely on per-venue min-out, only the whole-route check at the end
// matters" rationale. otherAmountThreshold is the route's own slippage
// floor/ceiling (out_amount min for ExactIn, in_amount max for ExactOut).
func (a *Assembler) BuildSwap(
	ctx context.Context,
	wallet solana.PublicKey,
	route *router.Route,
	wrapAndUnwrapSol bool,
	autoCreateOutAta bool,
	slippageBps int,
	otherAmountThreshold uint64,
) (*Swap, error) {
	if len(route.Steps) == 0 {
		return nil, fmt.Errorf("assembler: route has no steps")
	}

	var setup, cleanup []Instruction
	cu := cuBase

	if wrapAndUnwrapSol && route.InputMint == wrappedSolMint {
		wsolAta, err := deriveAssociatedTokenAddress(wallet, wrappedSolMint)
		if err != nil {
			return nil, err
		}
		setup = append(setup, createAtaIdempotent(wallet, wallet, wrappedSolMint))
		cu += cuPerAtaOrClose

		transferAmount := route.InAmount
		if route.Mode == router.ExactOut {
			transferAmount = otherAmountThreshold
		}
		setup = append(setup, systemTransfer(wallet, wsolAta, transferAmount))
		setup = append(setup, syncNative(wsolAta))
		cleanup = append(cleanup, closeTokenAccount(wsolAta, wallet))
		cu += cuPerAtaOrClose
	}

	maxSlippageForHopBps := slippageBps * 2

	hopIxs := make([]venue.SwapInstruction, len(route.Steps))
	for i, step := range route.Steps {
		e := a.registry.Get(step.Edge)
		adapter, ok := a.venues[e.VenueID]
		if !ok {
			return nil, fmt.Errorf("assembler: unknown venue %q for hop %d", e.VenueID, i)
		}
		prepared, err := adapter.Prepare(ctx, e.VenueEdgeID, a.state)
		if err != nil {
			return nil, fmt.Errorf("assembler: prepare failed for hop %d: %w", i, err)
		}

		hopInAmount := step.InAmount
		if route.Mode == router.ExactOut {
			hopInAmount = otherAmountThreshold
		}

		ix, err := adapter.BuildSwapIx(ctx, prepared, e.VenueEdgeID, wallet, hopInAmount, step.OutAmount, maxSlippageForHopBps)
		if err != nil {
			return nil, fmt.Errorf("assembler: build_swap_ix failed for hop %d: %w", i, err)
		}
		hopIxs[i] = ix

		if autoCreateOutAta || (step.OutputMint == wrappedSolMint && wrapAndUnwrapSol) {
			setup = append(setup, createAtaIdempotent(wallet, wallet, step.OutputMint))
			cu += cuPerAtaOrClose
		}
		if step.OutputMint == wrappedSolMint && wrapAndUnwrapSol {
			outAta, err := deriveAssociatedTokenAddress(wallet, wrappedSolMint)
			if err != nil {
				return nil, err
			}
			cleanup = append(cleanup, closeTokenAccount(outAta, wallet))
			cu += cuPerAtaOrClose
		}

		hopCU := step.CUEstimate
		if hopCU == 0 {
			hopCU = cuPerHopDefault
		}
		cu += hopCU
	}

	minOutAmount := otherAmountThreshold
	if route.Mode == router.ExactOut {
		minOutAmount = route.OutAmount
	}
	swapIx, err := a.generateSwapIxData(minOutAmount, hopIxs)
	if err != nil {
		return nil, err
	}

	return &Swap{
		SetupInstructions:   setup,
		SwapInstruction:     swapIx,
		CleanupInstructions: cleanup,
		ComputeUnitEstimate: cu,
	}, nil
}

// generateSwapIxData composes hopIxs (one SwapInstruction per route hop,
// each carrying its own program, accounts, data and InputOffset) into a
// single Instruction targeting a.executorProgramID. Accounts are the
// concatenation of every hop's own accounts, in hop order; Data is:
//
//	[0]      router version byte (1)
//	[1:9]    min_out_amount, little-endian u64
//	[9]      hop count, uint8
//	per hop:
//	  [0]    this hop's account count, uint8 (how many of Accounts it claims)
//	  [1:3]  this hop's data length, little-endian u16
//	  [...]  this hop's raw instruction data
//	  [+2]   this hop's InputOffset within that data, little-endian u16
//
// matching ix_builder.rs's generate_swap_ix_data call in spirit (min-out,
// per-hop instructions, per-hop input offsets, one router-version byte),
// though not autobahn_executor's exact wire format.
func (a *Assembler) generateSwapIxData(minOutAmount uint64, hopIxs []venue.SwapInstruction) (Instruction, error) {
	if len(hopIxs) > 255 {
		return Instruction{}, fmt.Errorf("assembler: route has too many hops to compose (%d)", len(hopIxs))
	}

	var accounts solana.AccountMetaSlice
	data := make([]byte, 10, 64)
	binary.LittleEndian.PutUint64(data[1:9], minOutAmount)
	data[0] = 1 // router version
	data[9] = byte(len(hopIxs))

	for _, hop := range hopIxs {
		if len(hop.Accounts) > 255 {
			return Instruction{}, fmt.Errorf("assembler: hop has too many accounts to compose (%d)", len(hop.Accounts))
		}
		if len(hop.Data) > math.MaxUint16 || hop.InputOffset > math.MaxUint16 {
			return Instruction{}, fmt.Errorf("assembler: hop instruction data/offset too large to compose")
		}
		accounts = append(accounts, hop.Accounts...)

		data = append(data, byte(len(hop.Accounts)))
		lenBuf := make([]byte, 2)
		binary.LittleEndian.PutUint16(lenBuf, uint16(len(hop.Data)))
		data = append(data, lenBuf...)
		data = append(data, hop.Data...)
		offsetBuf := make([]byte, 2)
		binary.LittleEndian.PutUint16(offsetBuf, uint16(hop.InputOffset))
		data = append(data, offsetBuf...)
	}

	return Instruction{ProgramID: a.executorProgramID, Accounts: accounts, Data: data}, nil
}

// deriveAssociatedTokenAddress computes the canonical ATA for (owner,
// mint) using the SPL associated-token-account PDA derivation.
func deriveAssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	seeds := [][]byte{owner.Bytes(), splTokenProgramID.Bytes(), mint.Bytes()}
	addr, _, err := solana.FindProgramAddress(seeds, splATAProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("assembler: derive ATA: %w", err)
	}
	return addr, nil
}

// createAtaIdempotent builds the SPL associated-token-account program's
// idempotent create instruction (discriminator 1).
func createAtaIdempotent(payer, owner, mint solana.PublicKey) Instruction {
	ata, _ := deriveAssociatedTokenAddress(owner, mint)
	return Instruction{
		ProgramID: splATAProgramID,
		Accounts: solana.AccountMetaSlice{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: ata, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: systemProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: splTokenProgramID, IsSigner: false, IsWritable: false},
		},
		Data: []byte{1},
	}
}

// systemTransfer builds the System Program's transfer instruction moving
// lamports from wallet into the wSOL ATA before a sync_native call.
func systemTransfer(from, to solana.PublicKey, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2) // system program Transfer discriminant
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return Instruction{
		ProgramID: systemProgramID,
		Accounts: solana.AccountMetaSlice{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsSigner: false, IsWritable: true},
		},
		Data: data,
	}
}

// syncNative builds the SPL Token program's SyncNative instruction,
// reconciling a wSOL account's token balance with its lamport balance
// after a raw lamport transfer into it.
func syncNative(account solana.PublicKey) Instruction {
	return Instruction{
		ProgramID: splTokenProgramID,
		Accounts: solana.AccountMetaSlice{
			{PublicKey: account, IsSigner: false, IsWritable: true},
		},
		Data: []byte{17}, // SPL Token SyncNative instruction tag
	}
}

// closeTokenAccount builds the SPL Token program's CloseAccount
// instruction, reclaiming an account's rent to destination once its
// balance has been swept to zero.
func closeTokenAccount(account, destination solana.PublicKey) Instruction {
	return Instruction{
		ProgramID: splTokenProgramID,
		Accounts: solana.AccountMetaSlice{
			{PublicKey: account, IsSigner: false, IsWritable: true},
			{PublicKey: destination, IsSigner: false, IsWritable: true},
			{PublicKey: destination, IsSigner: true, IsWritable: false},
		},
		Data: []byte{9}, // SPL Token CloseAccount instruction tag
	}
}
