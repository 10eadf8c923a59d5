// Package venue defines the capability set every liquidity venue exposes to
// the routing core. The core is venue-agnostic: it sees every venue through
// this interface, never through a type hierarchy (spec §9 "Polymorphism over
// venues"). Venue-specific quote math is out of scope; this package only
// hosts the contract. One reference adapter, used by the cmd/router wiring,
// lives in venue/constantproduct.
package venue

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/solroute/swap-router-go/chainstate"
)

// ID opaquely identifies a venue (e.g. "raydium-cp", "orca-whirlpool").
type ID string

// EdgeID opaquely identifies one edge within a venue's own namespace.
type EdgeID string

// SubscriptionMode tells the ingestion layer how a venue prefers to have
// its accounts subscribed to; the core never acts on this itself.
type SubscriptionMode int

const (
	SubscriptionModeAccounts SubscriptionMode = iota
	SubscriptionModeProgram
)

// ErrPrepareFailed is returned when a venue cannot produce a prepared
// snapshot for an edge (missing account, decode failure).
var ErrPrepareFailed = errors.New("venue: prepare failed")

// ErrExactOutUnsupported is returned by QuoteExactOut when the venue has no
// closed-form exact-output quote for a given edge.
var ErrExactOutUnsupported = errors.New("venue: exact-out unsupported for this edge")

// PreparedEdge is the venue-specific state snapshot Prepare returns; it is
// opaque to the core and passed back into Quote*/BuildSwapIx unchanged.
type PreparedEdge any

// Quote is the shared result shape for both quote directions.
type Quote struct {
	InAmount  uint64
	OutAmount uint64
	FeeAmount uint64
	FeeMint   solana.PublicKey
	// CUEstimate is this hop's expected compute-unit cost; SwapAssembler
	// falls back to a default if a venue leaves this at zero.
	CUEstimate uint32
}

// SwapInstruction is one venue-specific instruction plus the account list it
// touches, ready to be embedded into the composed transaction.
type SwapInstruction struct {
	ProgramID solana.PublicKey
	Accounts  solana.AccountMetaSlice
	Data      []byte
	// InputOffset is the byte offset within Data of the little-endian input
	// amount, letting SwapAssembler's executor enforce a path-wide min-out.
	InputOffset int
}

// Adapter is the contract every venue implements. Capability differences
// (no exact-out support) are expressed via SupportsExactOut, not via type
// assertions or optional interfaces.
type Adapter interface {
	ID() ID

	// Prepare loads the venue-specific state snapshot needed to quote edge,
	// as of the given chain-state snapshot. Idempotent per (edge, state).
	Prepare(ctx context.Context, edge EdgeID, state chainstate.Store) (PreparedEdge, error)

	// SupportsExactOut reports whether QuoteExactOut is implemented for edge.
	SupportsExactOut(edge EdgeID) bool

	QuoteExactIn(ctx context.Context, prepared PreparedEdge, edge EdgeID, inAmount uint64) (Quote, error)
	QuoteExactOut(ctx context.Context, prepared PreparedEdge, edge EdgeID, outAmount uint64) (Quote, error)

	BuildSwapIx(ctx context.Context, prepared PreparedEdge, edge EdgeID, wallet solana.PublicKey, inAmount, outAmount uint64, maxSlippageBps int) (SwapInstruction, error)

	// EdgesPerPubkey reports, for subscription-filtering purposes, which
	// edges depend on which on-chain accounts.
	EdgesPerPubkey() map[solana.PublicKey][]EdgeID

	SubscriptionMode() SubscriptionMode
}
