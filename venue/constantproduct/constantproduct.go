// Package constantproduct is a reference venue.Adapter implementing the
// fee-adjusted constant-product curve. It exists to exercise the venue
// contract in the cmd/router wiring demo; real venue math is out of scope
// for the routing core (spec §1).
//
// Grounded on protocols/uniswapv2/calculator/calculator.go's fee-adjusted
// x*y=k math, adapted from *big.Int EVM reserves to uint64 lamport-scale
// Solana token amounts (SPL token accounts never exceed 64 bits). Each
// quote allocates its own big.Int values; no object pool is used.
package constantproduct

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/solroute/swap-router-go/chainstate"
	"github.com/solroute/swap-router-go/venue"
)

// basisPointDivisor represents 100% in basis points.
const basisPointDivisor = 10_000

// Pool is one constant-product pool's reserves and static parameters.
type Pool struct {
	Token0   solana.PublicKey
	Token1   solana.PublicKey
	Reserve0 uint64
	Reserve1 uint64
	FeeBps   uint16
}

// Adapter is a reference constant-product venue. Safe for concurrent use;
// pool mutation (SetPool) takes a write lock, Prepare takes a read lock, and
// quoting works on the Pool value Prepare returned.
type Adapter struct {
	id       venue.ID
	mu       sync.RWMutex
	pools    map[venue.EdgeID]Pool
	edgesPer map[solana.PublicKey][]venue.EdgeID
}

// New creates an empty constant-product adapter.
func New(id venue.ID) *Adapter {
	return &Adapter{
		id:       id,
		pools:    make(map[venue.EdgeID]Pool),
		edgesPer: make(map[solana.PublicKey][]venue.EdgeID),
	}
}

// SetPool registers or updates a pool's reserves, keyed by edge ID.
func (a *Adapter) SetPool(edge venue.EdgeID, pool Pool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pools[edge] = pool
}

func (a *Adapter) ID() venue.ID { return a.id }

func (a *Adapter) Prepare(_ context.Context, edge venue.EdgeID, _ chainstate.Store) (venue.PreparedEdge, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	pool, ok := a.pools[edge]
	if !ok {
		return nil, fmt.Errorf("%w: unknown edge %q", venue.ErrPrepareFailed, edge)
	}
	return pool, nil
}

func (a *Adapter) SupportsExactOut(edge venue.EdgeID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.pools[edge]
	return ok
}

func (a *Adapter) QuoteExactIn(_ context.Context, prepared venue.PreparedEdge, _ venue.EdgeID, inAmount uint64) (venue.Quote, error) {
	pool := prepared.(Pool)
	out, feeMint, feeAmount, err := getAmountOut(inAmount, pool)
	if err != nil {
		return venue.Quote{}, err
	}
	return venue.Quote{InAmount: inAmount, OutAmount: out, FeeAmount: feeAmount, FeeMint: feeMint}, nil
}

func (a *Adapter) QuoteExactOut(_ context.Context, prepared venue.PreparedEdge, _ venue.EdgeID, outAmount uint64) (venue.Quote, error) {
	pool := prepared.(Pool)
	in, feeMint, feeAmount, err := getAmountIn(outAmount, pool)
	if err != nil {
		return venue.Quote{}, err
	}
	return venue.Quote{InAmount: in, OutAmount: outAmount, FeeAmount: feeAmount, FeeMint: feeMint}, nil
}

func (a *Adapter) BuildSwapIx(_ context.Context, prepared venue.PreparedEdge, _ venue.EdgeID, wallet solana.PublicKey, inAmount, outAmount uint64, _ int) (venue.SwapInstruction, error) {
	pool := prepared.(Pool)
	data := make([]byte, 17)
	data[0] = 1 // swap discriminator
	putUint64LE(data[1:9], inAmount)
	putUint64LE(data[9:17], outAmount)
	return venue.SwapInstruction{
		ProgramID: pool.Token0, // placeholder program id for the reference venue
		Accounts: solana.AccountMetaSlice{
			{PublicKey: wallet, IsSigner: true, IsWritable: true},
		},
		Data:        data,
		InputOffset: 1,
	}, nil
}

func (a *Adapter) EdgesPerPubkey() map[solana.PublicKey][]venue.EdgeID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[solana.PublicKey][]venue.EdgeID, len(a.edgesPer))
	for k, v := range a.edgesPer {
		cp := make([]venue.EdgeID, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

func (a *Adapter) SubscriptionMode() venue.SubscriptionMode {
	return venue.SubscriptionModeAccounts
}

// getAmountOut mirrors the teacher's fee-adjusted constant-product formula:
// amountOut = (reserveOut * amountInWithFee) / (reserveIn*10000 + amountInWithFee).
func getAmountOut(amountIn uint64, pool Pool) (out uint64, feeMint solana.PublicKey, feeAmount uint64, err error) {
	if pool.Reserve0 == 0 || pool.Reserve1 == 0 {
		return 0, solana.PublicKey{}, 0, fmt.Errorf("constantproduct: zero reserve")
	}
	reserveIn, reserveOut := big.NewInt(int64(pool.Reserve0)), big.NewInt(int64(pool.Reserve1))

	feeMultiplier := big.NewInt(basisPointDivisor - int64(pool.FeeBps))
	amountInWithFee := new(big.Int).Mul(big.NewInt(int64(amountIn)), feeMultiplier)
	numerator := new(big.Int).Mul(reserveOut, amountInWithFee)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(basisPointDivisor))
	denominator.Add(denominator, amountInWithFee)
	if denominator.Sign() == 0 {
		return 0, solana.PublicKey{}, 0, fmt.Errorf("constantproduct: zero denominator")
	}

	result := new(big.Int).Div(numerator, denominator)
	feeAmount = uint64(amountIn) * uint64(pool.FeeBps) / basisPointDivisor
	return result.Uint64(), pool.Token0, feeAmount, nil
}

// getAmountIn inverts getAmountOut: amountIn = (reserveIn*amountOut*10000) /
// ((reserveOut-amountOut)*feeMultiplier) + 1, the teacher's +1 rounding
// guard against truncation letting the pool settle short.
func getAmountIn(amountOut uint64, pool Pool) (in uint64, feeMint solana.PublicKey, feeAmount uint64, err error) {
	if pool.Reserve0 == 0 || pool.Reserve1 == 0 || amountOut >= pool.Reserve1 {
		return 0, solana.PublicKey{}, 0, fmt.Errorf("constantproduct: insufficient liquidity")
	}
	reserveIn, reserveOut := big.NewInt(int64(pool.Reserve0)), big.NewInt(int64(pool.Reserve1))
	amountOutBig := big.NewInt(int64(amountOut))

	numerator := new(big.Int).Mul(reserveIn, amountOutBig)
	numerator.Mul(numerator, big.NewInt(basisPointDivisor))

	feeMultiplier := big.NewInt(basisPointDivisor - int64(pool.FeeBps))
	denominator := new(big.Int).Sub(reserveOut, amountOutBig)
	denominator.Mul(denominator, feeMultiplier)
	if denominator.Sign() == 0 {
		return 0, solana.PublicKey{}, 0, fmt.Errorf("constantproduct: zero denominator")
	}

	result := new(big.Int).Div(numerator, denominator)
	result.Add(result, big.NewInt(1))
	amountIn := result.Uint64()
	feeAmount = amountIn * uint64(pool.FeeBps) / basisPointDivisor
	return amountIn, pool.Token0, feeAmount, nil
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
