package router

import (
	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/mint"
	"github.com/solroute/swap-router-go/pathsearch"
)

// Mode is the router's external swap-direction tag. It is translated to
// pathsearch.Mode and pathcache.Mode at the package boundary so those two
// packages never need to import each other or this one.
type Mode int

const (
	ExactIn Mode = iota
	ExactOut
)

func (m Mode) toSearchMode() pathsearch.Mode {
	if m == ExactOut {
		return pathsearch.ExactOut
	}
	return pathsearch.ExactIn
}

func (m Mode) isExactOut() bool { return m == ExactOut }

// QuoteRequest is one caller's request for a route between two mints.
type QuoteRequest struct {
	InputMint            mint.Mint
	OutputMint           mint.Mint
	Amount               uint64
	Mode                 Mode
	MaxAccounts          int
	OtherAmountThreshold uint64 // 0 means "no floor enforced"
	IgnoreCache          bool
}

// RouteStep is one hop of a resolved Route, quoted exactly against a
// venue (not the cheap cached estimate PathSearch explores with).
type RouteStep struct {
	Edge      edge.Handle
	VenueID   string
	InputMint mint.Mint
	OutputMint mint.Mint
	InAmount   uint64
	OutAmount  uint64
	FeeAmount  uint64
	FeeMint    mint.Mint
	CUEstimate uint32
}

// Route is the router's resolved result: an ordered, exactly-quoted chain
// of edges from InputMint to OutputMint.
type Route struct {
	InputMint      mint.Mint
	OutputMint     mint.Mint
	Mode           Mode
	InAmount       uint64
	OutAmount      uint64
	PriceImpactBps int64
	Slot           uint64
	Steps          []RouteStep
}

// RoutePlanStep is the Jupiter-shaped wire representation of one RouteStep.
type RoutePlanStep struct {
	VenueLabel string `json:"venueLabel"`
	AmmKey     string `json:"ammKey"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// QuoteResponse is the wire representation of a resolved Route, matching
// the Jupiter-style quote-api field names and decimal-string amounts.
type QuoteResponse struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	SwapMode             string          `json:"swapMode"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	PriceImpactBps       string          `json:"priceImpactBps"`
	ContextSlot          uint64          `json:"contextSlot"`
	TimeTakenSeconds     float64         `json:"timeTakenSeconds"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
}

// SwapRequest wraps a previously-returned QuoteResponse with the fields
// needed to assemble the actual transaction.
type SwapRequest struct {
	QuoteResponse                 QuoteResponse `json:"quoteResponse"`
	UserPublicKey                 string        `json:"userPublicKey"`
	WrapAndUnwrapSol              bool          `json:"wrapAndUnwrapSol"`
	AutoCreateOutAta              bool          `json:"autoCreateOutAta"`
	ComputeUnitPriceMicroLamports uint64        `json:"computeUnitPriceMicroLamports"`
	SlippageBps                   int           `json:"slippageBps"`
}

// SwapResponse carries the assembled, unsigned transaction back to the
// caller.
type SwapResponse struct {
	SwapTransaction   []byte          `json:"swapTransaction"`
	LastValidBlockHgt uint64          `json:"lastValidBlockHeight"`
	ComputeUnitLimit  uint32          `json:"computeUnitLimit"`
	PrioritizationFee uint64          `json:"prioritizationFeeLamports"`
}
