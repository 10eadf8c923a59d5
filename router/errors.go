package router

import "errors"

// Error taxonomy (spec §7). Unsupported*/NoPathBetweenMintPair/InvalidAmount
// are surfaced to callers. CouldNotComputeOut/QuoteDiverged are internal:
// they reject one candidate path, and once every fallback is exhausted the
// caller receives NoPathBetweenMintPair. TxTooLarge is declared for
// assembly-size failures, but nothing in this module returns it and no
// assembly retry with a reduced max_accounts exists.
var (
	ErrUnsupportedInputMint  = errors.New("router: input mint not present in graph")
	ErrUnsupportedOutputMint = errors.New("router: output mint not present in graph")
	ErrNoPathBetweenMintPair = errors.New("router: no path survived re-quote under any fallback")
	ErrCouldNotComputeOut    = errors.New("router: venue snapshot unavailable for a path step")
	ErrQuoteDiverged         = errors.New("router: exact quote diverged from cached estimate")
	ErrTxTooLarge            = errors.New("router: assembled transaction exceeds size or account limits")
	ErrInvalidAmount         = errors.New("router: amount must be positive")
)
