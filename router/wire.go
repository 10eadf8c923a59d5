package router

import (
	"strconv"
)

// ToQuoteResponse converts a resolved Route to its Jupiter-shaped wire
// representation, stamping the caller-observed search latency.
func ToQuoteResponse(route *Route, otherAmountThreshold uint64, timeTakenSeconds float64) QuoteResponse {
	plan := make([]RoutePlanStep, len(route.Steps))
	for i, s := range route.Steps {
		plan[i] = RoutePlanStep{
			VenueLabel: s.VenueID,
			AmmKey:     s.VenueID,
			InputMint:  s.InputMint.String(),
			OutputMint: s.OutputMint.String(),
			InAmount:   strconv.FormatUint(s.InAmount, 10),
			OutAmount:  strconv.FormatUint(s.OutAmount, 10),
			FeeAmount:  strconv.FormatUint(s.FeeAmount, 10),
			FeeMint:    s.FeeMint.String(),
		}
	}
	swapMode := "ExactIn"
	if route.Mode == ExactOut {
		swapMode = "ExactOut"
	}
	return QuoteResponse{
		InputMint:            route.InputMint.String(),
		OutputMint:           route.OutputMint.String(),
		SwapMode:             swapMode,
		InAmount:             strconv.FormatUint(route.InAmount, 10),
		OutAmount:            strconv.FormatUint(route.OutAmount, 10),
		OtherAmountThreshold: strconv.FormatUint(otherAmountThreshold, 10),
		PriceImpactBps:       strconv.FormatInt(route.PriceImpactBps, 10),
		ContextSlot:          route.Slot,
		TimeTakenSeconds:     timeTakenSeconds,
		RoutePlan:            plan,
	}
}
