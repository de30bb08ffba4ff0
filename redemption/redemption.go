// Package redemption implements the ordered redemption engine: opening an
// order, filling it against candidate troves in strictly ascending
// collateral ratio, and clearing it for par-value USDH against seized
// collateral. Like liquidation and stability, this package is pure
// computation — callers apply the returned effects to the market, troves,
// queue and staking pool themselves.
package redemption

import (
	"usdhcore/assets"
	"usdhcore/engineerr"
	"usdhcore/fixedpoint"
	"usdhcore/protocol"
	"usdhcore/queue"
	"usdhcore/valuation"
)

// CandidateInput is one host-supplied trove proposed for a redemption
// order, already re-valued against the order's price snapshot by the
// caller (which must also have applied its pending redistribution first).
type CandidateInput struct {
	User        queue.Candidate // Status/Filler ignored on input; User/Debt/Collateral/CollRatio used
	ICR         fixedpoint.Rate
	ICRInfinite bool
}

// ValidateAscending rejects a candidate list that is not in strictly
// ascending ICR order: the engine never re-sorts, since silently
// reordering would let a filler front-run its own candidate choice.
func ValidateAscending(candidates []CandidateInput) error {
	for i := 1; i < len(candidates); i++ {
		prev, cur := candidates[i-1], candidates[i]
		if valuation.CmpRates(prev.ICR, prev.ICRInfinite, cur.ICR, cur.ICRInfinite) >= 0 {
			return engineerr.Wrap(engineerr.KindValidation, "redemption.ValidateAscending", engineerr.ErrCandidateNotLowestCR)
		}
	}
	return nil
}

// InsertCandidates validates ordering then inserts each candidate into the
// order's fixed candidate array, transitioning Open to Filling.
func InsertCandidates(order *queue.RedemptionOrder, candidates []CandidateInput, now uint64) error {
	if err := ValidateAscending(candidates); err != nil {
		return err
	}
	for _, c := range candidates {
		slot := queue.Candidate{
			User:       c.User.User,
			Debt:       c.User.Debt,
			Collateral: c.User.Collateral,
			CollRatio:  c.User.CollRatio,
		}
		if err := queue.InsertCandidate(order, slot, now); err != nil {
			return err
		}
	}
	return nil
}

// CandidateClear is the per-candidate settlement of one clear_redemption_order
// call: the USDH burned against it and the collateral seized in exchange.
type CandidateClear struct {
	User             queue.Candidate
	BurnedUSDH       uint64
	SeizedCollateral assets.Amounts
}

// ClearEffects is the aggregate output of clearing an order.
type ClearEffects struct {
	Candidates         []CandidateClear
	TotalSeized        assets.Amounts
	StakersCut         assets.Amounts
	FillerCut          assets.Amounts
	ClearerCut         assets.Amounts
	RedeemerCut        assets.Amounts
	RedeemedStablecoin uint64
}

// Clear redeems the order's remaining USDH against its accumulated
// candidates at par, using the order's own price snapshot (never the
// caller's live prices — a redemption order is filled and cleared against
// the quote it opened with). For each candidate at most min(remaining,
// debt) is burned, with collateral worth the burned amount at the snapshot
// prices (all of it, when it is worth no more than that) seized
// proportionally across that candidate's own asset buckets (using its own
// collateral composition, not the protocol-wide basket). The seized total is then split stakers/filler/
// clearer/redeemer by bps on its token amount.
func Clear(order *queue.RedemptionOrder) (ClearEffects, error) {
	remaining := order.Remaining
	var out ClearEffects

	for i := range order.Candidates {
		c := &order.Candidates[i]
		if c.Status != queue.CandidateSelected || remaining == 0 {
			continue
		}
		burn := c.Debt
		if burn > remaining {
			burn = remaining
		}
		if burn == 0 {
			continue
		}

		mv, err := valuation.MarketValueUSDH(order.PriceSnapshot, c.Collateral)
		if err != nil {
			return ClearEffects{}, err
		}
		var seized assets.Amounts
		for _, a := range assets.All() {
			v := c.Collateral.Get(a)
			if burn < mv {
				v, err = fixedpoint.MulFractionFloor(v, burn, mv)
				if err != nil {
					return ClearEffects{}, err
				}
			}
			seized = seized.Set(a, v)
		}

		newTotal, err := out.TotalSeized.Add(seized)
		if err != nil {
			return ClearEffects{}, err
		}
		out.TotalSeized = newTotal

		newRemaining, err := fixedpoint.CheckedSub(remaining, burn)
		if err != nil {
			return ClearEffects{}, err
		}
		remaining = newRemaining

		out.Candidates = append(out.Candidates, CandidateClear{
			User:             *c,
			BurnedUSDH:       burn,
			SeizedCollateral: seized,
		})
		out.RedeemedStablecoin, err = fixedpoint.CheckedAdd(out.RedeemedStablecoin, burn)
		if err != nil {
			return ClearEffects{}, err
		}
	}

	stakers, filler, clearer, redeemer, err := splitSeized(out.TotalSeized)
	if err != nil {
		return ClearEffects{}, err
	}
	out.StakersCut = stakers
	out.FillerCut = filler
	out.ClearerCut = clearer
	out.RedeemerCut = redeemer

	order.Remaining = remaining
	if remaining == 0 {
		order.Status = queue.RedemptionClaiming
	}
	return out, nil
}

func splitSeized(total assets.Amounts) (stakers, filler, clearer, redeemer assets.Amounts, err error) {
	for _, a := range assets.All() {
		amt := total.Get(a)
		s, e := fixedpoint.MulBpsFloor(amt, protocol.RedemptionStakersBps)
		if e != nil {
			return assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, e
		}
		f, e := fixedpoint.MulBpsFloor(amt, protocol.RedemptionFillerBps)
		if e != nil {
			return assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, e
		}
		cl, e := fixedpoint.MulBpsFloor(amt, protocol.RedemptionClearerBps)
		if e != nil {
			return assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, e
		}
		rem := amt
		rem, e = fixedpoint.CheckedSub(rem, s)
		if e != nil {
			return assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, e
		}
		rem, e = fixedpoint.CheckedSub(rem, f)
		if e != nil {
			return assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, e
		}
		rem, e = fixedpoint.CheckedSub(rem, cl)
		if e != nil {
			return assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, e
		}

		stakers = stakers.Set(a, s)
		filler = filler.Set(a, f)
		clearer = clearer.Set(a, cl)
		redeemer = redeemer.Set(a, rem)
	}
	return stakers, filler, clearer, redeemer, nil
}
