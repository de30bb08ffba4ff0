// Package liquidation implements the per-trove liquidation decision table
// and the collateral/debt split among the stability pool, the
// redistribution accumulator, the liquidator and the clearer. It is pure
// computation: callers apply the resulting Breakdown to the market,
// stability pool and queues themselves.
package liquidation

import (
	"usdhcore/assets"
	"usdhcore/engineerr"
	"usdhcore/fixedpoint"
	"usdhcore/protocol"
	"usdhcore/valuation"
)

// Decision is the outcome of evaluating a trove against the system mode,
// its ICR and the system's TCR.
type Decision int

const (
	DoNothing Decision = iota
	RedistributeAll
	StabilityPoolAll
	StabilityPoolThenRedistribute
)

// Mode mirrors trove.Mode without importing it, to keep this package
// dependency-light; callers pass the already-computed mode.
type Mode int

const (
	Normal Mode = iota
	Recovery
)

// Breakdown is the full split of a liquidated trove's debt and collateral.
type Breakdown struct {
	USDDebtToRedistribute  uint64
	USDDebtToStabilityPool uint64
	CollToRedistribute     assets.Amounts
	CollToStabilityPool    assets.Amounts
	CollToLiquidator       assets.Amounts
	CollToClearer          assets.Amounts
	LiquidatableCollateral assets.Amounts
}

func overflow(op string) error {
	return engineerr.Wrap(engineerr.KindValidation, op, engineerr.ErrMathOverflow)
}

// EvaluateDecision implements the decision table: in Normal mode only
// sub-MCR positions liquidate (to the stability pool, falling back to
// redistribution); in Recovery mode the table additionally liquidates
// everything at or below 100% outright, and liquidates up to TCR when the
// stability pool can cover the full debt.
func EvaluateDecision(mode Mode, icr fixedpoint.Rate, icrInfinite bool, tcr fixedpoint.Rate, tcrInfinite bool, userDebt, usdhInSP uint64) Decision {
	mcr := valuation.RateFromPercent(protocol.NormalMCRPercent)
	hundred := valuation.RateFromPercent(100)

	switch mode {
	case Normal:
		if valuation.Less(icr, icrInfinite, mcr) {
			return StabilityPoolThenRedistribute
		}
		return DoNothing
	case Recovery:
		if valuation.LessEqual(icr, icrInfinite, hundred) {
			return RedistributeAll
		}
		if valuation.Less(icr, icrInfinite, mcr) {
			return StabilityPoolThenRedistribute
		}
		if valuation.Less(icr, icrInfinite, tcr) {
			if userDebt <= usdhInSP {
				return StabilityPoolAll
			}
			return DoNothing
		}
		return DoNothing
	default:
		return DoNothing
	}
}

// calcSplit takes the liquidatable portion of a trove's collateral and
// carves out the liquidator and clearer fee cuts, returning the remainder
// ("collateral_loss") destined for the stability pool and/or redistribution.
func calcSplit(liquidatable assets.Amounts, liquidatorBps, clearerBps uint64) (loss, toLiquidator, toClearer assets.Amounts, err error) {
	for _, a := range assets.All() {
		amt := liquidatable.Get(a)
		liqGain, e := fixedpoint.MulBpsFloor(amt, liquidatorBps)
		if e != nil {
			return assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, e
		}
		clrGain, e := fixedpoint.MulBpsFloor(amt, clearerBps)
		if e != nil {
			return assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, e
		}
		remaining, e := fixedpoint.CheckedSub(amt, liqGain)
		if e != nil {
			return assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, e
		}
		remaining, e = fixedpoint.CheckedSub(remaining, clrGain)
		if e != nil {
			return assets.Amounts{}, assets.Amounts{}, assets.Amounts{}, e
		}
		loss = loss.Set(a, remaining)
		toLiquidator = toLiquidator.Set(a, liqGain)
		toClearer = toClearer.Set(a, clrGain)
	}
	return loss, toLiquidator, toClearer, nil
}

// Split computes the full Breakdown for a trove already determined to be
// liquidatable under decision.
func Split(usdhInSP, userDebt uint64, userCollateral assets.Amounts, decision Decision, prices valuation.Vector) (Breakdown, error) {
	mv, err := valuation.MarketValueUSDH(prices, userCollateral)
	if err != nil {
		return Breakdown{}, err
	}
	if mv == 0 {
		return Breakdown{}, overflow("liquidation.Split")
	}

	liquidatableMV, err := fixedpoint.MulDivFloor(userDebt, 110, 100)
	if err != nil {
		return Breakdown{}, err
	}
	if liquidatableMV > mv {
		liquidatableMV = mv
	}

	var liquidatableColl assets.Amounts
	for _, a := range assets.All() {
		v, err := fixedpoint.MulFractionFloor(userCollateral.Get(a), liquidatableMV, mv)
		if err != nil {
			return Breakdown{}, err
		}
		liquidatableColl = liquidatableColl.Set(a, v)
	}

	loss, toLiquidator, toClearer, err := calcSplit(liquidatableColl, protocol.LiquidatorRateBps, protocol.ClearerRateBps)
	if err != nil {
		return Breakdown{}, err
	}

	switch decision {
	case RedistributeAll:
		return Breakdown{
			USDDebtToRedistribute:  userDebt,
			CollToRedistribute:     loss,
			CollToLiquidator:       toLiquidator,
			CollToClearer:          toClearer,
			LiquidatableCollateral: liquidatableColl,
		}, nil
	case StabilityPoolAll:
		return Breakdown{
			USDDebtToStabilityPool: userDebt,
			CollToStabilityPool:    loss,
			CollToLiquidator:       toLiquidator,
			CollToClearer:          toClearer,
			LiquidatableCollateral: liquidatableColl,
		}, nil
	case StabilityPoolThenRedistribute:
		usdToSPMax := usdhInSP
		if userDebt < usdToSPMax {
			usdToSPMax = userDebt
		}
		// Ratio(usd_to_sp_max, user_debt).mul(user_debt) collapses to
		// usd_to_sp_max exactly; userDebt is always nonzero here.
		usdToSP := usdToSPMax
		usdToRedistribute, err := fixedpoint.CheckedSub(userDebt, usdToSP)
		if err != nil {
			return Breakdown{}, err
		}

		var collToSP, collToRedistribute assets.Amounts
		for _, a := range assets.All() {
			v, err := fixedpoint.MulFractionFloor(loss.Get(a), usdToSP, userDebt)
			if err != nil {
				return Breakdown{}, err
			}
			collToSP = collToSP.Set(a, v)
			rem, err := fixedpoint.CheckedSub(loss.Get(a), v)
			if err != nil {
				return Breakdown{}, err
			}
			collToRedistribute = collToRedistribute.Set(a, rem)
		}

		return Breakdown{
			USDDebtToRedistribute:  usdToRedistribute,
			USDDebtToStabilityPool: usdToSP,
			CollToRedistribute:     collToRedistribute,
			CollToStabilityPool:    collToSP,
			CollToLiquidator:       toLiquidator,
			CollToClearer:          toClearer,
			LiquidatableCollateral: liquidatableColl,
		}, nil
	default:
		return Breakdown{}, engineerr.Wrap(engineerr.KindPolicy, "liquidation.Split", engineerr.ErrUserWellCollateralized)
	}
}

// ComputeEffects evaluates the decision and, unless it is DoNothing,
// computes the full Breakdown. DoNothing surfaces as UserWellCollateralized,
// matching every non-liquidatable branch of the decision table.
func ComputeEffects(mode Mode, icr fixedpoint.Rate, icrInfinite bool, tcr fixedpoint.Rate, tcrInfinite bool, userDebt, usdhInSP uint64, userCollateral assets.Amounts, prices valuation.Vector) (Breakdown, Decision, error) {
	decision := EvaluateDecision(mode, icr, icrInfinite, tcr, tcrInfinite, userDebt, usdhInSP)
	if decision == DoNothing {
		return Breakdown{}, decision, engineerr.Wrap(engineerr.KindPolicy, "liquidation.ComputeEffects", engineerr.ErrUserWellCollateralized)
	}
	b, err := Split(usdhInSP, userDebt, userCollateral, decision, prices)
	return b, decision, err
}
