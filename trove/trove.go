// Package trove implements the per-user collateralised-debt-position
// lifecycle: deposit/withdraw collateral, borrow/repay stablecoin, and the
// Normal/Recovery mode transition rules that gate them.
package trove

import (
	"usdhcore/assets"
	"usdhcore/baserate"
	"usdhcore/engineerr"
	"usdhcore/fixedpoint"
	"usdhcore/protocol"
	"usdhcore/pubkey"
	"usdhcore/redistribution"
	"usdhcore/valuation"
)

// Status is the trove lifecycle state.
type Status int

const (
	Inactive Status = iota
	Active
	Liquidated
)

// Mode is the system-wide risk posture, driven by total collateral ratio.
type Mode int

const (
	Normal Mode = iota
	Recovery
)

// Trove is a per-user collateralised debt position.
type Trove struct {
	Owner               pubkey.Key
	Status              Status
	InactiveCollateral  assets.Amounts
	DepositedCollateral assets.Amounts
	BorrowedStablecoin  uint64
	RedistSnapshot      redistribution.Snapshot
	Stake               uint64
}

// New creates a fresh, Inactive trove for owner.
func New(owner pubkey.Key) Trove {
	return Trove{Owner: owner, Status: Inactive}
}

// Market is the singleton aggregate the trove engine mutates alongside each
// trove it touches.
type Market struct {
	DepositedCollateral    assets.Amounts
	InactiveCollateral     assets.Amounts
	StablecoinBorrowed     uint64
	Redistribution         redistribution.Accumulator
	RedistributionResidual redistribution.Residual
	// RedistributedUndistributed tracks the slice of StablecoinBorrowed / the
	// collateral that has been pushed into the redistribution accumulator by
	// a liquidation but not yet folded into any individual trove by a touch —
	// the "undistributed slice" in invariant P1.
	RedistributedUndistributed     uint64
	RedistributedCollUndistributed assets.Amounts
	TotalStake                     uint64
	BaseRate                       baserate.State
	Owner                          pubkey.Key
}

func overflow(op string) error {
	return engineerr.Wrap(engineerr.KindValidation, op, engineerr.ErrMathOverflow)
}

func policy(op string, sentinel error) error {
	return engineerr.Wrap(engineerr.KindPolicy, op, sentinel)
}

// recalcStake derives a trove's redistribution stake from its active
// collateral: the sum, at the time of the last balance-changing operation,
// of each collateral asset's raw base-unit amount. Stake is intentionally
// price-independent — it changes only on deposit/withdraw/borrow/repay, not
// on price movement.
func recalcStake(active assets.Amounts) uint64 {
	return active.Sol + active.Eth + active.Btc + active.Srm + active.Ray + active.Ftt
}

func (m *Market) adjustStake(oldStake, newStake uint64) error {
	if newStake >= oldStake {
		total, err := fixedpoint.CheckedAdd(m.TotalStake, newStake-oldStake)
		if err != nil {
			return err
		}
		m.TotalStake = total
		return nil
	}
	total, err := fixedpoint.CheckedSub(m.TotalStake, oldStake-newStake)
	if err != nil {
		return err
	}
	m.TotalStake = total
	return nil
}

// ApplyPendingRedistribution folds a trove's unapplied redistribution share
// into its balances and refreshes its snapshot. Every operation that reads
// or mutates trove balances must call this first.
func ApplyPendingRedistribution(m *Market, t *Trove) error {
	pendingColl, pendingUSD, err := m.Redistribution.Pending(t.RedistSnapshot, t.Stake)
	if err != nil {
		return err
	}
	if !pendingColl.IsZero() {
		newColl, err := t.DepositedCollateral.Add(pendingColl)
		if err != nil {
			return err
		}
		t.DepositedCollateral = newColl

		remaining, err := m.RedistributedCollUndistributed.Sub(pendingColl)
		if err != nil {
			return err
		}
		m.RedistributedCollUndistributed = remaining
	}
	if pendingUSD != 0 {
		newDebt, err := fixedpoint.CheckedAdd(t.BorrowedStablecoin, pendingUSD)
		if err != nil {
			return err
		}
		t.BorrowedStablecoin = newDebt

		remaining, err := fixedpoint.CheckedSub(m.RedistributedUndistributed, pendingUSD)
		if err != nil {
			return err
		}
		m.RedistributedUndistributed = remaining
	}
	t.RedistSnapshot = m.Redistribution.Snapshot()

	newStake := recalcStake(t.DepositedCollateral)
	if err := m.adjustStake(t.Stake, newStake); err != nil {
		return err
	}
	t.Stake = newStake
	return nil
}

// CalcSystemMode computes (mode, TCR) for the given global totals: Recovery
// iff TCR < 150%.
func CalcSystemMode(globalCollateral assets.Amounts, globalDebt uint64, prices valuation.Vector) (Mode, fixedpoint.Rate, bool, error) {
	mv, err := valuation.MarketValueUSDH(prices, globalCollateral)
	if err != nil {
		return Normal, fixedpoint.Rate{}, false, err
	}
	tcr, infinite, err := valuation.CollRatio(globalDebt, mv)
	if err != nil {
		return Normal, fixedpoint.Rate{}, false, err
	}
	threshold := valuation.RateFromPercent(protocol.RecoveryMCRPercent)
	if valuation.Less(tcr, infinite, threshold) {
		return Recovery, tcr, infinite, nil
	}
	return Normal, tcr, infinite, nil
}

// DepositCollateral moves amount of asset into the trove: to inactive
// collateral while the trove is Inactive, otherwise directly into active
// collateral. No fee, no collateral-ratio check.
func DepositCollateral(m *Market, t *Trove, asset assets.Asset, amount uint64) error {
	if amount == 0 {
		return engineerr.Wrap(engineerr.KindValidation, "trove.DepositCollateral", engineerr.ErrZeroAmountInvalid)
	}
	if err := ApplyPendingRedistribution(m, t); err != nil {
		return err
	}

	if t.Status == Inactive {
		cur := t.InactiveCollateral.Get(asset)
		v, err := fixedpoint.CheckedAdd(cur, amount)
		if err != nil {
			return err
		}
		t.InactiveCollateral = t.InactiveCollateral.Set(asset, v)

		mcur := m.InactiveCollateral.Get(asset)
		mv, err := fixedpoint.CheckedAdd(mcur, amount)
		if err != nil {
			return err
		}
		m.InactiveCollateral = m.InactiveCollateral.Set(asset, mv)
		return nil
	}

	cur := t.DepositedCollateral.Get(asset)
	v, err := fixedpoint.CheckedAdd(cur, amount)
	if err != nil {
		return err
	}
	t.DepositedCollateral = t.DepositedCollateral.Set(asset, v)

	mcur := m.DepositedCollateral.Get(asset)
	mv, err := fixedpoint.CheckedAdd(mcur, amount)
	if err != nil {
		return err
	}
	m.DepositedCollateral = m.DepositedCollateral.Set(asset, mv)

	newStake := recalcStake(t.DepositedCollateral)
	if err := m.adjustStake(t.Stake, newStake); err != nil {
		return err
	}
	t.Stake = newStake
	return nil
}

// WithdrawCollateral decrements active collateral. Forbidden while the
// system is in Recovery mode, and requires the resulting ICR stays above
// the normal MCR and that withdrawal does not itself push the system into
// Recovery mode. Reports closeUserMetadata when the trove ends up with zero
// debt and zero collateral across all buckets.
func WithdrawCollateral(m *Market, t *Trove, asset assets.Asset, amount uint64, prices valuation.Vector) (closeUserMetadata bool, err error) {
	if amount == 0 {
		return false, engineerr.Wrap(engineerr.KindValidation, "trove.WithdrawCollateral", engineerr.ErrZeroAmountInvalid)
	}
	if err := ApplyPendingRedistribution(m, t); err != nil {
		return false, err
	}

	mode, _, _, err := CalcSystemMode(m.DepositedCollateral, m.StablecoinBorrowed, prices)
	if err != nil {
		return false, err
	}
	if mode == Recovery {
		return false, policy("trove.WithdrawCollateral", engineerr.ErrCannotWithdrawInRecoveryMode)
	}

	cur := t.DepositedCollateral.Get(asset)
	newAmt, err := fixedpoint.CheckedSub(cur, amount)
	if err != nil {
		return false, err
	}
	newActive := t.DepositedCollateral.Set(asset, newAmt)

	mv, err := valuation.MarketValueUSDH(prices, newActive)
	if err != nil {
		return false, err
	}
	newICR, infinite, err := valuation.CollRatio(t.BorrowedStablecoin, mv)
	if err != nil {
		return false, err
	}
	mcr := valuation.RateFromPercent(protocol.NormalMCRPercent)
	if valuation.Less(newICR, infinite, mcr) {
		return false, policy("trove.WithdrawCollateral", engineerr.ErrNotEnoughCollateral)
	}

	mcur := m.DepositedCollateral.Get(asset)
	newMarketColl, err := fixedpoint.CheckedSub(mcur, amount)
	if err != nil {
		return false, err
	}
	newGlobalColl := m.DepositedCollateral.Set(asset, newMarketColl)

	newMode, _, _, err := CalcSystemMode(newGlobalColl, m.StablecoinBorrowed, prices)
	if err != nil {
		return false, err
	}
	if newMode == Recovery {
		return false, policy("trove.WithdrawCollateral", engineerr.ErrOperationBringsRecoveryMode)
	}

	t.DepositedCollateral = newActive
	m.DepositedCollateral = newGlobalColl

	newStake := recalcStake(t.DepositedCollateral)
	if err := m.adjustStake(t.Stake, newStake); err != nil {
		return false, err
	}
	t.Stake = newStake

	closeUserMetadata = t.BorrowedStablecoin == 0 && t.DepositedCollateral.IsZero() && t.InactiveCollateral.IsZero()
	if closeUserMetadata {
		t.Status = Inactive
	}
	return closeUserMetadata, nil
}

// BorrowParams carries the inputs to BorrowStablecoin that are not part of
// the entity state itself.
type BorrowParams struct {
	Now             uint64
	Prices          valuation.Vector
	Requested       uint64
	BootstrapEndsAt uint64
	TreasuryFeeBps  uint64
}

// BorrowEffects describes what the token-account glue must mint.
type BorrowEffects struct {
	MintToUser      uint64
	MintToFeesVault uint64
	MintToTreasury  uint64
}

// BorrowStablecoin mints requested USDH debt against the trove's collateral,
// promoting any inactive collateral to active on this, its qualifying
// borrow event. Recovery mode forces the fee to zero but tightens the ICR
// check to 150%.
func BorrowStablecoin(m *Market, t *Trove, p BorrowParams) (BorrowEffects, error) {
	if p.Requested == 0 {
		return BorrowEffects{}, engineerr.Wrap(engineerr.KindValidation, "trove.BorrowStablecoin", engineerr.ErrZeroAmountInvalid)
	}
	if err := ApplyPendingRedistribution(m, t); err != nil {
		return BorrowEffects{}, err
	}

	if p.Now < p.BootstrapEndsAt && t.Owner != m.Owner {
		return BorrowEffects{}, engineerr.Wrap(engineerr.KindCapability, "trove.BorrowStablecoin", engineerr.ErrBorrowingNotAllowed)
	}

	m.BaseRate = baserate.Decay(m.BaseRate, p.Now)

	currentMode, currentTCR, currentTCRInfinite, err := CalcSystemMode(m.DepositedCollateral, m.StablecoinBorrowed, p.Prices)
	if err != nil {
		return BorrowEffects{}, err
	}

	userTotalColl, err := t.DepositedCollateral.Add(t.InactiveCollateral)
	if err != nil {
		return BorrowEffects{}, err
	}
	userMV, err := valuation.MarketValueUSDH(p.Prices, userTotalColl)
	if err != nil {
		return BorrowEffects{}, err
	}
	newDebtUSDH, err := fixedpoint.CheckedAdd(t.BorrowedStablecoin, p.Requested)
	if err != nil {
		return BorrowEffects{}, err
	}
	newICR, newICRInfinite, err := valuation.CollRatio(newDebtUSDH, userMV)
	if err != nil {
		return BorrowEffects{}, err
	}

	globalColl, err := m.DepositedCollateral.Add(t.InactiveCollateral)
	if err != nil {
		return BorrowEffects{}, err
	}
	globalDebt, err := fixedpoint.CheckedAdd(m.StablecoinBorrowed, p.Requested)
	if err != nil {
		return BorrowEffects{}, err
	}
	newMode, newTCR, newTCRInfinite, err := CalcSystemMode(globalColl, globalDebt, p.Prices)
	if err != nil {
		return BorrowEffects{}, err
	}

	mcrPercent := protocol.NormalMCRPercent
	if currentMode == Recovery {
		mcrPercent = protocol.RecoveryMCRPercent
	}
	mcr := valuation.RateFromPercent(mcrPercent)

	if valuation.Less(newICR, newICRInfinite, mcr) {
		return BorrowEffects{}, policy("trove.BorrowStablecoin", engineerr.ErrNotEnoughCollateral)
	}
	if currentMode == Recovery && valuation.CmpRates(newTCR, newTCRInfinite, currentTCR, currentTCRInfinite) < 0 {
		return BorrowEffects{}, policy("trove.BorrowStablecoin", engineerr.ErrOperationLowersTCRInRecoveryMode)
	}
	if currentMode == Normal && newMode == Recovery {
		return BorrowEffects{}, policy("trove.BorrowStablecoin", engineerr.ErrOperationBringsRecoveryMode)
	}

	var fee uint64
	if currentMode != Recovery {
		borrowingFeeBps := baserate.BorrowingFeeBps(m.BaseRate.BaseRateBps)
		fee, err = fixedpoint.MulBpsCeil(p.Requested, borrowingFeeBps)
		if err != nil {
			return BorrowEffects{}, err
		}
	}

	totalDebtAdded, err := fixedpoint.CheckedAdd(p.Requested, fee)
	if err != nil {
		return BorrowEffects{}, err
	}
	t.BorrowedStablecoin, err = fixedpoint.CheckedAdd(t.BorrowedStablecoin, totalDebtAdded)
	if err != nil {
		return BorrowEffects{}, err
	}
	m.StablecoinBorrowed, err = fixedpoint.CheckedAdd(m.StablecoinBorrowed, totalDebtAdded)
	if err != nil {
		return BorrowEffects{}, err
	}

	if err := promoteInactive(m, t); err != nil {
		return BorrowEffects{}, err
	}
	if t.Status != Active {
		t.Status = Active
	}

	feeToTreasury, err := fixedpoint.MulBpsFloor(fee, p.TreasuryFeeBps)
	if err != nil {
		return BorrowEffects{}, err
	}
	feeToVault, err := fixedpoint.CheckedSub(fee, feeToTreasury)
	if err != nil {
		return BorrowEffects{}, err
	}

	return BorrowEffects{
		MintToUser:      p.Requested,
		MintToFeesVault: feeToVault,
		MintToTreasury:  feeToTreasury,
	}, nil
}

func promoteInactive(m *Market, t *Trove) error {
	if t.InactiveCollateral.IsZero() {
		return nil
	}
	newActive, err := t.DepositedCollateral.Add(t.InactiveCollateral)
	if err != nil {
		return err
	}
	newGlobalActive, err := m.DepositedCollateral.Add(t.InactiveCollateral)
	if err != nil {
		return err
	}
	newGlobalInactive, err := m.InactiveCollateral.Sub(t.InactiveCollateral)
	if err != nil {
		return err
	}

	t.DepositedCollateral = newActive
	m.DepositedCollateral = newGlobalActive
	m.InactiveCollateral = newGlobalInactive
	t.InactiveCollateral = assets.Amounts{}

	newStake := recalcStake(t.DepositedCollateral)
	if err := m.adjustStake(t.Stake, newStake); err != nil {
		return err
	}
	t.Stake = newStake
	return nil
}

// RepayEffects describes the token-account glue instructions for a repay.
type RepayEffects struct {
	BurnAmount     uint64
	TransferAmount uint64
}

// RepayLoan burns min(amount, debt) from the trove. On full repayment,
// active collateral demotes back to inactive and the trove returns to
// Inactive status.
func RepayLoan(m *Market, t *Trove, amount uint64) (RepayEffects, error) {
	if amount == 0 {
		return RepayEffects{}, engineerr.Wrap(engineerr.KindValidation, "trove.RepayLoan", engineerr.ErrZeroAmountInvalid)
	}
	if err := ApplyPendingRedistribution(m, t); err != nil {
		return RepayEffects{}, err
	}
	if t.BorrowedStablecoin == 0 {
		return RepayEffects{}, engineerr.Wrap(engineerr.KindPolicy, "trove.RepayLoan", engineerr.ErrZeroAmountInvalid)
	}

	repayAmount := amount
	if repayAmount > t.BorrowedStablecoin {
		repayAmount = t.BorrowedStablecoin
	}

	var err error
	t.BorrowedStablecoin, err = fixedpoint.CheckedSub(t.BorrowedStablecoin, repayAmount)
	if err != nil {
		return RepayEffects{}, err
	}
	m.StablecoinBorrowed, err = fixedpoint.CheckedSub(m.StablecoinBorrowed, repayAmount)
	if err != nil {
		return RepayEffects{}, err
	}

	if t.BorrowedStablecoin == 0 {
		t.InactiveCollateral, err = t.InactiveCollateral.Add(t.DepositedCollateral)
		if err != nil {
			return RepayEffects{}, err
		}
		m.InactiveCollateral, err = m.InactiveCollateral.Add(t.DepositedCollateral)
		if err != nil {
			return RepayEffects{}, err
		}
		m.DepositedCollateral, err = m.DepositedCollateral.Sub(t.DepositedCollateral)
		if err != nil {
			return RepayEffects{}, err
		}
		t.DepositedCollateral = assets.Amounts{}
		t.Status = Inactive

		if err := m.adjustStake(t.Stake, 0); err != nil {
			return RepayEffects{}, err
		}
		t.Stake = 0
	}

	return RepayEffects{BurnAmount: repayAmount, TransferAmount: repayAmount}, nil
}

// DepositAndBorrow atomically combines a collateral deposit with a borrow.
// In Recovery mode the combination is only allowed when the resulting ICR
// strictly increases relative to the trove's ICR before the operation, or
// the trove was new (zero debt) and opens above 150%. If any step fails, m
// and t are restored to their values on entry.
func DepositAndBorrow(m *Market, t *Trove, depositAsset assets.Asset, depositAmount uint64, p BorrowParams) (effects BorrowEffects, err error) {
	origM, origT := *m, *t
	defer func() {
		if err != nil {
			*m, *t = origM, origT
		}
	}()
	if err := ApplyPendingRedistribution(m, t); err != nil {
		return BorrowEffects{}, err
	}

	currentMode, _, _, err := CalcSystemMode(m.DepositedCollateral, m.StablecoinBorrowed, p.Prices)
	if err != nil {
		return BorrowEffects{}, err
	}

	var priorICR fixedpoint.Rate
	var priorICRInfinite bool
	wasNew := t.BorrowedStablecoin == 0
	if currentMode == Recovery {
		priorTotal, err := t.DepositedCollateral.Add(t.InactiveCollateral)
		if err != nil {
			return BorrowEffects{}, err
		}
		priorMV, err := valuation.MarketValueUSDH(p.Prices, priorTotal)
		if err != nil {
			return BorrowEffects{}, err
		}
		priorICR, priorICRInfinite, err = valuation.CollRatio(t.BorrowedStablecoin, priorMV)
		if err != nil {
			return BorrowEffects{}, err
		}
	}

	if depositAmount > 0 {
		if err := DepositCollateral(m, t, depositAsset, depositAmount); err != nil {
			return BorrowEffects{}, err
		}
	}

	effects, err = BorrowStablecoin(m, t, p)
	if err != nil {
		return BorrowEffects{}, err
	}

	if currentMode == Recovery {
		newTotal, err := t.DepositedCollateral.Add(t.InactiveCollateral)
		if err != nil {
			return BorrowEffects{}, err
		}
		newMV, err := valuation.MarketValueUSDH(p.Prices, newTotal)
		if err != nil {
			return BorrowEffects{}, err
		}
		newICR, newICRInfinite, err := valuation.CollRatio(t.BorrowedStablecoin, newMV)
		if err != nil {
			return BorrowEffects{}, err
		}
		threshold150 := valuation.RateFromPercent(protocol.RecoveryMCRPercent)
		okNewOpen := wasNew && valuation.GreaterEqual(newICR, newICRInfinite, threshold150)
		improved := valuation.CmpRates(newICR, newICRInfinite, priorICR, priorICRInfinite) > 0
		if !okNewOpen && !improved {
			return BorrowEffects{}, policy("trove.DepositAndBorrow", engineerr.ErrOperationLowersTCRInRecoveryMode)
		}
	}

	return effects, nil
}
