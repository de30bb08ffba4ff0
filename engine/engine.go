// Package engine is the single entry point a host embeds: it wires the
// trove, liquidation, redistribution, stability, staking, queue and
// redemption packages together into the operation set a USDH deployment
// exposes. It owns no persisted entities itself — every method takes the
// relevant Market/Trove/Pool/Queue pointers plus (now, prices) explicitly
// and updates the pointed-to state in place. Apart from DepositAndBorrow,
// which restores its market and trove on failure, a method that returns an
// error may already have changed some of that state.
package engine

import (
	"usdhcore/assets"
	"usdhcore/baserate"
	"usdhcore/config"
	"usdhcore/engineerr"
	"usdhcore/fixedpoint"
	"usdhcore/liquidation"
	"usdhcore/pause"
	"usdhcore/pubkey"
	"usdhcore/queue"
	"usdhcore/redemption"
	"usdhcore/redistribution"
	"usdhcore/stability"
	"usdhcore/staking"
	"usdhcore/telemetry"
	"usdhcore/trove"
	"usdhcore/valuation"
)

// moduleName is the single pause switch covering every operation this
// facade exposes; the protocol has no finer-grained pause granularity.
const moduleName = "usdhcore"

// Engine is the host-facing facade. Zero value is usable with Default
// config and a no-op telemetry sink; call SetRecorder/SetPauses to wire
// metrics/emergency-stop collaborators.
type Engine struct {
	Config   config.Protocol
	recorder telemetry.Recorder
	pauses   pause.View
}

// New builds an Engine from cfg, defaulting telemetry to a no-op sink.
func New(cfg config.Protocol) *Engine {
	return &Engine{Config: cfg, recorder: telemetry.NoopRecorder{}}
}

// SetRecorder wires the optional metrics collaborator. Called only after a
// transition has already succeeded; never from inside the packages above.
func (e *Engine) SetRecorder(r telemetry.Recorder) {
	if r != nil {
		e.recorder = r
	}
}

// SetPauses wires the optional emergency-stop collaborator. Every operation
// below checks it first and refuses with engineerr.ErrModulePaused if the
// host reports this module paused.
func (e *Engine) SetPauses(p pause.View) {
	e.pauses = p
}

func (e *Engine) recorderOrNoop() telemetry.Recorder {
	if e.recorder == nil {
		return telemetry.NoopRecorder{}
	}
	return e.recorder
}

// DepositCollateral moves amount of asset into t, active or inactive
// depending on trove status.
func (e *Engine) DepositCollateral(m *trove.Market, t *trove.Trove, asset assets.Asset, amount uint64) error {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	return trove.DepositCollateral(m, t, asset, amount)
}

// WithdrawCollateral withdraws amount of asset from t's active collateral.
func (e *Engine) WithdrawCollateral(m *trove.Market, t *trove.Trove, asset assets.Asset, amount uint64, prices valuation.Vector) (closedTrove bool, err error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return false, err
	}
	return trove.WithdrawCollateral(m, t, asset, amount, prices)
}

// Borrow mints requested USDH debt against t's collateral. bootstrapEndsAt
// is the absolute unix timestamp at which the bootstrap-owner restriction
// lifts; pass 0 when BootstrapPeriodSeconds is disabled.
func (e *Engine) Borrow(m *trove.Market, t *trove.Trove, now uint64, prices valuation.Vector, requested, bootstrapEndsAt uint64) (trove.BorrowEffects, error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return trove.BorrowEffects{}, err
	}
	effects, err := trove.BorrowStablecoin(m, t, trove.BorrowParams{
		Now:             now,
		Prices:          prices,
		Requested:       requested,
		BootstrapEndsAt: bootstrapEndsAt,
		TreasuryFeeBps:  e.Config.TreasuryFeeBps,
	})
	if err != nil {
		return trove.BorrowEffects{}, err
	}
	e.recorderOrNoop().ObserveBorrow(effects.MintToUser)
	return effects, nil
}

// Repay burns min(amount, debt) against t.
func (e *Engine) Repay(m *trove.Market, t *trove.Trove, amount uint64) (trove.RepayEffects, error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return trove.RepayEffects{}, err
	}
	effects, err := trove.RepayLoan(m, t, amount)
	if err != nil {
		return trove.RepayEffects{}, err
	}
	e.recorderOrNoop().ObserveRepay(effects.BurnAmount)
	return effects, nil
}

// DepositAndBorrow atomically combines a collateral deposit with a borrow.
func (e *Engine) DepositAndBorrow(m *trove.Market, t *trove.Trove, depositAsset assets.Asset, depositAmount, now uint64, prices valuation.Vector, requested, bootstrapEndsAt uint64) (trove.BorrowEffects, error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return trove.BorrowEffects{}, err
	}
	effects, err := trove.DepositAndBorrow(m, t, depositAsset, depositAmount, trove.BorrowParams{
		Now:             now,
		Prices:          prices,
		Requested:       requested,
		BootstrapEndsAt: bootstrapEndsAt,
		TreasuryFeeBps:  e.Config.TreasuryFeeBps,
	})
	if err != nil {
		return trove.BorrowEffects{}, err
	}
	e.recorderOrNoop().ObserveBorrow(effects.MintToUser)
	return effects, nil
}

func liqMode(m trove.Mode) liquidation.Mode {
	if m == trove.Recovery {
		return liquidation.Recovery
	}
	return liquidation.Normal
}

func decisionLabel(d liquidation.Decision) string {
	switch d {
	case liquidation.RedistributeAll:
		return "redistribute_all"
	case liquidation.StabilityPoolAll:
		return "stability_pool_all"
	case liquidation.StabilityPoolThenRedistribute:
		return "stability_pool_then_redistribute"
	default:
		return "do_nothing"
	}
}

// LiquidateEffects is the full outcome of one try_liquidate call.
type LiquidateEffects struct {
	Decision  liquidation.Decision
	Breakdown liquidation.Breakdown
	QueueSlot int
}

// Liquidate evaluates t against the system mode and, if it qualifies,
// carves its collateral/debt into the redistribution accumulator and/or
// stability pool, enqueues a LiquidationEvent for later dispatch, and marks
// t Liquidated. Any collateral beyond 110% of its debt's market value is
// demoted to inactive collateral and left with the owner.
func (e *Engine) Liquidate(m *trove.Market, t *trove.Trove, pool *stability.Pool, lq *queue.LiquidationQueue, liquidator pubkey.Key, now uint64, prices valuation.Vector) (LiquidateEffects, error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return LiquidateEffects{}, err
	}
	if err := trove.ApplyPendingRedistribution(m, t); err != nil {
		return LiquidateEffects{}, err
	}

	mode, tcr, tcrInfinite, err := trove.CalcSystemMode(m.DepositedCollateral, m.StablecoinBorrowed, prices)
	if err != nil {
		return LiquidateEffects{}, err
	}
	mv, err := valuation.MarketValueUSDH(prices, t.DepositedCollateral)
	if err != nil {
		return LiquidateEffects{}, err
	}
	icr, icrInfinite, err := valuation.CollRatio(t.BorrowedStablecoin, mv)
	if err != nil {
		return LiquidateEffects{}, err
	}

	breakdown, decision, err := liquidation.ComputeEffects(liqMode(mode), icr, icrInfinite, tcr, tcrInfinite, t.BorrowedStablecoin, pool.Deposited, t.DepositedCollateral, prices)
	if err != nil {
		return LiquidateEffects{}, err
	}

	leftover, err := t.DepositedCollateral.Sub(breakdown.LiquidatableCollateral)
	if err != nil {
		return LiquidateEffects{}, err
	}
	newTotalStake, err := fixedpoint.CheckedSub(m.TotalStake, t.Stake)
	if err != nil {
		return LiquidateEffects{}, err
	}

	if breakdown.USDDebtToRedistribute > 0 {
		if err := redistribution.Apply(&m.Redistribution, &m.RedistributionResidual, breakdown.CollToRedistribute, breakdown.USDDebtToRedistribute, newTotalStake); err != nil {
			return LiquidateEffects{}, err
		}
		m.RedistributedUndistributed, err = fixedpoint.CheckedAdd(m.RedistributedUndistributed, breakdown.USDDebtToRedistribute)
		if err != nil {
			return LiquidateEffects{}, err
		}
		m.RedistributedCollUndistributed, err = m.RedistributedCollUndistributed.Add(breakdown.CollToRedistribute)
		if err != nil {
			return LiquidateEffects{}, err
		}
	}
	if breakdown.USDDebtToStabilityPool > 0 {
		if err := stability.AbsorbLoss(pool, breakdown.USDDebtToStabilityPool, assets.FromAmounts(breakdown.CollToStabilityPool)); err != nil {
			return LiquidateEffects{}, err
		}
	}

	slot, err := queue.AddLiquidationEvent(lq, queue.LiquidationEvent{
		Liquidator:          liquidator,
		EventTS:             now,
		GainToLiquidator:    breakdown.CollToLiquidator,
		GainToClearer:       breakdown.CollToClearer,
		GainToStabilityPool: breakdown.CollToStabilityPool,
	})
	if err != nil {
		return LiquidateEffects{}, err
	}

	m.StablecoinBorrowed, err = fixedpoint.CheckedSub(m.StablecoinBorrowed, t.BorrowedStablecoin)
	if err != nil {
		return LiquidateEffects{}, err
	}
	m.DepositedCollateral, err = m.DepositedCollateral.Sub(t.DepositedCollateral)
	if err != nil {
		return LiquidateEffects{}, err
	}
	m.InactiveCollateral, err = m.InactiveCollateral.Add(leftover)
	if err != nil {
		return LiquidateEffects{}, err
	}
	m.TotalStake = newTotalStake

	t.InactiveCollateral, err = t.InactiveCollateral.Add(leftover)
	if err != nil {
		return LiquidateEffects{}, err
	}
	t.DepositedCollateral = assets.Amounts{}
	t.BorrowedStablecoin = 0
	t.Stake = 0
	t.Status = trove.Liquidated
	t.RedistSnapshot = m.Redistribution.Snapshot()

	e.recorderOrNoop().ObserveLiquidation(decisionLabel(decision), mv)

	return LiquidateEffects{Decision: decision, Breakdown: breakdown, QueueSlot: slot}, nil
}

// ClaimGains is the per-asset result of clearing pending liquidation-event
// dispatch for one asset.
type ClaimGains struct {
	ClearerGain    uint64
	LiquidatorGain uint64
	StabilityGain  uint64
}

// ClearLiquidationGains drains asset a's clearer/liquidator/stability-pool
// buckets across every pending liquidation event.
func (e *Engine) ClearLiquidationGains(lq *queue.LiquidationQueue, a assets.Asset, clearingAgent pubkey.Key, now uint64) (ClaimGains, error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return ClaimGains{}, err
	}
	clearer, liquidator, pool := queue.ClearLiquidationGains(lq, a, clearingAgent, now)
	return ClaimGains{ClearerGain: clearer, LiquidatorGain: liquidator, StabilityGain: pool}, nil
}

// ProvideStability deposits amount of USDH into the stability pool.
func (e *Engine) ProvideStability(pool *stability.Pool, pr *stability.Provider, amount, now uint64) error {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	return stability.Provide(pool, pr, amount, now)
}

// WithdrawStability withdraws up to amount of USDH from the provider's
// compounded deposit.
func (e *Engine) WithdrawStability(pool *stability.Pool, pr *stability.Provider, amount, now uint64) (uint64, error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	return stability.Withdraw(pool, pr, amount, now)
}

// HarvestLiquidationGains drains the provider's accumulated stability-pool
// gains. Refused while lq still has undispatched stability-pool gains in
// flight, since a harvest would otherwise undercount them.
func (e *Engine) HarvestLiquidationGains(pool *stability.Pool, pr *stability.Provider, lq *queue.LiquidationQueue, now uint64) (assets.StabilityAmounts, error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return assets.StabilityAmounts{}, err
	}
	if queue.HasPendingLiquidationEvents(lq) {
		return assets.StabilityAmounts{}, engineerr.Wrap(engineerr.KindCapability, "engine.HarvestLiquidationGains", engineerr.ErrNoRewardToWithdraw)
	}
	return stability.HarvestLiquidationGains(pool, pr, now)
}

// Stake deposits amount into the fee-staking pool.
func (e *Engine) Stake(p *staking.Pool, s *staking.Stake, amount uint64) error {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	return staking.Deposit(p, s, amount)
}

// HarvestStakingReward pays out a staker's accrued reward share.
func (e *Engine) HarvestStakingReward(p *staking.Pool, s *staking.Stake) (uint64, error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	return staking.Harvest(p, s)
}

// Unstake harvests then withdraws up to amount of a staker's principal.
func (e *Engine) Unstake(p *staking.Pool, s *staking.Stake, amount uint64) (reward, withdrawn uint64, err error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return 0, 0, err
	}
	return staking.Unstake(p, s, amount)
}

// OpenRedemptionOrder decays the market base rate, snapshots it and prices
// into a fresh order, and allocates it a queue slot.
func (e *Engine) OpenRedemptionOrder(m *trove.Market, q *queue.RedemptionQueue, redeemer pubkey.Key, amount, now uint64, prices valuation.Vector) (int, error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	m.BaseRate = baserate.Decay(m.BaseRate, now)
	return queue.AddRedemptionOrder(q, redeemer, amount, m.BaseRate.BaseRateBps, now, prices)
}

// FillRedemptionOrder validates the supplied candidates are in strictly
// ascending collateral-ratio order (already re-valued by the caller against
// order.PriceSnapshot) and inserts them.
func (e *Engine) FillRedemptionOrder(order *queue.RedemptionOrder, candidates []redemption.CandidateInput, now uint64) error {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	return redemption.InsertCandidates(order, candidates, now)
}

// ClearRedemptionEffects is the aggregate outcome of clearing a redemption
// order, including the staking-pool and treasury splits of the stakers' cut.
type ClearRedemptionEffects struct {
	redemption.ClearEffects
	StakerUSDHCut   uint64
	TreasuryUSDHCut uint64
}

// ClearRedemptionOrder redeems order's remaining USDH against its
// accumulated candidates, converts the stakers' collateral cut to a USDH
// claim via the staking pool, and bumps the market base rate. The host
// still owes: burning RedeemedStablecoin, transferring seized collateral
// per CandidateClear, and applying BurnedUSDH/SeizedCollateral to each
// candidate's own Trove.
func (e *Engine) ClearRedemptionOrder(m *trove.Market, order *queue.RedemptionOrder, stakingPool *staking.Pool, now uint64) (ClearRedemptionEffects, error) {
	if err := pause.Guard(e.pauses, moduleName); err != nil {
		return ClearRedemptionEffects{}, err
	}
	effects, err := redemption.Clear(order)
	if err != nil {
		return ClearRedemptionEffects{}, err
	}

	stakersUSDH, err := valuation.MarketValueUSDH(order.PriceSnapshot, effects.StakersCut)
	if err != nil {
		return ClearRedemptionEffects{}, err
	}
	stakerCut, treasuryCut, err := staking.SplitFees(stakersUSDH, e.Config.TreasuryFeeBps)
	if err != nil {
		return ClearRedemptionEffects{}, err
	}
	if stakerCut > 0 {
		if err := staking.DistributeFees(stakingPool, stakerCut); err != nil {
			return ClearRedemptionEffects{}, err
		}
	}

	m.StablecoinBorrowed, err = fixedpoint.CheckedSub(m.StablecoinBorrowed, effects.RedeemedStablecoin)
	if err != nil {
		return ClearRedemptionEffects{}, err
	}
	m.DepositedCollateral, err = m.DepositedCollateral.Sub(effects.TotalSeized)
	if err != nil {
		return ClearRedemptionEffects{}, err
	}

	decayed := baserate.Decay(m.BaseRate, now)
	bumped, err := baserate.BumpOnRedemption(decayed, m.StablecoinBorrowed+effects.RedeemedStablecoin, effects.RedeemedStablecoin, now)
	if err != nil {
		return ClearRedemptionEffects{}, err
	}
	m.BaseRate = bumped

	e.recorderOrNoop().ObserveRedemptionFill(effects.RedeemedStablecoin)

	return ClearRedemptionEffects{
		ClearEffects:    effects,
		StakerUSDHCut:   stakerCut,
		TreasuryUSDHCut: treasuryCut,
	}, nil
}
