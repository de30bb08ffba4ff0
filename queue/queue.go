// Package queue implements the two fixed-capacity ring buffers the engine
// uses instead of growable collections: the liquidation-event dispatch
// queue (300 slots) and the redemption order book (15 slots, 32 candidates
// each). Both are scanned linearly for a free/matching slot; at this
// capacity a scan is cheaper and more predictable than a free-list.
package queue

import (
	"usdhcore/assets"
	"usdhcore/engineerr"
	"usdhcore/protocol"
	"usdhcore/pubkey"
	"usdhcore/valuation"
)

// LiquidationStatus tags a liquidation-event slot's lifecycle.
type LiquidationStatus int

const (
	LiquidationInactive LiquidationStatus = iota
	LiquidationPendingCollection
)

// LiquidationEvent records a single liquidation's dispatchable gains,
// awaiting collection by the liquidator, clearer and stability pool.
type LiquidationEvent struct {
	Status              LiquidationStatus
	Liquidator          pubkey.Key
	EventTS             uint64
	GainToLiquidator    assets.Amounts
	GainToClearer       assets.Amounts
	GainToStabilityPool assets.Amounts
}

// LiquidationQueue is the fixed 300-slot ring of pending liquidation events.
type LiquidationQueue struct {
	Slots [protocol.MaxLiquidationEvents]LiquidationEvent
}

func overflow(op string) error {
	return engineerr.Wrap(engineerr.KindValidation, op, engineerr.ErrMathOverflow)
}

// AddLiquidationEvent scans for the first Inactive slot and records ev
// there, returning its index. It fails with LiquidationsQueueFull if every
// slot is occupied.
func AddLiquidationEvent(q *LiquidationQueue, ev LiquidationEvent) (int, error) {
	for i := range q.Slots {
		if q.Slots[i].Status == LiquidationInactive {
			ev.Status = LiquidationPendingCollection
			q.Slots[i] = ev
			return i, nil
		}
	}
	return 0, engineerr.Wrap(engineerr.KindCapacity, "queue.AddLiquidationEvent", engineerr.ErrLiquidationsQueueFull)
}

// ClearLiquidationGains drains the clearer's and, when eligible, the
// liquidator's buckets on every PendingCollection slot for asset a, plus
// the stability pool's bucket. The liquidator's cut is only released to
// clearingAgent if it is the original liquidator, or once the 5-second
// claim window since event_ts has elapsed. A slot returns to Inactive once
// both the liquidator and stability-pool buckets are fully drained.
func ClearLiquidationGains(q *LiquidationQueue, a assets.Asset, clearingAgent pubkey.Key, now uint64) (clearerGain, liquidatorGain, stabilityGain uint64) {
	for i := range q.Slots {
		ev := &q.Slots[i]
		if ev.Status != LiquidationPendingCollection {
			continue
		}

		clearerGain += ev.GainToClearer.Get(a)
		ev.GainToClearer = ev.GainToClearer.Set(a, 0)

		liquidatorEligible := clearingAgent == ev.Liquidator || ev.EventTS+protocol.LiquidationsSecondsToClaimGains < now
		if liquidatorEligible {
			liquidatorGain += ev.GainToLiquidator.Get(a)
			ev.GainToLiquidator = ev.GainToLiquidator.Set(a, 0)
		}

		stabilityGain += ev.GainToStabilityPool.Get(a)
		ev.GainToStabilityPool = ev.GainToStabilityPool.Set(a, 0)

		if ev.GainToLiquidator.IsZero() && ev.GainToStabilityPool.IsZero() {
			*ev = LiquidationEvent{}
		}
	}
	return clearerGain, liquidatorGain, stabilityGain
}

// HasPendingLiquidationEvents reports whether any slot still holds
// undispatched stability-pool gains; the stability pool refuses harvests
// while this holds, since a harvest would otherwise undercount gains still
// in flight.
func HasPendingLiquidationEvents(q *LiquidationQueue) bool {
	for i := range q.Slots {
		ev := &q.Slots[i]
		if ev.Status == LiquidationPendingCollection && !ev.GainToStabilityPool.IsZero() {
			return true
		}
	}
	return false
}

// RedemptionStatus tags a redemption-order slot's lifecycle.
type RedemptionStatus int

const (
	RedemptionInactive RedemptionStatus = iota
	RedemptionOpen
	RedemptionFilling
	RedemptionClaiming
)

// CandidateStatus tags a single redemption candidate within an order.
type CandidateStatus int

const (
	CandidateEmpty CandidateStatus = iota
	CandidateSelected
)

// Candidate is one trove selected into a redemption order, snapshotted at
// selection time against the order's own price snapshot.
type Candidate struct {
	Status     CandidateStatus
	User       pubkey.Key
	Debt       uint64
	Collateral assets.Amounts
	CollRatio  uint64 // percent, informational; infinite represented as max uint64
	Filler     pubkey.Key
}

// RedemptionOrder is one slot of the redemption order book.
type RedemptionOrder struct {
	Status        RedemptionStatus
	BaseRateBps   uint64
	LastReset     uint64
	Redeemer      pubkey.Key
	Requested     uint64
	Remaining     uint64
	PriceSnapshot valuation.Vector
	Candidates    [protocol.MaxRedemptionCandidates]Candidate
}

// RedemptionQueue is the fixed 15-slot redemption order book.
type RedemptionQueue struct {
	Slots [protocol.MaxRedemptionEvents]RedemptionOrder
}

// AddRedemptionOrder scans for the first Inactive slot, requiring amount to
// meet the protocol minimum, and opens an order there with prices snapshotted
// for every later fill/clear against this order.
func AddRedemptionOrder(q *RedemptionQueue, redeemer pubkey.Key, amount uint64, baseRateBps, now uint64, prices valuation.Vector) (int, error) {
	if amount < protocol.MinRedemptionAmountUSDH {
		return 0, engineerr.Wrap(engineerr.KindValidation, "queue.AddRedemptionOrder", engineerr.ErrRedemptionBelowMin)
	}
	for i := range q.Slots {
		if q.Slots[i].Status == RedemptionInactive {
			q.Slots[i] = RedemptionOrder{
				Status:        RedemptionOpen,
				BaseRateBps:   baseRateBps,
				LastReset:     now,
				Redeemer:      redeemer,
				Requested:     amount,
				Remaining:     amount,
				PriceSnapshot: prices,
			}
			return i, nil
		}
	}
	return 0, engineerr.Wrap(engineerr.KindCapacity, "queue.AddRedemptionOrder", engineerr.ErrRedemptionQueueFull)
}

// ResetIfStale clears every candidate slot (without losing the order
// itself) when the 5-second fill window has elapsed without progress,
// reverting status to Open so a fresh candidate pass can start.
func ResetIfStale(order *RedemptionOrder, now uint64) {
	if order.Status != RedemptionFilling {
		return
	}
	if order.LastReset+protocol.RedemptionSecondsToFillOrder >= now {
		return
	}
	order.Candidates = [protocol.MaxRedemptionCandidates]Candidate{}
	order.Status = RedemptionOpen
	order.LastReset = now
}

// InsertCandidate places one validated candidate into the first empty slot,
// transitioning Open to Filling on first insertion and bumping last_reset.
func InsertCandidate(order *RedemptionOrder, c Candidate, now uint64) error {
	ResetIfStale(order, now)
	for i := range order.Candidates {
		if order.Candidates[i].Status == CandidateEmpty {
			c.Status = CandidateSelected
			order.Candidates[i] = c
			if order.Status == RedemptionOpen {
				order.Status = RedemptionFilling
			}
			order.LastReset = now
			return nil
		}
	}
	return overflow("queue.InsertCandidate")
}
