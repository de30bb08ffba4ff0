// Package baserate implements the borrowing-rate engine: base-rate decay
// over elapsed time and the bump applied on redemption, plus the derived
// borrowing and redemption fee bps.
package baserate

import (
	"usdhcore/engineerr"
	"usdhcore/fixedpoint"
	"usdhcore/protocol"
)

// State is the minimal base-rate state a market carries.
type State struct {
	BaseRateBps  uint64
	LastFeeEvent uint64
}

// Decay applies the elapsed-time decay of the base rate up to now, without
// a redemption bump. now is clamped so that last_fee_event never regresses.
func Decay(s State, now uint64) State {
	secondsDiff := uint64(0)
	if now > s.LastFeeEvent {
		secondsDiff = now - s.LastFeeEvent
	}
	minutesDiff := secondsDiff / protocol.SecondsPerMinute

	decayFactor := fixedpoint.NewRateFromScaled(protocol.MinuteDecayFactorScaled).Pow(minutesDiff)
	oldRate := fixedpoint.NewRateFromScaled(bpsToScaled(s.BaseRateBps))
	newRate := oldRate.Mul(decayFactor)

	newBps := scaledToBps(newRate.Raw())
	newLast := s.LastFeeEvent
	if now > newLast {
		newLast = now
	}
	return State{BaseRateBps: newBps, LastFeeEvent: newLast}
}

// BumpOnRedemption applies the redemption-driven increase on top of an
// already time-decayed state (the caller must call Decay first, matching
// refresh_base_rate's ordering: decay, then bump, then stamp last_fee_event).
func BumpOnRedemption(decayed State, totalSupply, redeemed uint64, now uint64) (State, error) {
	if totalSupply == 0 || redeemed == 0 {
		return State{}, engineerr.Wrap(engineerr.KindValidation, "baserate.BumpOnRedemption", engineerr.ErrZeroAmountInvalid)
	}

	var fractionScaled uint64
	if redeemed >= totalSupply {
		fractionScaled = fixedpoint.RateScale
	} else {
		ratio, err := fixedpoint.MulDivFloor(redeemed, fixedpoint.RateScale, totalSupply)
		if err != nil {
			return State{}, err
		}
		fractionScaled = ratio
	}
	changeScaled := fractionScaled / 2

	oldScaled := bpsToScaled(decayed.BaseRateBps)
	newScaled, err := fixedpoint.CheckedAdd(oldScaled, changeScaled)
	if err != nil {
		return State{}, err
	}

	newBps := scaledToBps(newScaled)
	if newBps > 10_000 {
		newBps = 10_000
	}
	newLast := decayed.LastFeeEvent
	if now > newLast {
		newLast = now
	}
	return State{BaseRateBps: newBps, LastFeeEvent: newLast}, nil
}

// BorrowingFeeBps derives the borrowing fee from the current base rate,
// floored at BorrowingFeeFloorBps and capped at MaxBorrowingFeeBps.
func BorrowingFeeBps(baseRateBps uint64) uint64 {
	fee := protocol.BorrowingFeeFloorBps + baseRateBps
	if fee > protocol.MaxBorrowingFeeBps {
		return protocol.MaxBorrowingFeeBps
	}
	return fee
}

// RedemptionFeeBps derives the redemption fee from the current base rate,
// floored at RedemptionFeeFloorBps and capped at MaxRedemptionFeeBps.
func RedemptionFeeBps(baseRateBps uint64) uint64 {
	fee := protocol.RedemptionFeeFloorBps + baseRateBps
	if fee > protocol.MaxRedemptionFeeBps {
		return protocol.MaxRedemptionFeeBps
	}
	return fee
}

func bpsToScaled(bps uint64) uint64 {
	return bps * (fixedpoint.RateScale / 10_000)
}

func scaledToBps(scaled uint64) uint64 {
	return scaled / (fixedpoint.RateScale / 10_000)
}
