// Package fixedpoint implements the engine's bounded-precision decimal and
// rate arithmetic. All math is fixed-point integer: no float ever appears in
// the accounting core. Every product that could exceed 64 bits is computed
// through a 256-bit intermediate (github.com/holiman/uint256) so overflow is
// detected explicitly instead of wrapping silently.
package fixedpoint

import (
	"usdhcore/engineerr"

	"github.com/holiman/uint256"
)

// BpsDenominator is the basis-points divisor: value/10000.
const BpsDenominator uint64 = 10_000

// RateScale is the fixed-point scale used by Rate (10^18).
const RateScale uint64 = 1_000_000_000_000_000_000

// Scale is the accumulator scale ("DECIMAL_PRECISION" in the wire contract,
// 10^12) used by redistribution, stability-pool and staking-pool reward
// accumulators.
const Scale uint64 = 1_000_000_000_000

func overflow(op string) error {
	return engineerr.Wrap(engineerr.KindValidation, op, engineerr.ErrMathOverflow)
}

// CheckedAdd adds two amounts, returning MathOverflow on wraparound.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, overflow("fixedpoint.CheckedAdd")
	}
	return sum, nil
}

// CheckedSub subtracts b from a. Underflow is fatal: saturating subtraction
// is forbidden by the protocol's arithmetic rules.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, overflow("fixedpoint.CheckedSub")
	}
	return a - b, nil
}

// MulDivFloor computes floor(a*b/d) via a 256-bit intermediate product,
// erroring if the result does not fit in 64 bits or d is zero.
func MulDivFloor(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, overflow("fixedpoint.MulDivFloor")
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	q := new(uint256.Int).Div(prod, uint256.NewInt(d))
	if !q.IsUint64() {
		return 0, overflow("fixedpoint.MulDivFloor")
	}
	return q.Uint64(), nil
}

// MulDivCeil computes ceil(a*b/d) via a 256-bit intermediate product.
func MulDivCeil(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, overflow("fixedpoint.MulDivCeil")
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	dd := uint256.NewInt(d)
	q, r := new(uint256.Int).DivMod(prod, dd, new(uint256.Int))
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() {
		return 0, overflow("fixedpoint.MulDivCeil")
	}
	return q.Uint64(), nil
}

// MulBpsFloor rounds amount*bps/10000 down — used for payouts, which favor
// the party receiving less precision loss: the protocol.
func MulBpsFloor(amount, bps uint64) (uint64, error) {
	return MulDivFloor(amount, bps, BpsDenominator)
}

// MulBpsCeil rounds amount*bps/10000 up — used for fees, which round in
// favor of the protocol.
func MulBpsCeil(amount, bps uint64) (uint64, error) {
	return MulDivCeil(amount, bps, BpsDenominator)
}

// MulFractionFloor returns floor(amount*num/den), the token-map fractional
// split used by liquidation and redemption collateral seizure.
func MulFractionFloor(amount, num, den uint64) (uint64, error) {
	return MulDivFloor(amount, num, den)
}

// ScaleUp computes floor(amount*Scale) as a 256-bit value for use in
// reward-per-stake accumulators that exceed 64 bits once scaled.
func ScaleUp(amount uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(Scale))
}

// Rate is an unsigned fixed-point fraction scaled by RateScale (10^18), used
// for the borrowing-rate decay factor and its binary-exponentiation.
type Rate struct {
	v *uint256.Int
}

// RateOne is the multiplicative identity (1.0).
func RateOne() Rate { return Rate{v: uint256.NewInt(RateScale)} }

// NewRateFromScaled builds a Rate directly from its RateScale-scaled raw
// value, e.g. the MINUTE_DECAY_FACTOR / HBB_ISSUANCE_FACTOR wire constants.
func NewRateFromScaled(scaled uint64) Rate {
	return Rate{v: uint256.NewInt(scaled)}
}

// Raw returns the RateScale-scaled raw value, panicking if it overflows
// uint64 (the decay/issuance factors used by the protocol never do).
func (r Rate) Raw() uint64 {
	if !r.v.IsUint64() {
		panic("fixedpoint: Rate.Raw overflow")
	}
	return r.v.Uint64()
}

// Mul returns r*o, scaled back down by RateScale.
func (r Rate) Mul(o Rate) Rate {
	prod := new(uint256.Int).Mul(r.v, o.v)
	return Rate{v: prod.Div(prod, uint256.NewInt(RateScale))}
}

// Pow computes r^n via binary exponentiation, used by the base-rate and HBB
// issuance decay curves to raise a per-minute factor to an elapsed-minutes
// power.
func (r Rate) Pow(n uint64) Rate {
	result := RateOne()
	base := r
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		n >>= 1
	}
	return result
}

// MulAmountFloor applies the rate to an integer amount, rounding down.
func (r Rate) MulAmountFloor(amount uint64) (uint64, error) {
	prod := new(uint256.Int).Mul(r.v, uint256.NewInt(amount))
	q := prod.Div(prod, uint256.NewInt(RateScale))
	if !q.IsUint64() {
		return 0, overflow("fixedpoint.Rate.MulAmountFloor")
	}
	return q.Uint64(), nil
}

// OneMinus returns max(RateOne - r, 0), used by the stability-pool product
// update (SCALE - usd_loss_per_unit)/SCALE style formulas expressed in Rate
// terms.
func (r Rate) OneMinus() Rate {
	one := uint256.NewInt(RateScale)
	if r.v.Cmp(one) >= 0 {
		return Rate{v: uint256.NewInt(0)}
	}
	return Rate{v: new(uint256.Int).Sub(one, r.v)}
}
