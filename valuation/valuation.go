// Package valuation converts a basket of collateral token amounts into a
// single USD-denominated value given a price vector, and derives collateral
// ratios from the result.
package valuation

import (
	"usdhcore/assets"
	"usdhcore/engineerr"
	"usdhcore/fixedpoint"

	"github.com/holiman/uint256"
)

// Price is an oracle quote: an integer mantissa with a signed-relative
// exponent. The core treats every Price it receives as already validated
// (Trading status) by the oracle collaborator.
type Price struct {
	Value uint64
	Exp   uint8
}

// Vector is the price quote for every collateral asset in the closed set.
type Vector struct {
	Sol, Eth, Btc, Srm, Ray, Ftt Price
}

// Get returns the quote for asset a.
func (v Vector) Get(a assets.Asset) Price {
	switch a {
	case assets.SOL:
		return v.Sol
	case assets.ETH:
		return v.Eth
	case assets.BTC:
		return v.Btc
	case assets.SRM:
		return v.Srm
	case assets.RAY:
		return v.Ray
	case assets.FTT:
		return v.Ftt
	default:
		return Price{}
	}
}

func pow10(n int) *uint256.Int {
	out := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := 0; i < n; i++ {
		out.Mul(out, ten)
	}
	return out
}

func overflow(op string) error {
	return engineerr.Wrap(engineerr.KindValidation, op, engineerr.ErrMathOverflow)
}

// MarketValueUSDH computes Σ_a amounts[a]·price[a].value/10^(decimals[a]+exp[a]-6),
// i.e. the USDH-denominated (6-decimal) market value of the basket.
func MarketValueUSDH(prices Vector, amounts assets.Amounts) (uint64, error) {
	total := new(uint256.Int)
	for _, a := range assets.All() {
		amt := amounts.Get(a)
		if amt == 0 {
			continue
		}
		price := prices.Get(a)
		exp := int(a.Decimals()) + int(price.Exp) - 6
		num := new(uint256.Int).Mul(uint256.NewInt(amt), uint256.NewInt(price.Value))
		if exp >= 0 {
			num.Div(num, pow10(exp))
		} else {
			num.Mul(num, pow10(-exp))
		}
		total.Add(total, num)
		if total.Lt(num) {
			return 0, overflow("valuation.MarketValueUSDH")
		}
	}
	if !total.IsUint64() {
		return 0, overflow("valuation.MarketValueUSDH")
	}
	return total.Uint64(), nil
}

// CollRatioInfinite is the sentinel used in place of CR when debt is zero.
const CollRatioInfinite = ^uint64(0)

// CollRatio returns the collateral ratio as a fixedpoint.Rate (1.0 ==
// 100%), along with true if debt is zero (ratio defined as infinite).
func CollRatio(debtUSDH, marketValueUSDH uint64) (rate fixedpoint.Rate, infinite bool, err error) {
	if debtUSDH == 0 {
		return fixedpoint.NewRateFromScaled(0), true, nil
	}
	raw, err := fixedpoint.MulDivFloor(marketValueUSDH, fixedpoint.RateScale, debtUSDH)
	if err != nil {
		return fixedpoint.Rate{}, false, err
	}
	return fixedpoint.NewRateFromScaled(raw), false, nil
}

// RateFromPercent converts a whole-number percent (e.g. 110 for 110%) into
// a fixedpoint.Rate.
func RateFromPercent(pct uint64) fixedpoint.Rate {
	return fixedpoint.NewRateFromScaled(pct * (fixedpoint.RateScale / 100))
}

// GreaterEqual reports whether cr (possibly infinite) is >= threshold.
func GreaterEqual(cr fixedpoint.Rate, infinite bool, threshold fixedpoint.Rate) bool {
	if infinite {
		return true
	}
	return cr.Raw() >= threshold.Raw()
}

// Less reports whether cr (possibly infinite) is < threshold.
func Less(cr fixedpoint.Rate, infinite bool, threshold fixedpoint.Rate) bool {
	return !GreaterEqual(cr, infinite, threshold)
}

// LessEqual reports whether cr (possibly infinite) is <= threshold.
func LessEqual(cr fixedpoint.Rate, infinite bool, threshold fixedpoint.Rate) bool {
	if infinite {
		return false
	}
	return cr.Raw() <= threshold.Raw()
}

// CmpRates compares two possibly-infinite collateral ratios: -1 if a<b, 0 if
// equal, 1 if a>b. Infinite is treated as greater than any finite value.
func CmpRates(aRate fixedpoint.Rate, aInf bool, bRate fixedpoint.Rate, bInf bool) int {
	switch {
	case aInf && bInf:
		return 0
	case aInf:
		return 1
	case bInf:
		return -1
	case aRate.Raw() < bRate.Raw():
		return -1
	case aRate.Raw() > bRate.Raw():
		return 1
	default:
		return 0
	}
}
