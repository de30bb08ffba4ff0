package valuation

import (
	"testing"

	"usdhcore/assets"
	"usdhcore/fixedpoint"
)

func TestMarketValueUSDHSingleAsset(t *testing.T) {
	prices := Vector{Sol: Price{Value: 40, Exp: 0}}
	amounts := assets.Amounts{Sol: 1_000_000_000} // 1 SOL, 9 decimals

	mv, err := MarketValueUSDH(prices, amounts)
	if err != nil {
		t.Fatal(err)
	}
	if mv != 40_000_000 {
		t.Fatalf("mv = %d, want 40000000", mv)
	}
}

func TestMarketValueUSDHMultiAsset(t *testing.T) {
	prices := Vector{
		Sol: Price{Value: 40, Exp: 0},
		Eth: Price{Value: 2_000, Exp: 0},
	}
	amounts := assets.Amounts{
		Sol: 1_000_000_000, // 1 SOL -> 40,000,000
		Eth: 1_000_000,     // 1 ETH (6 decimals) -> 2,000,000,000
	}

	mv, err := MarketValueUSDH(prices, amounts)
	if err != nil {
		t.Fatal(err)
	}
	if mv != 2_040_000_000 {
		t.Fatalf("mv = %d, want 2040000000", mv)
	}
}

func TestMarketValueUSDHZeroAmountsSkipped(t *testing.T) {
	prices := Vector{} // no prices quoted at all
	amounts := assets.Amounts{}

	mv, err := MarketValueUSDH(prices, amounts)
	if err != nil {
		t.Fatal(err)
	}
	if mv != 0 {
		t.Fatalf("mv = %d, want 0", mv)
	}
}

func TestCollRatioZeroDebtIsInfinite(t *testing.T) {
	rate, infinite, err := CollRatio(0, 1_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if !infinite {
		t.Fatal("expected infinite CR when debt is zero")
	}
	if rate.Raw() != 0 {
		t.Fatalf("rate.Raw() = %d, want the zero value when infinite", rate.Raw())
	}
}

func TestCollRatioComputesRatio(t *testing.T) {
	rate, infinite, err := CollRatio(20_100_000, 40_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if infinite {
		t.Fatal("CR should be finite once debt is nonzero")
	}
	// 40,000,000 / 20,100,000 ~= 1.9900497512...
	if rate.Raw() < 1_989_000_000_000_000_000 || rate.Raw() > 1_991_000_000_000_000_000 {
		t.Fatalf("rate.Raw() = %d, want ~1.990e18", rate.Raw())
	}
}

func TestRateFromPercent(t *testing.T) {
	if got := RateFromPercent(110); got.Raw() != 1_100_000_000_000_000_000 {
		t.Fatalf("RateFromPercent(110).Raw() = %d, want 1.1e18", got.Raw())
	}
	if got := RateFromPercent(100); got.Raw() != fixedpoint.RateScale {
		t.Fatalf("RateFromPercent(100).Raw() = %d, want RateScale", got.Raw())
	}
}

func TestGreaterEqualLessLessEqual(t *testing.T) {
	mcr := RateFromPercent(110)
	above := RateFromPercent(120)
	below := RateFromPercent(100)

	if !GreaterEqual(above, false, mcr) {
		t.Fatal("120% should be >= 110% MCR")
	}
	if GreaterEqual(below, false, mcr) {
		t.Fatal("100% should not be >= 110% MCR")
	}
	if !GreaterEqual(fixedpoint.Rate{}, true, mcr) {
		t.Fatal("an infinite CR should always satisfy >= threshold")
	}

	if !Less(below, false, mcr) {
		t.Fatal("100% should be < 110% MCR")
	}
	if Less(fixedpoint.Rate{}, true, mcr) {
		t.Fatal("an infinite CR should never be < threshold")
	}

	if !LessEqual(mcr, false, mcr) {
		t.Fatal("110% should be <= 110% MCR")
	}
	if LessEqual(fixedpoint.Rate{}, true, mcr) {
		t.Fatal("an infinite CR should never be <= a finite threshold")
	}
}

func TestCmpRates(t *testing.T) {
	low := RateFromPercent(100)
	high := RateFromPercent(150)

	if CmpRates(low, false, high, false) != -1 {
		t.Fatal("100% should compare less than 150%")
	}
	if CmpRates(high, false, low, false) != 1 {
		t.Fatal("150% should compare greater than 100%")
	}
	if CmpRates(low, false, low, false) != 0 {
		t.Fatal("equal finite rates should compare equal")
	}
	if CmpRates(fixedpoint.Rate{}, true, high, false) != 1 {
		t.Fatal("infinite should compare greater than any finite rate")
	}
	if CmpRates(fixedpoint.Rate{}, true, fixedpoint.Rate{}, true) != 0 {
		t.Fatal("two infinite rates should compare equal")
	}
}
