package protocol

import "testing"

func TestLiquidationFeeSplitFitsWithinWhole(t *testing.T) {
	if LiquidatorRateBps+ClearerRateBps >= 10_000 {
		t.Fatalf("liquidator+clearer bps = %d, must leave room for the stability pool/redistribution share", LiquidatorRateBps+ClearerRateBps)
	}
}

func TestRedemptionFeeSplitFitsWithinWhole(t *testing.T) {
	total := RedemptionStakersBps + RedemptionFillerBps + RedemptionClearerBps
	if total >= 10_000 {
		t.Fatalf("redemption split bps = %d, must leave room for the redeemer's share", total)
	}
}

func TestMCRThresholdsAreOrdered(t *testing.T) {
	if NormalMCRPercent >= RecoveryMCRPercent {
		t.Fatalf("NormalMCRPercent (%d) must be below RecoveryMCRPercent (%d)", NormalMCRPercent, RecoveryMCRPercent)
	}
}

func TestQueueCapacitiesPositive(t *testing.T) {
	if MaxLiquidationEvents <= 0 || MaxRedemptionEvents <= 0 || MaxRedemptionCandidates <= 0 {
		t.Fatal("queue capacities must be positive")
	}
}

func TestStablecoinDecimalsMatchFactor(t *testing.T) {
	scale := uint64(1)
	for i := uint8(0); i < USDHDecimals; i++ {
		scale *= 10
	}
	if scale != StablecoinFactor {
		t.Fatalf("10^USDHDecimals = %d, want StablecoinFactor %d", scale, StablecoinFactor)
	}
}

func TestMinRedemptionAmountIsWholeNumberOfUSDH(t *testing.T) {
	if MinRedemptionAmountUSDH%StablecoinFactor != 0 {
		t.Fatalf("MinRedemptionAmountUSDH = %d, want a whole multiple of StablecoinFactor", MinRedemptionAmountUSDH)
	}
	if MinRedemptionAmountUSDH/StablecoinFactor != 2000 {
		t.Fatalf("MinRedemptionAmountUSDH = %d USDH, want 2000", MinRedemptionAmountUSDH/StablecoinFactor)
	}
}
