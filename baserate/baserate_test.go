package baserate

import "testing"

// TestDecayHalfLife is scenario S3: base_rate_bps=200 decayed over 12h
// (the encoded half-life) should land near 100.
func TestDecayHalfLife(t *testing.T) {
	s := State{BaseRateBps: 200, LastFeeEvent: 0}
	decayed := Decay(s, 43_200)
	if decayed.BaseRateBps < 95 || decayed.BaseRateBps > 105 {
		t.Fatalf("decayed base rate = %d, want ~100", decayed.BaseRateBps)
	}
	if decayed.LastFeeEvent != 43_200 {
		t.Fatalf("LastFeeEvent = %d, want 43200", decayed.LastFeeEvent)
	}
}

func TestDecayClampsLastFeeEvent(t *testing.T) {
	s := State{BaseRateBps: 100, LastFeeEvent: 1000}
	decayed := Decay(s, 500)
	if decayed.LastFeeEvent != 1000 {
		t.Fatalf("LastFeeEvent regressed to %d", decayed.LastFeeEvent)
	}
	if decayed.BaseRateBps != 100 {
		t.Fatalf("no elapsed time should not decay the rate, got %d", decayed.BaseRateBps)
	}
}

func TestBumpOnRedemption(t *testing.T) {
	decayed := State{BaseRateBps: 0, LastFeeEvent: 0}
	bumped, err := BumpOnRedemption(decayed, 10_000_000_000, 2_000_000_000, 100)
	if err != nil {
		t.Fatal(err)
	}
	// fraction = redeemed/total = 0.2; change = 0.1 = 1000 bps.
	if bumped.BaseRateBps < 990 || bumped.BaseRateBps > 1010 {
		t.Fatalf("bumped base rate = %d, want ~1000", bumped.BaseRateBps)
	}
}

func TestBumpOnRedemptionCapsAt10000Bps(t *testing.T) {
	decayed := State{BaseRateBps: 9_999, LastFeeEvent: 0}
	bumped, err := BumpOnRedemption(decayed, 100, 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if bumped.BaseRateBps != 10_000 {
		t.Fatalf("bumped base rate = %d, want capped at 10000", bumped.BaseRateBps)
	}
}

func TestFeeBpsFloorAndCap(t *testing.T) {
	if got := BorrowingFeeBps(0); got != 50 {
		t.Fatalf("BorrowingFeeBps(0) = %d, want floor 50", got)
	}
	if got := BorrowingFeeBps(10_000); got != 500 {
		t.Fatalf("BorrowingFeeBps(10000) = %d, want capped 500", got)
	}
	if got := RedemptionFeeBps(0); got != 50 {
		t.Fatalf("RedemptionFeeBps(0) = %d, want floor 50", got)
	}
}
