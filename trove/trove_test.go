package trove

import (
	"errors"
	"testing"

	"usdhcore/assets"
	"usdhcore/engineerr"
	"usdhcore/pubkey"
	"usdhcore/valuation"
)

var owner = pubkey.Key{7}

func solPrice(dollars uint64) valuation.Vector {
	return valuation.Vector{Sol: valuation.Price{Value: dollars, Exp: 0}}
}

func TestDepositCollateralInactiveUntilActive(t *testing.T) {
	var m Market
	tr := New(owner)

	if err := DepositCollateral(&m, &tr, assets.SOL, 1_000_000_000); err != nil {
		t.Fatal(err)
	}
	if tr.InactiveCollateral.Get(assets.SOL) != 1_000_000_000 {
		t.Fatalf("expected deposit routed to inactive bucket while trove is Inactive, got %+v", tr.InactiveCollateral)
	}
	if tr.DepositedCollateral.Get(assets.SOL) != 0 {
		t.Fatal("active collateral should still be zero")
	}
}

// TestBorrowStablecoinOpensTrove is scenario S1: SOL at $40, deposit 1 SOL,
// borrow 20 USDH at a 15% treasury fee split.
func TestBorrowStablecoinOpensTrove(t *testing.T) {
	var m Market
	tr := New(owner)
	m.Owner = owner

	if err := DepositCollateral(&m, &tr, assets.SOL, 1_000_000_000); err != nil {
		t.Fatal(err)
	}

	effects, err := BorrowStablecoin(&m, &tr, BorrowParams{
		Prices:         solPrice(40),
		Requested:      20_000_000,
		TreasuryFeeBps: 1_500,
	})
	if err != nil {
		t.Fatal(err)
	}
	if effects.MintToUser != 20_000_000 {
		t.Fatalf("MintToUser = %d, want 20000000", effects.MintToUser)
	}
	if effects.MintToTreasury != 15_000 {
		t.Fatalf("MintToTreasury = %d, want 15000", effects.MintToTreasury)
	}
	if effects.MintToFeesVault != 85_000 {
		t.Fatalf("MintToFeesVault = %d, want 85000", effects.MintToFeesVault)
	}
	if tr.BorrowedStablecoin != 20_100_000 {
		t.Fatalf("trove debt = %d, want 20100000", tr.BorrowedStablecoin)
	}
	if tr.Status != Active {
		t.Fatal("trove should be Active after its qualifying borrow")
	}
	if tr.DepositedCollateral.Get(assets.SOL) != 1_000_000_000 {
		t.Fatal("inactive collateral should have promoted to active on the qualifying borrow")
	}
}

// TestBorrowStablecoinRejectsUndercollateralized is scenario S2: the same
// setup but requesting double the USDH drops ICR under the 110% MCR.
func TestBorrowStablecoinRejectsUndercollateralized(t *testing.T) {
	var m Market
	tr := New(owner)
	m.Owner = owner

	if err := DepositCollateral(&m, &tr, assets.SOL, 1_000_000_000); err != nil {
		t.Fatal(err)
	}

	_, err := BorrowStablecoin(&m, &tr, BorrowParams{
		Prices:         solPrice(40),
		Requested:      40_000_000,
		TreasuryFeeBps: 1_500,
	})
	if !errors.Is(err, engineerr.ErrNotEnoughCollateral) {
		t.Fatalf("err = %v, want ErrNotEnoughCollateral", err)
	}
}

func TestBorrowStablecoinRejectsDuringBootstrapForOutsider(t *testing.T) {
	var m Market
	m.Owner = pubkey.Key{9}
	tr := New(owner)
	if err := DepositCollateral(&m, &tr, assets.SOL, 1_000_000_000); err != nil {
		t.Fatal(err)
	}

	_, err := BorrowStablecoin(&m, &tr, BorrowParams{
		Now:             10,
		BootstrapEndsAt: 100,
		Prices:          solPrice(40),
		Requested:       1_000,
	})
	if !errors.Is(err, engineerr.ErrBorrowingNotAllowed) {
		t.Fatalf("err = %v, want ErrBorrowingNotAllowed", err)
	}
}

func TestRepayLoanFullyClosesTrove(t *testing.T) {
	var m Market
	tr := New(owner)
	m.Owner = owner

	if err := DepositCollateral(&m, &tr, assets.SOL, 1_000_000_000); err != nil {
		t.Fatal(err)
	}
	if _, err := BorrowStablecoin(&m, &tr, BorrowParams{
		Prices: solPrice(40), Requested: 20_000_000, TreasuryFeeBps: 1_500,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := RepayLoan(&m, &tr, tr.BorrowedStablecoin); err != nil {
		t.Fatal(err)
	}
	if tr.BorrowedStablecoin != 0 {
		t.Fatalf("debt = %d, want 0", tr.BorrowedStablecoin)
	}
	if tr.Status != Inactive {
		t.Fatal("fully repaid trove should return to Inactive")
	}
	if tr.InactiveCollateral.Get(assets.SOL) != 1_000_000_000 {
		t.Fatal("collateral should have demoted back to inactive on full repayment")
	}
	if m.TotalStake != 0 {
		t.Fatalf("market TotalStake = %d, want 0", m.TotalStake)
	}
}

func TestWithdrawCollateralRejectsInRecoveryMode(t *testing.T) {
	var m Market
	tr := New(owner)
	m.Owner = owner

	if err := DepositCollateral(&m, &tr, assets.SOL, 1_000_000_000); err != nil {
		t.Fatal(err)
	}
	if _, err := BorrowStablecoin(&m, &tr, BorrowParams{
		Prices: solPrice(40), Requested: 20_000_000, TreasuryFeeBps: 1_500,
	}); err != nil {
		t.Fatal(err)
	}

	// Crash the price so the whole system falls into Recovery mode (TCR<150%).
	_, err := WithdrawCollateral(&m, &tr, assets.SOL, 1, solPrice(25))
	if !errors.Is(err, engineerr.ErrCannotWithdrawInRecoveryMode) {
		t.Fatalf("err = %v, want ErrCannotWithdrawInRecoveryMode", err)
	}
}

func TestWithdrawCollateralRejectsBelowMCR(t *testing.T) {
	var m Market
	tr := New(owner)
	m.Owner = owner

	if err := DepositCollateral(&m, &tr, assets.SOL, 1_000_000_000); err != nil {
		t.Fatal(err)
	}
	if _, err := BorrowStablecoin(&m, &tr, BorrowParams{
		Prices: solPrice(40), Requested: 20_000_000, TreasuryFeeBps: 1_500,
	}); err != nil {
		t.Fatal(err)
	}

	_, err := WithdrawCollateral(&m, &tr, assets.SOL, 500_000_000, solPrice(40))
	if !errors.Is(err, engineerr.ErrNotEnoughCollateral) {
		t.Fatalf("err = %v, want ErrNotEnoughCollateral", err)
	}
}
