package assets

import "testing"

func TestAmountsAddSubRoundTrip(t *testing.T) {
	a := Amounts{Sol: 10, Eth: 20}
	b := Amounts{Sol: 3, Btc: 5}

	sum, err := a.Add(b)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Sol != 13 || sum.Eth != 20 || sum.Btc != 5 {
		t.Fatalf("unexpected sum: %+v", sum)
	}

	back, err := sum.Sub(b)
	if err != nil {
		t.Fatal(err)
	}
	if back != a {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back, a)
	}
}

func TestAmountsSubUnderflow(t *testing.T) {
	a := Amounts{Sol: 1}
	b := Amounts{Sol: 2}
	if _, err := a.Sub(b); err == nil {
		t.Fatal("expected underflow error")
	}
}

func TestAmountsIsZero(t *testing.T) {
	if !(Amounts{}).IsZero() {
		t.Fatal("zero-value Amounts should be zero")
	}
	if (Amounts{Ftt: 1}).IsZero() {
		t.Fatal("non-zero bucket should not report zero")
	}
}

func TestFromAmountsLeavesHBBZero(t *testing.T) {
	c := Amounts{Sol: 1, Eth: 2, Btc: 3, Srm: 4, Ray: 5, Ftt: 6}
	s := FromAmounts(c)
	if s.Sol != 1 || s.Ftt != 6 || s.Hbb != 0 {
		t.Fatalf("unexpected lift: %+v", s)
	}
}

func TestAssetSetClosure(t *testing.T) {
	if len(All()) != 6 {
		t.Fatalf("All() = %d assets, want 6", len(All()))
	}
	if len(AllStability()) != 7 {
		t.Fatalf("AllStability() = %d assets, want 7", len(AllStability()))
	}
}
