package queue

import (
	"testing"

	"usdhcore/assets"
	"usdhcore/protocol"
	"usdhcore/pubkey"
	"usdhcore/valuation"
)

var alice = pubkey.Key{1}
var bob = pubkey.Key{2}

func TestAddLiquidationEventFillsFirstFreeSlot(t *testing.T) {
	var q LiquidationQueue
	idx, err := AddLiquidationEvent(&q, LiquidationEvent{Liquidator: alice, EventTS: 10})
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Fatalf("idx = %d, want 0", idx)
	}
	if q.Slots[0].Status != LiquidationPendingCollection {
		t.Fatal("expected slot marked pending collection")
	}
}

func TestAddLiquidationEventFullQueue(t *testing.T) {
	var q LiquidationQueue
	for i := 0; i < protocol.MaxLiquidationEvents; i++ {
		if _, err := AddLiquidationEvent(&q, LiquidationEvent{Liquidator: alice}); err != nil {
			t.Fatalf("unexpected error filling slot %d: %v", i, err)
		}
	}
	if _, err := AddLiquidationEvent(&q, LiquidationEvent{Liquidator: alice}); err == nil {
		t.Fatal("expected queue-full error")
	}
}

func TestClearLiquidationGainsClaimWindow(t *testing.T) {
	var q LiquidationQueue
	if _, err := AddLiquidationEvent(&q, LiquidationEvent{
		Liquidator:          alice,
		EventTS:             100,
		GainToLiquidator:    assets.Amounts{Sol: 10},
		GainToClearer:       assets.Amounts{Sol: 1},
		GainToStabilityPool: assets.Amounts{Sol: 5},
	}); err != nil {
		t.Fatal(err)
	}

	// Before the claim window elapses, only the original liquidator can
	// collect its own gain; the clearer's cut and stability cut always go.
	clearer, liquidator, stability := ClearLiquidationGains(&q, assets.SOL, bob, 104)
	if clearer != 1 || liquidator != 0 || stability != 5 {
		t.Fatalf("got clearer=%d liquidator=%d stability=%d, want 1,0,5", clearer, liquidator, stability)
	}

	// The slot hasn't fully drained yet (liquidator's cut still pending), so
	// a second pass past the claim window must release it to anyone.
	clearer2, liquidator2, stability2 := ClearLiquidationGains(&q, assets.SOL, bob, 106)
	if clearer2 != 0 || liquidator2 != 10 || stability2 != 0 {
		t.Fatalf("got clearer=%d liquidator=%d stability=%d, want 0,10,0", clearer2, liquidator2, stability2)
	}
	if q.Slots[0].Status != LiquidationInactive {
		t.Fatal("slot should have returned to inactive once fully drained")
	}
}

func TestHasPendingLiquidationEvents(t *testing.T) {
	var q LiquidationQueue
	if HasPendingLiquidationEvents(&q) {
		t.Fatal("empty queue should report no pending events")
	}
	if _, err := AddLiquidationEvent(&q, LiquidationEvent{GainToStabilityPool: assets.Amounts{Sol: 1}}); err != nil {
		t.Fatal(err)
	}
	if !HasPendingLiquidationEvents(&q) {
		t.Fatal("expected pending stability-pool gain to be reported")
	}
}

func samplePrices() valuation.Vector {
	return valuation.Vector{Sol: valuation.Price{Value: 40, Exp: 0}}
}

func TestAddRedemptionOrderBelowMinRejected(t *testing.T) {
	var q RedemptionQueue
	if _, err := AddRedemptionOrder(&q, alice, protocol.MinRedemptionAmountUSDH-1, 0, 0, samplePrices()); err == nil {
		t.Fatal("expected below-minimum rejection")
	}
}

func TestAddRedemptionOrderSnapshotsPrices(t *testing.T) {
	var q RedemptionQueue
	prices := samplePrices()
	idx, err := AddRedemptionOrder(&q, alice, protocol.MinRedemptionAmountUSDH, 25, 10, prices)
	if err != nil {
		t.Fatal(err)
	}
	order := &q.Slots[idx]
	if order.PriceSnapshot != prices {
		t.Fatalf("PriceSnapshot = %+v, want %+v", order.PriceSnapshot, prices)
	}
	if order.Status != RedemptionOpen || order.Remaining != protocol.MinRedemptionAmountUSDH {
		t.Fatalf("unexpected order state: %+v", order)
	}
}

func TestInsertCandidateTransitionsToFillingAndResetsWhenStale(t *testing.T) {
	var q RedemptionQueue
	idx, err := AddRedemptionOrder(&q, alice, protocol.MinRedemptionAmountUSDH, 0, 0, samplePrices())
	if err != nil {
		t.Fatal(err)
	}
	order := &q.Slots[idx]

	if err := InsertCandidate(order, Candidate{User: bob, Debt: 100}, 1); err != nil {
		t.Fatal(err)
	}
	if order.Status != RedemptionFilling {
		t.Fatalf("status = %v, want Filling", order.Status)
	}
	if order.Candidates[0].Status != CandidateSelected {
		t.Fatal("expected first candidate slot populated")
	}

	// Past the fill window with no further progress, a new insert must
	// first clear the stale partial fill.
	stale := 1 + protocol.RedemptionSecondsToFillOrder + 1
	if err := InsertCandidate(order, Candidate{User: alice, Debt: 50}, stale); err != nil {
		t.Fatal(err)
	}
	if order.Candidates[1].Status != CandidateEmpty {
		t.Fatal("stale reset should have cleared the earlier candidate slot")
	}
	if order.Candidates[0].User != alice {
		t.Fatalf("fresh candidate should now occupy slot 0, got %+v", order.Candidates[0])
	}
}

func TestInsertCandidateFullOrderOverflows(t *testing.T) {
	var order RedemptionOrder
	order.Status = RedemptionOpen
	for i := 0; i < protocol.MaxRedemptionCandidates; i++ {
		if err := InsertCandidate(&order, Candidate{User: alice, Debt: 1}, 0); err != nil {
			t.Fatalf("unexpected error on candidate %d: %v", i, err)
		}
	}
	if err := InsertCandidate(&order, Candidate{User: alice, Debt: 1}, 0); err == nil {
		t.Fatal("expected overflow once every candidate slot is full")
	}
}
