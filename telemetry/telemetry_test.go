package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopRecorderDiscardsEverything(t *testing.T) {
	var r Recorder = NoopRecorder{}
	// These should simply not panic; there is nothing to observe.
	r.ObserveLiquidation("RedistributeAll", 100)
	r.ObserveStabilityAbsorption(100)
	r.ObserveRedemptionFill(100)
	r.ObserveBorrow(100)
	r.ObserveRepay(100)
}

func TestPrometheusRecorderObservesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.ObserveLiquidation("StabilityPoolAll", 500)
	r.ObserveLiquidation("StabilityPoolAll", 500)
	r.ObserveStabilityAbsorption(1_000)
	r.ObserveRedemptionFill(2_000)
	r.ObserveBorrow(3_000)
	r.ObserveRepay(1_500)

	if got := testutil.ToFloat64(r.liquidations.WithLabelValues("StabilityPoolAll")); got != 2 {
		t.Fatalf("liquidations counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.stabilityAbsorbed); got != 1_000 {
		t.Fatalf("stabilityAbsorbed = %v, want 1000", got)
	}
	if got := testutil.ToFloat64(r.redemptionFills); got != 2_000 {
		t.Fatalf("redemptionFills = %v, want 2000", got)
	}
	if got := testutil.ToFloat64(r.borrowVolume); got != 3_000 {
		t.Fatalf("borrowVolume = %v, want 3000", got)
	}
	if got := testutil.ToFloat64(r.repayVolume); got != 1_500 {
		t.Fatalf("repayVolume = %v, want 1500", got)
	}
}

func TestNewPrometheusRecorderRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusRecorder(reg)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected the recorder's collectors to be registered")
	}
}
