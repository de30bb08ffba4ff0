// Package telemetry defines the optional post-transition metrics
// collaborator. The engine facade calls Recorder only after a pure state
// transition has already succeeded and been persisted — never from inside
// the C1–C10 packages, so metrics collection can never affect
// determinism.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the engine's metrics sink. NoopRecorder satisfies it with
// no-ops so a host can omit telemetry entirely.
type Recorder interface {
	ObserveLiquidation(decision string, collateralUSD uint64)
	ObserveStabilityAbsorption(usdLoss uint64)
	ObserveRedemptionFill(usdh uint64)
	ObserveBorrow(usdh uint64)
	ObserveRepay(usdh uint64)
}

// NoopRecorder discards every observation.
type NoopRecorder struct{}

func (NoopRecorder) ObserveLiquidation(string, uint64) {}
func (NoopRecorder) ObserveStabilityAbsorption(uint64) {}
func (NoopRecorder) ObserveRedemptionFill(uint64)      {}
func (NoopRecorder) ObserveBorrow(uint64)              {}
func (NoopRecorder) ObserveRepay(uint64)               {}

// PrometheusRecorder is the default Recorder, registering its collectors
// against reg at construction time.
type PrometheusRecorder struct {
	liquidations      *prometheus.CounterVec
	stabilityAbsorbed prometheus.Counter
	redemptionFills   prometheus.Counter
	borrowVolume      prometheus.Counter
	repayVolume       prometheus.Counter
}

// NewPrometheusRecorder builds and registers the engine's metric family
// against reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usdhcore",
			Subsystem: "liquidation",
			Name:      "total",
			Help:      "Liquidations processed, by decision kind.",
		}, []string{"decision"}),
		stabilityAbsorbed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usdhcore",
			Subsystem: "stability",
			Name:      "usd_absorbed_total",
			Help:      "Cumulative USDH debt absorbed by the stability pool.",
		}),
		redemptionFills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usdhcore",
			Subsystem: "redemption",
			Name:      "usdh_filled_total",
			Help:      "Cumulative USDH redeemed at par.",
		}),
		borrowVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usdhcore",
			Subsystem: "trove",
			Name:      "usdh_borrowed_total",
			Help:      "Cumulative USDH minted via borrow.",
		}),
		repayVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usdhcore",
			Subsystem: "trove",
			Name:      "usdh_repaid_total",
			Help:      "Cumulative USDH burned via repay.",
		}),
	}
	reg.MustRegister(r.liquidations, r.stabilityAbsorbed, r.redemptionFills, r.borrowVolume, r.repayVolume)
	return r
}

func (r *PrometheusRecorder) ObserveLiquidation(decision string, collateralUSD uint64) {
	r.liquidations.WithLabelValues(decision).Inc()
}

func (r *PrometheusRecorder) ObserveStabilityAbsorption(usdLoss uint64) {
	r.stabilityAbsorbed.Add(float64(usdLoss))
}

func (r *PrometheusRecorder) ObserveRedemptionFill(usdh uint64) {
	r.redemptionFills.Add(float64(usdh))
}

func (r *PrometheusRecorder) ObserveBorrow(usdh uint64) {
	r.borrowVolume.Add(float64(usdh))
}

func (r *PrometheusRecorder) ObserveRepay(usdh uint64) {
	r.repayVolume.Add(float64(usdh))
}
