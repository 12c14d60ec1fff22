package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runwar_runs_submitted_total",
		Help: "Total number of submitted runs",
	})
	ValidLoopsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runwar_valid_loops_total",
		Help: "Total number of runs that passed loop validation",
	})
	LoopRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "runwar_loop_rejections_total",
		Help: "Loop validation failures by reason",
	}, []string{"reason"})
	FraudFlagsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "runwar_fraud_flags_total",
		Help: "Fraud flags raised by kind",
	}, []string{"kind"})
	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "runwar_territory_actions_total",
		Help: "Territory actions applied by type",
	}, []string{"type"})
	OwnershipTransfersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runwar_ownership_transfers_total",
		Help: "Total number of tile ownership transfers",
	})
	CapSkipsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runwar_cap_skips_total",
		Help: "Actions skipped because a daily cap was reached",
	})
	SubmitDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "runwar_submit_duration_ms",
		Help:    "Run submission pipeline duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	ViewportCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runwar_viewport_cache_hits_total",
		Help: "Total viewport cache hits",
	})
	ViewportCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runwar_viewport_cache_misses_total",
		Help: "Total viewport cache misses",
	})
	DecayedTilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runwar_decayed_tiles_total",
		Help: "Total number of tiles decayed by the sweep",
	})
)

func init() {
	prometheus.MustRegister(RunsSubmittedTotal)
	prometheus.MustRegister(ValidLoopsTotal)
	prometheus.MustRegister(LoopRejectionsTotal)
	prometheus.MustRegister(FraudFlagsTotal)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(OwnershipTransfersTotal)
	prometheus.MustRegister(CapSkipsTotal)
	prometheus.MustRegister(SubmitDurationMs)
	prometheus.MustRegister(ViewportCacheHitsTotal)
	prometheus.MustRegister(ViewportCacheMissesTotal)
	prometheus.MustRegister(DecayedTilesTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
