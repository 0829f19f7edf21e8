package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrderEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_events_total", Help: "Order journal transitions by event"},
		[]string{"event"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fills_total", Help: "Fill events"},
		[]string{"symbol", "side"},
	)
	RiskCheckFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "risk_check_failures_total", Help: "Rejected admission decisions by failed check"},
		[]string{"check"},
	)
	ExecutorCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "executor_cycles_total", Help: "Executor loop wakeups"},
		[]string{"strategy"},
	)
	ActiveStrategies = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "active_strategies", Help: "Running strategy executors"},
	)
	FeedUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_updates_total", Help: "Inbound streaming updates by kind"},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		OrderEventsTotal, FillsTotal, RiskCheckFailuresTotal,
		ExecutorCyclesTotal, ActiveStrategies, FeedUpdatesTotal,
	)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
