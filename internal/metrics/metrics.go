package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "survivor_ticks_total", Help: "Price samples processed"},
	)
	FeedFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "survivor_feed_failures_total", Help: "Price fetches that failed and were skipped"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "survivor_signals_total", Help: "Sell signals emitted"},
		[]string{"side"},
	)
	SuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "survivor_suppressed_total", Help: "Triggers suppressed by the multiplier ceiling"},
		[]string{"side"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "survivor_orders_total", Help: "Order placement attempts by outcome"},
		[]string{"side", "status"},
	)
	LastPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "survivor_last_price", Help: "Last observed future price"},
	)
	PutReference = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "survivor_put_reference", Help: "Current put-side reference level"},
	)
	CallReference = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "survivor_call_reference", Help: "Current call-side reference level"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal, FeedFailuresTotal, SignalsTotal, SuppressedTotal, OrdersTotal,
		LastPrice, PutReference, CallReference,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
