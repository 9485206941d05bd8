package promclient

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var FramesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsync_frames_total",
		Help: "inbound frames by type",
	},
	[]string{"type"},
)

var DroppedFramesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsync_dropped_frames_total",
		Help: "frames dropped without changing state",
	},
	[]string{"reason"},
)

var StateViolationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsync_state_violations_total",
		Help: "books and orders whose state had to be resynchronized",
	},
	[]string{"store"},
)

var RejectedWaitersTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "marketsync_rejected_waiters_total",
		Help: "waiters failed by error frames",
	},
)

var PublishedEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marketsync_published_events_total",
		Help: "events handed to the kafka producer by delivery result",
	},
	[]string{"kind", "result"},
)

var OpenOrderBookGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "marketsync_open_order_book",
		Help: "order books currently maintained",
	},
)

var OpenConnectionsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "marketsync_open_connections",
		Help: "websocket connections currently open",
	},
)

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(FramesTotal)
	reg.MustRegister(DroppedFramesTotal)
	reg.MustRegister(StateViolationsTotal)
	reg.MustRegister(RejectedWaitersTotal)
	reg.MustRegister(PublishedEventsTotal)
	reg.MustRegister(OpenOrderBookGauge)
	reg.MustRegister(OpenConnectionsGauge)
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

// StartPromClientServer serves /metrics on addr until the server is closed.
func StartPromClientServer(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(NewRegistry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("prometheus server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
