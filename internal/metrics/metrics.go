package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the bot. All methods are safe on a
// nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	SignalsTotal      *prometheus.CounterVec // labels: strategy, action
	OrdersTotal       *prometheus.CounterVec // labels: side, status
	OrderPollAttempts prometheus.Histogram
	TickerErrors      prometheus.Counter
	BarCacheTotal     *prometheus.CounterVec // labels: result
	RunDuration       prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_signals_total",
			Help: "Signals produced by strategy and action",
		}, []string{"strategy", "action"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_orders_total",
			Help: "Orders by side and final status",
		}, []string{"side", "status"}),
		OrderPollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_order_poll_attempts",
			Help:    "Status polls needed per order",
			Buckets: []float64{1, 2, 3, 5, 8, 10, 15},
		}),
		TickerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_ticker_errors_total",
			Help: "Tickers whose evaluation failed",
		}),
		BarCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_bar_cache_total",
			Help: "Bar cache lookups by result (hit, store, miss)",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_run_duration_seconds",
			Help:    "Wall time of one pass over the ticker list",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.SignalsTotal,
		m.OrdersTotal,
		m.OrderPollAttempts,
		m.TickerErrors,
		m.BarCacheTotal,
		m.RunDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Signal(strategy, action string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(strategy, action).Inc()
}

func (m *Metrics) Order(side, status string) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(side, status).Inc()
}

func (m *Metrics) PollAttempts(n int) {
	if m == nil {
		return
	}
	m.OrderPollAttempts.Observe(float64(n))
}

func (m *Metrics) TickerError() {
	if m == nil {
		return
	}
	m.TickerErrors.Inc()
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.BarCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

// Server exposes /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
