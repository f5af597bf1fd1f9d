package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lens_fetches_total", Help: "Bar downloads by source and result"},
		[]string{"source", "result"},
	)
	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lens_cache_lookups_total", Help: "Bar cache lookups by result"},
		[]string{"result"},
	)
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lens_scans_total", Help: "Completed scans by kind"},
		[]string{"kind"},
	)
	CrossoversTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lens_crossovers_total", Help: "Recent MACD crossovers reported"},
		[]string{"kind"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "lens_signals_total", Help: "Rule signals emitted"},
		[]string{"rule", "severity"},
	)
	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lens_scan_duration_seconds",
			Help:    "Wall time of a full watchlist scan",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(FetchesTotal, CacheTotal, ScansTotal, CrossoversTotal, SignalsTotal, ScanDuration)
}

// Serve binds addr and exposes /metrics in the background. Bind failures are returned; later
// serve errors are logged.
func Serve(addr string, log zerolog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", srv.Addr).Msg("metrics server stopped")
		}
	}()
	return srv, nil
}
