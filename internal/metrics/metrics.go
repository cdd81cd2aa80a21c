// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exports connectivity gauges for Prometheus scrapes,
// with a small read-only HTTP surface per monitor daemon.
package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/multiwan/internal/level"
	"grimm.is/multiwan/internal/logging"
)

// Registry holds the multiwan collectors.
type Registry struct {
	reg          *prometheus.Registry
	connectivity *prometheus.GaugeVec
	rounds       *prometheus.CounterVec
}

// NewRegistry creates a registry with the multiwan collectors plus the
// standard Go runtime collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		connectivity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "multiwan_connectivity_level",
			Help: "Current raw connectivity level (0=unknown 1=none 2=portal 3=limited 4=full).",
		}, []string{"interface"}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multiwan_probe_rounds_total",
			Help: "Probe rounds completed, by resulting level.",
		}, []string{"interface", "level"}),
	}
	reg.MustRegister(r.connectivity, r.rounds)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// SetLevel records the current level for an interface.
func (r *Registry) SetLevel(ifname string, l level.Level) {
	r.connectivity.WithLabelValues(ifname).Set(float64(l))
}

// ObserveRound counts one completed probe round.
func (r *Registry) ObserveRound(ifname string, l level.Level) {
	r.rounds.WithLabelValues(ifname, l.String()).Inc()
}

// StatusFunc supplies the /status JSON document.
type StatusFunc func() any

// Serve runs the HTTP surface on addr until ctx is cancelled. Errors
// are logged, never fatal: metrics export is best-effort.
func Serve(ctx context.Context, logger *logging.Logger, addr string, r *Registry, status StatusFunc) {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status())
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "addr", addr, "error", err)
	}
}
