// Package telemetry sets up OpenTelemetry metrics backed by a Prometheus
// registry. When metrics are disabled every instrument is a no-op.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"heapstore/pkg/config"
	"heapstore/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// Telemetry holds the active metric pipeline.
type Telemetry struct {
	MeterProvider metric.MeterProvider
	Registry      *prometheus.Registry
}

// ShutdownFunc flushes and stops the metric pipeline.
type ShutdownFunc func(ctx context.Context) error

// New builds the metric pipeline described by cfg. With metrics disabled it
// returns a no-op provider and a nil registry.
func New(cfg config.MetricsConfig) (*Telemetry, ShutdownFunc, error) {
	if !cfg.Enabled {
		return &Telemetry{MeterProvider: noop.NewMeterProvider()},
			func(context.Context) error { return nil }, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	tel := &Telemetry{MeterProvider: mp, Registry: reg}
	return tel, mp.Shutdown, nil
}

// Handler serves the registry in the Prometheus text format. With metrics
// disabled it answers 404.
func (t *Telemetry) Handler() http.Handler {
	if t.Registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(t.Registry, promhttp.HandlerOpts{Registry: t.Registry})
}

// Serve exposes /metrics and /health on addr until ctx is done.
func (t *Telemetry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.WithComponent("telemetry").Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
