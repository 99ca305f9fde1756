package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/evreco/core/logger"
)

// PromServer exposes /metrics for a gatherer.
type PromServer struct {
	Addr     string
	Gatherer prometheus.Gatherer
	Log      logger.Logger
}

// Serve runs the server until ctx is canceled.
func (p PromServer) Serve(ctx context.Context) error {
	g := p.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: p.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.OrNop(p.Log).Warnf("prom server shutdown: %v", err)
		}
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// String names the service for the supervisor.
func (p PromServer) String() string { return "prometheus " + p.Addr }
