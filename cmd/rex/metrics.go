package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// metricsServer exposes a registry on /metrics for the lifetime of a command and
// after it, until the command's context is cancelled.
type metricsServer struct {
	srv  *http.Server
	addr string
	errc chan error
}

func startMetricsServer(ln net.Listener, gatherer prometheus.Gatherer) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	m := &metricsServer{
		srv:  &http.Server{Handler: mux, ReadHeaderTimeout: shutdownTimeout},
		addr: ln.Addr().String(),
		errc: make(chan error, 1),
	}
	go func() {
		m.errc <- m.srv.Serve(ln)
	}()
	log.Info().Str("addr", m.addr).Msg("Starting metrics server")
	return m
}

// wait blocks until ctx is done, then shuts the server down.
func (m *metricsServer) wait(ctx context.Context) error {
	select {
	case err := <-m.errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-m.errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Str("addr", m.addr).Msg("Metrics server stopped")
	return nil
}
