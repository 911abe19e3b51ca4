package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
)

// ErrMetricsDisabled is returned by NewMetricsServer when the providers were
// initialized without a Prometheus reader.
var ErrMetricsDisabled = errors.New("prometheus metrics are not enabled")

// MetricsServer exposes /healthz and the Prometheus /metrics endpoint while a
// build runs.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
}

// HealthHandler always answers 200 with {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)

		data, err := json.Marshal(map[string]string{"status": "ok"})
		if err != nil {
			return
		}

		_, _ = rw.Write(data) //nolint:errcheck // client went away.
	})
}

// NewMetricsServer starts serving providers' metrics at addr. Use ":0" for an
// ephemeral port and Addr to find it.
func NewMetricsServer(addr string, providers Providers, logger *slog.Logger) (*MetricsServer, error) {
	if providers.MetricsHandler == nil {
		return nil, ErrMetricsDisabled
	}

	if logger == nil {
		logger = slog.Default()
	}

	red, err := NewREDMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create http metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/metrics", providers.MetricsHandler)

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: HTTPMiddleware(providers.Tracer, red, mux)} //nolint:gosec // local scrape endpoint.

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	return &MetricsServer{server: srv, listener: listener}, nil
}

// Addr returns the address the server is listening on.
func (m *MetricsServer) Addr() string {
	return m.listener.Addr().String()
}

// Close shuts the server down.
func (m *MetricsServer) Close(ctx context.Context) error {
	err := m.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return nil
}
