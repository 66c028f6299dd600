package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veesix-networks/vppom/pkg/component"
	"github.com/veesix-networks/vppom/pkg/logger"
)

// Exporter serves /metrics for a set of collectors.
type Exporter struct {
	*component.Base
	logger   *slog.Logger
	addr     string
	registry *prometheus.Registry
	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
}

func NewExporter(addr string, collectors ...prometheus.Collector) *Exporter {
	if addr == "" {
		addr = ":9090"
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors...)
	return &Exporter{
		Base:     component.NewBase("exporter.prometheus"),
		logger:   logger.Get(logger.Metrics),
		addr:     addr,
		registry: registry,
	}
}

// Addr returns the bound address once started.
func (e *Exporter) Addr() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.addr
}

func (e *Exporter) Start(ctx context.Context) error {
	e.StartContext(ctx)

	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	e.mu.Lock()
	e.listener = ln
	e.server = &http.Server{Handler: mux}
	server := e.server
	e.mu.Unlock()

	e.logger.Info("Prometheus HTTP server listening", "addr", ln.Addr().String())
	e.Go("http", func(context.Context) {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("Prometheus HTTP server error", "error", err)
		}
	})
	return nil
}

func (e *Exporter) Stop(ctx context.Context) error {
	e.logger.Info("Stopping Prometheus exporter")

	e.mu.RLock()
	server := e.server
	e.mu.RUnlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}

	e.StopContext()
	return nil
}
