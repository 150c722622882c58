// noded is the peer-to-peer overlay node daemon: it decodes inbound
// BackendMessages handed to it by the swarm, dispatches them to the
// configured endpoints, and bridges TCP tunnels to and from peers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/ringlink/noded/internal/backend"
	"github.com/ringlink/noded/internal/config"
	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/metrics"
	"github.com/ringlink/noded/internal/overlay"
	"github.com/ringlink/noded/internal/overlay/testoverlay"
	"github.com/ringlink/noded/internal/status"
	"github.com/ringlink/noded/internal/tunnel"
	appversion "github.com/ringlink/noded/internal/version"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("noded starting",
		slog.String("version", appversion.Version),
		slog.String("did", cfg.Self.DID),
		slog.String("status_addr", cfg.Status.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	if err := runServers(cfg, logger, *configPath, logLevel); err != nil {
		logger.Error("noded exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("noded stopped")
	return 0
}

// node bundles every component runServers wires together, so helper
// functions can be handed one value instead of a long parameter list.
type node struct {
	swarm    *testoverlay.Swarm
	backend  *backend.Backend
	engine   *tunnel.Engine
	registry *backend.ServiceRegistry
	metrics  *metrics.Collector
}

// buildNode wires the backend message pipeline and tunnel engine
// together: the same construction sequence described for the on_payload
// path, with the loopback Swarm standing in for a real DHT/WebRTC
// transport until one is plugged in.
func buildNode(cfg *config.Config, reg *prometheus.Registry, logger *slog.Logger) *node {
	self := overlay.Did(cfg.Self.DID)
	swarm := testoverlay.New(self)
	collector := metrics.NewCollector(reg)

	registry := backend.NewServiceRegistry(serviceEntries(cfg.TCPServices), serviceEntries(cfg.HTTPServices))

	engine := tunnel.NewEngine(swarm, registry.ResolveTCP, logger,
		tunnel.WithDialTimeout(cfg.Tunnel.DialTimeout),
		tunnel.WithMetrics(collector))

	router := backend.NewRouter(logger)
	router.Register(envelope.MessageSimpleText, backend.NewTextEndpoint(backend.LogTextSink{Logger: logger}))
	router.Register(envelope.MessageHTTPRequest, backend.NewHTTPEndpoint(backend.NewServiceHTTPProxy(registry), logger))
	router.Register(envelope.MessageExtension, backend.NewExtensionEndpoint(backend.NoopExtensionSandbox{Logger: logger}))
	router.Register(envelope.MessageTunnel, backend.NewTunnelEndpoint(engine))

	be := backend.New(swarm, router, logger, collector)
	swarm.Register(self, be)

	return &node{swarm: swarm, backend: be, engine: engine, registry: registry, metrics: collector}
}

// serviceEntries adapts a config.ServiceEntry map to the backend package's
// own ServiceEntry type, keeping the config and backend layers free of a
// direct type dependency on each other.
func serviceEntries(cfg map[string]config.ServiceEntry) map[string]backend.ServiceEntry {
	out := make(map[string]backend.ServiceEntry, len(cfg))
	for name, entry := range cfg {
		out[name] = backend.ServiceEntry{Addr: entry.Addr, RegisterService: entry.RegisterService}
	}
	return out
}

// runServers sets up and runs the status and metrics HTTP servers using an
// errgroup with signal-aware context for graceful shutdown.
func runServers(cfg *config.Config, logger *slog.Logger, configPath string, logLevel *slog.LevelVar) error {
	_ = configPath // reserved for a future SIGHUP reload, matching the teacher's reload hook

	reg := prometheus.NewRegistry()
	n := buildNode(cfg, reg, logger)

	statusSrv := newStatusServer(cfg.Status, overlay.Did(cfg.Self.DID), n.registry, n.engine, logger)
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("status server listening", slog.String("addr", cfg.Status.Addr))
		return listenAndServe(gCtx, &lc, statusSrv, cfg.Status.Addr)
	})
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr), slog.String("path", cfg.Metrics.Path))
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, statusSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// newStatusServer builds the admin/status HTTP server, served over
// cleartext HTTP/2 (h2c) so nodectl can multiplex requests without TLS.
func newStatusServer(cfg config.StatusConfig, self overlay.Did, registry *backend.ServiceRegistry, engine *tunnel.Engine, logger *slog.Logger) *http.Server {
	srv := status.New(self, registry, engine, logger)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(srv.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newMetricsServer creates an HTTP server for the Prometheus metrics endpoint.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// listenAndServe creates a TCP listener using the ListenConfig (for noctx
// compliance) and serves HTTP requests until the server is shut down.
func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// gracefulShutdown drains the HTTP servers within shutdownTimeout.
func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// newLoggerWithLevel creates a structured logger using a shared LevelVar
// for dynamic log level changes via a future SIGHUP reload.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
