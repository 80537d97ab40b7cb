package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sebader/iotedge-end2end/internal/config"
	"github.com/sebader/iotedge-end2end/internal/connmonitor"
	"github.com/sebader/iotedge-end2end/internal/domain"
	"github.com/sebader/iotedge-end2end/internal/edgeclient"
	"github.com/sebader/iotedge-end2end/internal/handler"
	"github.com/sebader/iotedge-end2end/internal/logging"
	"github.com/sebader/iotedge-end2end/internal/metrics"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`messageforwarder - edge side of the edge-to-cloud verification loop

Serves the NewMessageRequest direct method: each call is forwarded to the
hub as a message stamped with the caller's correlation id. Exits with code 3
when the transport connection is unrecoverable, so a supervisor can restart
the module from a clean state.

Usage:
  messageforwarder <command>

Commands:
  serve      Start the method listener and connection monitor
  validate   Validate configuration (no connections made)
  version    Print version information

Environment Variables:
  EDGE_LISTEN_ADDR          Method listener address (default: ":8081")
  HUB_INGEST_URL            Hub ingest endpoint for forwarded messages (required)
  FORWARD_TIMEOUT           Per-forward timeout (default: "10s")
  CONN_FAILURE_THRESHOLD    Consecutive forward failures before the
                            connection is reported unrecoverable (default: "5",
                            "0" disables)

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  TRANSPORT_PROTOCOL        mqtt or amqp (default: "mqtt")
  LOG_LEVEL                 fatal, error, warn, info, debug, verbose (default: "info")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.ValidateEdge(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	slog.SetDefault(logging.New(os.Stdout, cfg.LogLevel))
	logger := slog.Default().With("component", "messageforwarder")

	var metricsSink metrics.Sink
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			logger.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	} else {
		metricsSink = metrics.NewNoopSink()
	}

	// Transport wiring: the sender reports forward results into the status
	// feed; the monitor consumes the feed and owns the fail-stop decision.
	feed := edgeclient.NewStatusFeed(16)
	health := edgeclient.NewConnectionHealth(cfg.ConnFailureThreshold, feed)
	sender := edgeclient.NewHubSender(cfg.HubIngestURL, cfg.ForwardTimeout).WithHealth(health)

	h := handler.New(sender).WithMetrics(metricsSink)
	listener := edgeclient.NewListener(cfg.EdgeListenAddr, h)

	monitor := connmonitor.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(ctx, feed.Changes())
	}()

	listenerErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Listen(ctx); err != nil {
			listenerErr <- err
		}
	}()

	feed.Notify(domain.ConnectionConnected, "connection established")

	logger.Info("started",
		"listen", cfg.EdgeListenAddr,
		"hub", cfg.HubIngestURL,
		"protocol", cfg.TransportProtocol,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case received := <-sig:
		logger.Info("received signal, shutting down", "signal", received.String())
	case err := <-listenerErr:
		logger.Error("listener failed", "error", err)
		cancel()
		wg.Wait()
		return exitRuntimeError
	}

	cancel()
	wg.Wait()

	if metricsServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancelShutdown()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}

	logger.Info("stopped", "invocations_served", h.Invocations())
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.ValidateEdge(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("messageforwarder version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
