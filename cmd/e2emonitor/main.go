package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sebader/iotedge-end2end/internal/analytics"
	"github.com/sebader/iotedge-end2end/internal/api"
	"github.com/sebader/iotedge-end2end/internal/config"
	"github.com/sebader/iotedge-end2end/internal/dispatcher"
	"github.com/sebader/iotedge-end2end/internal/domain"
	"github.com/sebader/iotedge-end2end/internal/ingestor"
	"github.com/sebader/iotedge-end2end/internal/logging"
	"github.com/sebader/iotedge-end2end/internal/metrics"
	"github.com/sebader/iotedge-end2end/internal/store/postgres"
	"github.com/sebader/iotedge-end2end/internal/tracker"
	"github.com/sebader/iotedge-end2end/internal/transport/channel"
	"github.com/sebader/iotedge-end2end/internal/trigger"

	_ "github.com/lib/pq"
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
	case "config":
		os.Exit(runConfig())
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
	fmt.Println(`e2emonitor - cloud side of the edge-to-cloud verification loop

Usage:
  e2emonitor <command>

Commands:
  serve      Start the dispatcher, ingestor, and round-trip tracker
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DESTINATIONS              Comma-delimited device/module pairs (required)
  HUB_API_URL               Hub REST endpoint for direct methods (required)
  HUB_SAS_TOKEN             Authorization token for the hub (optional)
  MESSAGE_TEXT              Payload text sent each cycle (default: "e2e test message")

  TRIGGER_INTERVAL          Fixed cycle interval (default: "1m")
  TRIGGER_SCHEDULE          Cron expression, overrides TRIGGER_INTERVAL (optional)
  INVOKE_TIMEOUT            Per-call invocation timeout (default: "10s")
  RESPONSE_TIMEOUT          Method response timeout (default: "10s")

  HTTP_ADDR                 HTTP server address (default: ":8080")
  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  REDIS_ADDR                Redis address for observation analytics (optional)
  REDIS_RETENTION           Retention for Redis keys (default: "24h")
  DATABASE_URL              PostgreSQL connection string for outcomes (optional)
  DB_OP_TIMEOUT             Database operation timeout (default: "5s")

  ROUNDTRIP_THRESHOLD       Age before a round trip expires (default: "5m")
  SWEEP_INTERVAL            How often to scan for expired round trips (default: "1m")
  EVENTBUS_BUFFER_SIZE      Trigger buffer size (default: "100")

  TRANSPORT_PROTOCOL        mqtt or amqp (default: "mqtt")
  LOG_LEVEL                 fatal, error, warn, info, debug, verbose (default: "info")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	slog.SetDefault(logging.New(os.Stdout, cfg.LogLevel))
	logger := slog.Default().With("component", "e2emonitor")

	logConfigWarnings(&cfg)

	destinations, err := domain.ParseDestinations(cfg.Destinations)
	if err != nil {
		// Validate already checked this; a failure here is a programming error.
		fmt.Fprintf(os.Stderr, "destination parse error: %v\n", err)
		return exitInvalidConfig
	}
	logger.Info("destination registry loaded", "count", len(destinations))

	// Metrics sink (optional)
	var metricsSink metrics.Sink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		logger.Info("metrics enabled", "port", cfg.MetricsPort, "path", cfg.MetricsPath)

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

	// Outcome store (optional)
	var outcomeStore *postgres.Store
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			return exitRuntimeError
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
			return exitRuntimeError
		}
		outcomeStore = postgres.New(db, cfg.DBOpTimeout)
		logger.Info("outcome store enabled")
	}

	// Round-trip tracker
	trips := tracker.New(tracker.Config{
		Threshold:     cfg.RoundTripThreshold,
		SweepInterval: cfg.SweepInterval,
	}).WithMetrics(metricsSink)

	// Dispatcher
	invoker := dispatcher.NewHTTPMethodInvoker(cfg.HubAPIURL, cfg.HubSASToken)
	disp := dispatcher.New(invoker).
		WithTimeouts(cfg.InvokeTimeout, cfg.ResponseTimeout).
		WithMessageText(cfg.MessageText).
		WithTracker(trips).
		WithMetrics(metricsSink)
	if outcomeStore != nil {
		disp = disp.WithStore(outcomeStore)
	}

	// Ingestor
	ing := ingestor.New().
		WithTracker(trips).
		WithMetrics(metricsSink)
	if outcomeStore != nil {
		ing = ing.WithStore(outcomeStore)
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ing = ing.WithSink(analytics.NewRedisSink(redisClient, cfg.RedisRetention))
		logger.Info("observation analytics enabled", "redis", cfg.RedisAddr)
	}

	// Trigger: cron schedule takes precedence over the fixed interval.
	triggerConfig := trigger.Config{Interval: cfg.TriggerInterval}
	if cfg.TriggerSchedule != "" {
		sched, err := trigger.NewParser().Parse(cfg.TriggerSchedule)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid TRIGGER_SCHEDULE: %v\n", err)
			return exitInvalidConfig
		}
		triggerConfig.Schedule = sched
	}

	bus := channel.NewEventBus(cfg.EventBusBufferSize, channel.WithMetrics(metricsSink))
	trig := trigger.New(triggerConfig, bus)

	// API server
	apiHandler := api.NewHandler(ing, trips)
	if db != nil {
		apiHandler = apiHandler.WithHealthChecker(db)
	}
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	// Separate contexts enable ordered shutdown: trigger first (no new
	// cycles), then dispatcher (waits for in-flight cycles), then tracker.
	triggerCtx, cancelTrigger := context.WithCancel(context.Background())
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	trackerCtx, cancelTracker := context.WithCancel(context.Background())

	var triggerWg, dispatcherWg, trackerWg sync.WaitGroup

	triggerWg.Add(1)
	go func() {
		defer triggerWg.Done()
		trig.Run(triggerCtx)
	}()

	dispatcherWg.Add(1)
	go func() {
		defer dispatcherWg.Done()
		disp.Run(dispatcherCtx, bus.Channel(), destinations)
	}()

	trackerWg.Add(1)
	go func() {
		defer trackerWg.Done()
		trips.Run(trackerCtx)
	}()

	logger.Info("started",
		"destinations", len(destinations),
		"interval", cfg.TriggerInterval.String(),
		"protocol", cfg.TransportProtocol,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	logger.Info("received signal, shutting down", "signal", received.String())

	cancelTrigger()
	triggerWg.Wait()

	cancelDispatcher()
	dispatcherWg.Wait()

	cancelTracker()
	trackerWg.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}

	if metricsServer != nil {
		metricsShutdownCtx, cancelMetricsShutdown := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancelMetricsShutdown()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}

	logger.Info("stopped")
	return exitSuccess
}

// logConfigWarnings surfaces configurations that run but lose data or
// visibility, so operators see the tradeoff at startup.
func logConfigWarnings(cfg *config.Config) {
	logger := slog.Default()

	if !cfg.MetricsEnabled {
		logger.Warn("METRICS_ENABLED not set; invocation and round-trip counters will not be exported")
	}
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; outcomes will not be persisted")
	}
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set; observation analytics disabled")
	}
	if cfg.TriggerSchedule != "" {
		logger.Info("TRIGGER_SCHEDULE set; TRIGGER_INTERVAL ignored", "schedule", cfg.TriggerSchedule)
	}
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("e2emonitor version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
