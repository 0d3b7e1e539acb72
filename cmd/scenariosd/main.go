package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mikoczy/crm-scenarios-module/internal/analytics"
	"github.com/mikoczy/crm-scenarios-module/internal/api"
	"github.com/mikoczy/crm-scenarios-module/internal/capability"
	"github.com/mikoczy/crm-scenarios-module/internal/circuitbreaker"
	"github.com/mikoczy/crm-scenarios-module/internal/config"
	"github.com/mikoczy/crm-scenarios-module/internal/consumer"
	"github.com/mikoczy/crm-scenarios-module/internal/dispatcher"
	"github.com/mikoczy/crm-scenarios-module/internal/handler"
	"github.com/mikoczy/crm-scenarios-module/internal/leaderelection"
	"github.com/mikoczy/crm-scenarios-module/internal/metrics"
	"github.com/mikoczy/crm-scenarios-module/internal/reconciler"
	"github.com/mikoczy/crm-scenarios-module/internal/store/postgres"
	"github.com/mikoczy/crm-scenarios-module/internal/transport/channel"
	"github.com/mikoczy/crm-scenarios-module/internal/transport/redisqueue"
	"github.com/mikoczy/crm-scenarios-module/internal/worker"

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
	fmt.Println(`scenariosd - event-driven scenario job engine

Usage:
  scenariosd <command>

Commands:
  serve      Start the event consumer, job worker, and HTTP API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL               PostgreSQL connection string (required)
  REDIS_ADDR                 Redis address (required for redis transport and analytics)
  HTTP_ADDR                  HTTP server address (default: ":8080", falls back to PORT)

  TRANSPORT_MODE             Event transport: "channel" or "redis" (default: "channel")
  QUEUE_NAME                 Redis queue name (default: "scenarios_events")
  BUS_BUFFER_SIZE            In-memory bus buffer size (default: "100")

  DB_MAX_OPEN_CONNS          Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS          Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME       Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME      Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT      Graceful HTTP shutdown timeout (default: "10s")
  CONSUMER_DRAIN_TIMEOUT     Consumer message drain timeout (default: "30s")

  METRICS_ENABLED            Enable Prometheus metrics (default: "false")
  METRICS_PATH               Metrics endpoint path (default: "/metrics")

  WORKER_ENABLED             Enable the job worker (default: "true")
  WORKER_POLL_INTERVAL       How often the worker polls for jobs (default: "1s")
  WORKER_BATCH_SIZE          Max jobs per worker cycle (default: "100")

  RECONCILE_ENABLED          Enable the backlog reconciler (default: "false")
  RECONCILE_INTERVAL         How often to export backlog gauges (default: "1m")
  RECONCILE_STALE_THRESHOLD  Age before a started job counts as stale (default: "10m")

  LEADER_LOCK_KEY            Advisory lock key for leader election (default: "917465")
  LEADER_RETRY_INTERVAL      Follower lock retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL  Leader connection ping interval (default: "2s")

  CIRCUIT_BREAKER_THRESHOLD  Failures before the analytics breaker opens, 0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN   Breaker cooldown before retry (default: "2m")

  ANALYTICS_ENABLED          Enable Redis analytics counters (default: "false")
  ANALYTICS_WINDOW           Analytics bucket window (default: "1m")
  ANALYTICS_RETENTION        Analytics key TTL (default: "24h")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("scenariosd: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	if err := postgres.Migrate(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		return exitRuntimeError
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("scenariosd: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("scenariosd: METRICS_ENABLED not set; metrics disabled")
	}

	// Connect to Redis if anything needs it
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	store := postgres.New(db)

	// Wire analytics counters if enabled
	if cfg.AnalyticsEnabled {
		sink := analytics.NewRedisSink(redisClient, cfg.AnalyticsWindow, cfg.AnalyticsRetention)
		if cfg.CircuitBreakerThreshold > 0 {
			sink = sink.WithBreaker(circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
			log.Printf("scenariosd: analytics breaker enabled (threshold=%d, cooldown=%s)",
				cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		}
		store = store.WithAnalytics(sink)
		log.Printf("scenariosd: analytics enabled (redis=%s, window=%s, retention=%s)",
			cfg.RedisAddr, cfg.AnalyticsWindow, cfg.AnalyticsRetention)
	} else {
		log.Println("scenariosd: ANALYTICS_ENABLED not set; analytics disabled")
	}

	disp := dispatcher.New(store, store)
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}

	cons := consumer.New(
		handler.NewTestUserHandler(disp),
		handler.NewUserCreatedHandler(disp),
		handler.NewNewSubscriptionHandler(disp, store),
	).WithDrainTimeout(cfg.ConsumerDrainTimeout)
	if metricsSink != nil {
		cons = cons.WithMetrics(metricsSink)
	}

	capabilities := capability.NewRegistry()
	cons.RegisterCapabilities(capabilities)

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	var consumerWg sync.WaitGroup

	// Select the event transport
	var emitter api.Emitter
	switch cfg.TransportMode {
	case "redis":
		queue := redisqueue.New(redisClient, cfg.QueueName)
		emitter = queue
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			queue.Consume(consumerCtx, cons)
		}()
		log.Printf("scenariosd: redis transport enabled (queue=%s)", cfg.QueueName)
	default:
		var busOpts []channel.Option
		if metricsSink != nil {
			busOpts = append(busOpts, channel.WithMetrics(metricsSink))
		}
		bus := channel.NewMessageBus(cfg.BusBufferSize, busOpts...)
		emitter = bus
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			cons.Run(consumerCtx, bus.Channel())
		}()
		log.Printf("scenariosd: channel transport enabled (buffer=%d)", cfg.BusBufferSize)
	}

	// Singleton background duties run only on the elected leader.
	var wrk *worker.Worker
	if cfg.WorkerEnabled {
		wrk = worker.New(store, worker.LoggingExecutor{}, cfg.WorkerPollInterval, cfg.WorkerBatchSize)
		if metricsSink != nil {
			wrk = wrk.WithMetrics(metricsSink)
		}
		wrk.RegisterCapabilities(capabilities)
	} else {
		log.Println("scenariosd: WORKER_ENABLED set to false; job worker disabled")
	}

	var recon *reconciler.Reconciler
	if cfg.ReconcileEnabled {
		var reconSink metrics.Sink = metrics.NewNoopSink()
		if metricsSink != nil {
			reconSink = metricsSink
		}
		recon = reconciler.New(reconciler.Config{
			Interval:       cfg.ReconcileInterval,
			StaleThreshold: cfg.ReconcileStaleThreshold,
		}, store, reconSink)
	} else {
		log.Println("scenariosd: RECONCILE_ENABLED not set; reconciler disabled")
	}

	electorCtx, cancelElector := context.WithCancel(context.Background())
	var electorWg sync.WaitGroup

	if wrk != nil || recon != nil {
		var dutiesMu sync.Mutex
		var dutiesWg *sync.WaitGroup

		onLead := func(ctx context.Context) {
			wg := &sync.WaitGroup{}
			dutiesMu.Lock()
			dutiesWg = wg
			dutiesMu.Unlock()

			if wrk != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					wrk.Run(ctx)
				}()
			}
			if recon != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					recon.Run(ctx)
				}()
			}
		}
		onYield := func() {
			dutiesMu.Lock()
			wg := dutiesWg
			dutiesWg = nil
			dutiesMu.Unlock()
			if wg != nil {
				wg.Wait()
			}
		}

		elector := leaderelection.New(db, leaderelection.Config{
			LockKey:           cfg.LeaderLockKey,
			RetryInterval:     cfg.LeaderRetryInterval,
			HeartbeatInterval: cfg.LeaderHeartbeatInterval,
		}, onLead, onYield)
		if metricsSink != nil {
			elector = elector.WithMetrics(metricsSink)
		}

		electorWg.Add(1)
		go func() {
			defer electorWg.Done()
			elector.Run(electorCtx)
		}()
	}

	// HTTP server: API plus optional metrics endpoint on the same mux
	apiHandler := api.NewHandler(store, emitter).
		WithHealthChecker(db).
		WithCapabilities(capabilities)

	mux := http.NewServeMux()
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("scenariosd: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("scenariosd: http server error: %v", err)
		}
	}()

	log.Printf("scenariosd: started (transport=%s, http=%s)", cfg.TransportMode, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("scenariosd: received signal %v, shutting down", received)

	// Phase 1: Stop HTTP server so no new events are accepted
	log.Println("scenariosd: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("scenariosd: http server shutdown error: %v", err)
	}
	log.Println("scenariosd: http server stopped")

	// Phase 2: Stop the consumer (will drain buffered messages before returning)
	log.Println("scenariosd: stopping consumer (draining messages)...")
	cancelConsumer()
	consumerWg.Wait()
	log.Println("scenariosd: consumer stopped")

	// Phase 3: Stop the leader duties (worker, reconciler)
	log.Println("scenariosd: stopping leader election...")
	cancelElector()
	electorWg.Wait()
	log.Println("scenariosd: leader election stopped")

	log.Println("scenariosd: stopped")
	return exitSuccess
}

// logConfigWarnings logs warnings about configuration combinations that are
// valid but operationally hazardous.
func logConfigWarnings(cfg *config.Config) {
	if !cfg.WorkerEnabled {
		log.Println("WARNING [P0]: WORKER_ENABLED=false: created jobs will never execute on this instance. " +
			"Only disable the worker when another instance runs it.")
	}

	if cfg.TransportMode == "channel" {
		log.Println("WARNING [P1]: TRANSPORT_MODE=channel: accepted events are buffered in memory and lost on crash. " +
			"Use TRANSPORT_MODE=redis for durable delivery.")
	}

	if !cfg.ReconcileEnabled {
		log.Println("WARNING [P1]: RECONCILE_ENABLED=false: jobs stuck in started will go unnoticed. " +
			"Enable the reconciler to export backlog and staleness gauges.")
	}

	if cfg.AnalyticsEnabled && cfg.CircuitBreakerThreshold == 0 {
		log.Println("WARNING [P2]: ANALYTICS_ENABLED=true with CIRCUIT_BREAKER_THRESHOLD=0: " +
			"every job write will retry Redis even during an outage.")
	}

	if !cfg.MetricsEnabled {
		log.Println("WARNING [P2]: METRICS_ENABLED=false: no visibility into dispatch rates or job backlog.")
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
	fmt.Printf("scenariosd version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
