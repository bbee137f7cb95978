package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/skylane/skylane/config"
	"github.com/skylane/skylane/pkg/alert"
	"github.com/skylane/skylane/pkg/api"
	"github.com/skylane/skylane/pkg/api/events"
	"github.com/skylane/skylane/pkg/api/handlers"
	"github.com/skylane/skylane/pkg/dispatch"
	"github.com/skylane/skylane/pkg/logger"
	"github.com/skylane/skylane/pkg/metrics"
	"github.com/skylane/skylane/pkg/remote"
	"github.com/skylane/skylane/pkg/remote/grpcport"
	"github.com/skylane/skylane/pkg/saga"
	"github.com/skylane/skylane/pkg/telemetry/tracing"
	"github.com/skylane/skylane/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	// Initialize logger with configuration
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Skylane",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("Error shutting down tracing", "error", err)
		}
	}()

	// Initialize the saga run store and WAL
	store, wal, err := openStorage(cfg, log)
	if err != nil {
		log.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize the idempotency store
	var idem saga.IdempotencyStore
	if cfg.Storage.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Error("Failed to connect to Redis", "address", cfg.Storage.Redis.Address, "error", err)
			os.Exit(1)
		}
		idem = saga.NewRedisIdempotencyStore(client, cfg.App.Name, cfg.Storage.Redis.IdempotencyTTL)
		defer client.Close()
		log.Info("Initialized Redis idempotency store", "address", cfg.Storage.Redis.Address)
	} else {
		idem = saga.NewMemoryIdempotencyStore()
		log.Info("Initialized memory idempotency store")
	}

	// Initialize metrics manager
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Port = cfg.Metrics.Port
	metricsCfg.Path = cfg.Metrics.Path
	metricsManager := metrics.NewManager(metricsCfg)

	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Initialize the saga orchestrator
	orch := saga.NewOrchestrator(
		saga.WithStore(store),
		saga.WithWAL(wal),
		saga.WithIdempotencyStore(idem),
		saga.WithRetryClassifier(dispatch.RetryClassifier),
		saga.WithMetrics(metricsManager),
		saga.WithMaxConcurrentSagas(cfg.Saga.MaxConcurrent),
	)
	defer func() {
		if err := orch.Close(); err != nil {
			log.Error("Error closing orchestrator", "error", err)
		}
	}()

	// Dial the remote services
	ports, closePorts, err := dialRemotes(cfg, metricsManager)
	if err != nil {
		log.Error("Failed to connect to remote services", "error", err)
		os.Exit(1)
	}
	defer closePorts()

	// Wire the dispatch facade
	broadcaster := events.NewBroadcaster()
	defer broadcaster.Close()

	service, err := dispatch.NewService(ports, orch,
		dispatch.WithLogger(log.Slog()),
		dispatch.WithAlertNotifier(alert.FanOut{alert.NewLogNotifier(log.Slog()), metricsManager, broadcaster}),
		dispatch.WithEventPublisher(broadcaster),
		dispatch.WithStepRetry(cfg.Saga.StepRetry.ToRetryPolicy()),
		dispatch.WithCompensationRetry(cfg.Saga.CompensationRetry.ToRetryPolicy()),
		dispatch.WithDroneReleaseRetry(cfg.Saga.DroneReleaseRetry.ToRetryPolicy()),
		dispatch.WithStepTimeout(cfg.Saga.StepTimeout),
		dispatch.WithWorkflowTimeout(cfg.Saga.Timeout),
	)
	if err != nil {
		log.Error("Failed to create dispatch service", "error", err)
		os.Exit(1)
	}

	// Resume sagas a previous process left unfinished
	recovery, err := saga.NewRecoveryManager(orch, service.Definitions(), log.Slog())
	if err != nil {
		log.Error("Failed to create recovery manager", "error", err)
		os.Exit(1)
	}
	report, err := recovery.Recover(ctx)
	if err != nil {
		log.Error("Saga recovery failed", "error", err)
		os.Exit(1)
	}
	if report.Resumed > 0 || report.Failed > 0 || report.Skipped > 0 {
		log.Info("Saga recovery finished",
			"resumed", report.Resumed,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	}

	// Initialize HTTP server with handlers
	wsHandler := handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.WebSocket.AllowedOrigins,
		MaxConnections: cfg.Server.WebSocket.MaxConnections,
	})
	go wsHandler.Listen(ctx, broadcaster)
	defer wsHandler.Close()

	apiHandlers := &api.Handlers{
		Delivery: handlers.NewDeliveryHandler(service, log),
		Runs:     handlers.NewRunsHandler(orch, log),
		Health:   handlers.NewHealthHandler(store),
		Events:   wsHandler,
	}
	if metricsManager.Enabled() {
		apiHandlers.Metrics = metricsManager
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	// Hot-reload the logging settings when the config file changes. Other
	// settings need a restart; the watcher logs what it rejected.
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, config.NewLoader())
		if err != nil {
			log.Warn("config watching disabled", "error", err)
		} else {
			hot := config.ExtractHotReloadable(cfg)
			watcher.OnChange(func(next *config.Config) {
				nextHot := config.ExtractHotReloadable(next)
				if !hot.Changed(nextHot) {
					return
				}
				if nextHot.LogLevel != hot.LogLevel || nextHot.LogFormat != hot.LogFormat {
					logger.SetGlobal(logger.New(&logger.Config{
						Level:  logger.ParseLevel(nextHot.LogLevel),
						Format: nextHot.LogFormat,
						Output: next.Log.Output,
					}))
					log.Info("log settings reloaded",
						"level", nextHot.LogLevel,
						"format", nextHot.LogFormat,
					)
				}
				hot = nextHot
			})
			go func() {
				if err := watcher.Watch(ctx); err != nil && err != context.Canceled {
					log.Warn("config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("Skylane is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
	)
	log.Info("Press Ctrl+C to stop")

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	log.Info("Skylane stopped gracefully")
}

// openStorage builds the run store and WAL from the storage configuration.
// With Badger the WAL shares the store's database unless a separate WAL path
// is configured.
func openStorage(cfg *config.Config, log logger.Logger) (saga.Store, saga.WAL, error) {
	switch cfg.Storage.Type {
	case "badger":
		store, err := saga.OpenBadgerStore(cfg.Storage.Badger.Path)
		if err != nil {
			return nil, nil, err
		}
		walPath := cfg.Storage.Badger.WALPath
		if walPath == "" || walPath == cfg.Storage.Badger.Path {
			wal, err := saga.NewBadgerWAL(store.DB())
			if err != nil {
				store.Close()
				return nil, nil, err
			}
			log.Info("Initialized Badger storage", "path", cfg.Storage.Badger.Path)
			return store, wal, nil
		}
		wal, err := saga.OpenBadgerWAL(walPath)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		log.Info("Initialized Badger storage", "path", cfg.Storage.Badger.Path, "wal_path", walPath)
		return store, wal, nil
	case "memory":
		log.Info("Initialized memory storage")
		return saga.NewMemoryStore(), saga.NewMemoryWAL(), nil
	default:
		log.Warn("Unknown storage type, using memory storage", "type", cfg.Storage.Type)
		return saga.NewMemoryStore(), saga.NewMemoryWAL(), nil
	}
}

// dialRemotes connects to the five downstream services and wraps each
// connection in its port client.
func dialRemotes(cfg *config.Config, rec grpcport.CallRecorder) (remote.Services, func(), error) {
	endpoints := []struct {
		name string
		cfg  *config.EndpointConfig
	}{
		{"account", &cfg.Remote.Account},
		{"delivery", &cfg.Remote.Delivery},
		{"package", &cfg.Remote.Package},
		{"transportation", &cfg.Remote.Transportation},
		{"drone", &cfg.Remote.Drone},
	}

	conns := make([]*grpc.ClientConn, 0, len(endpoints))
	closeAll := func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}

	for _, endpoint := range endpoints {
		opts := endpoint.cfg.ToDialOptions()
		if rec != nil {
			opts.DialOptions = append(opts.DialOptions, grpcport.WithCallMetrics(rec))
		}
		conn, err := grpcport.Dial(opts)
		if err != nil {
			closeAll()
			return remote.Services{}, nil, fmt.Errorf("dial %s service at %s: %w", endpoint.name, endpoint.cfg.Address, err)
		}
		conns = append(conns, conn)
	}

	services := remote.Services{
		Accounts:   grpcport.NewAccountClient(conns[0]),
		Deliveries: grpcport.NewDeliveryClient(conns[1]),
		Packages:   grpcport.NewPackageClient(conns[2]),
		Transports: grpcport.NewTransportClient(conns[3]),
		Drones:     grpcport.NewDroneClient(conns[4]),
	}
	return services, closeAll, nil
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Skylane - Delivery Saga Coordinator\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Skylane - Saga coordinator for drone delivery workflows\n\n")
	fmt.Printf("Usage: skylane [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  skylane                                   # Run with default config\n")
	fmt.Printf("  skylane -config config.yaml               # Use specific config file\n")
	fmt.Printf("  skylane -port 9090 -log-level debug       # Override specific options\n")
	fmt.Printf("  skylane -version                          # Print version info\n")
}
