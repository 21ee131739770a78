// Package main is the entry point for the balancer.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gmstack/balancer/internal/backend"
	"github.com/gmstack/balancer/internal/config"
	"github.com/gmstack/balancer/internal/health"
	"github.com/gmstack/balancer/internal/metrics"
	"github.com/gmstack/balancer/internal/middleware"
	"github.com/gmstack/balancer/internal/observability"
	"github.com/gmstack/balancer/internal/proxy"
	"github.com/gmstack/balancer/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	configPath, err := config.ResolveConfigPath(flags.configPath)
	if err != nil {
		logger.Fatal("failed to locate configuration", observability.Error(err))
	}

	cfg := loadAndValidateConfig(configPath, logger)
	app := initApplication(cfg, logger)

	runBalancer(app, configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("BALANCER_CONFIG_PATH", "configs/balancer.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("BALANCER_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("BALANCER_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("balancer version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting balancer",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.Int("port", cfg.Listener.Port),
		observability.Int("backends", len(cfg.Backends)),
		observability.String("algorithm", cfg.LoadBalancer.Algorithm),
		observability.Int("admin_port", cfg.Admin.Port),
	)

	return cfg
}

// application holds all application components.
type application struct {
	listener      *server.Listener
	adminListener *server.Listener
	reverseProxy  *proxy.Proxy
	pool          *backend.Pool
	balancer      backend.Balancer
	healthChecker *backend.HealthChecker
	upstream      *backend.Upstream
	checker       *health.Checker
	config        *config.Config
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	pool, err := backend.NewPoolFromConfig(cfg.Backends, backend.WithPoolLogger(logger))
	if err != nil {
		logger.Fatal("failed to build backend pool", observability.Error(err))
	}

	balancer := backend.NewBalancer(cfg.LoadBalancer.Algorithm, pool.Targets())
	upstream := backend.NewUpstream(cfg.Upstream)

	healthChecker := newHealthChecker(pool, cfg.HealthCheck, logger)

	reverseProxy := proxy.New(pool, balancer, upstream, proxy.WithProxyLogger(logger))
	if cfg.CircuitBreaker != nil && cfg.CircuitBreaker.Enabled {
		breaker := backend.NewBreakerTransport(upstream.Transport(), *cfg.CircuitBreaker, logger)
		reverseProxy.WithTransport(breaker)
	}

	handler := buildMiddlewareChain(reverseProxy, cfg, logger)

	checker := health.NewChecker(version)
	checker.RegisterCheck("backends", func() error {
		if len(pool.SelectableTargets()) == 0 {
			return backend.ErrNoAvailableBackend
		}
		return nil
	})

	listener := server.NewListener(cfg.Listener, handler,
		server.WithListenerLogger(logger),
	)
	adminListener := server.NewListener(
		config.Listener{Bind: cfg.Listener.Bind, Port: cfg.Admin.Port},
		buildAdminMux(cfg, checker),
		server.WithListenerLogger(logger),
	)

	return &application{
		listener:      listener,
		adminListener: adminListener,
		reverseProxy:  reverseProxy,
		pool:          pool,
		balancer:      balancer,
		healthChecker: healthChecker,
		upstream:      upstream,
		checker:       checker,
		config:        cfg,
	}
}

// newHealthChecker builds a health checker that keeps the pool gauges
// current as probe verdicts land.
func newHealthChecker(pool *backend.Pool, cfg config.HealthCheck, logger observability.Logger) *backend.HealthChecker {
	metrics.Get().SetPoolGauges(pool.Len(), len(pool.HealthyTargets()))
	return backend.NewHealthChecker(pool.Targets(), cfg,
		backend.WithHealthCheckLogger(logger),
		backend.WithStatusChangeCallback(func(string, bool) {
			metrics.Get().SetPoolGauges(pool.Len(), len(pool.HealthyTargets()))
		}),
	)
}

// buildMiddlewareChain builds the listener middleware chain.
func buildMiddlewareChain(handler http.Handler, cfg *config.Config, logger observability.Logger) http.Handler {
	middlewares := []middleware.Middleware{
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Metrics(),
	}
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		middlewares = append(middlewares,
			middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger))
	}
	return middleware.Chain(handler, middlewares...)
}

// buildAdminMux builds the admin server handler with metrics and
// probe endpoints. A dedicated registry keeps the admin endpoint
// limited to balancer collectors.
func buildAdminMux(cfg *config.Config, checker *health.Checker) http.Handler {
	metricsPath := cfg.Admin.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	registry := prometheus.NewRegistry()
	metrics.Get().MustRegister(registry)

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/health", checker.HealthHandler())
	mux.Handle("/ready", checker.ReadinessHandler())
	mux.Handle("/live", checker.LivenessHandler())
	return mux
}

// runBalancer runs the balancer and handles shutdown.
func runBalancer(app *application, configPath string, logger observability.Logger) {
	ctx := context.Background()

	app.healthChecker.Start(ctx)

	if err := app.listener.Start(ctx); err != nil {
		logger.Fatal("failed to start listener", observability.Error(err))
	}

	if err := app.adminListener.Start(ctx); err != nil {
		logger.Fatal("failed to start admin listener", observability.Error(err))
	}

	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, logger)
}

// startConfigWatcher starts the configuration watcher for hot reload.
func startConfigWatcher(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration changed, reloading")
		if reloadErr := reload(app, newCfg, logger); reloadErr != nil {
			logger.Error("failed to reload configuration", observability.Error(reloadErr))
		}
	}, config.WithLogger(logger))

	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// reload rebuilds the pool, balancer and health checker from the new
// configuration and swaps them into the running proxy. Listener and
// admin ports are not changed at runtime.
func reload(app *application, newCfg *config.Config, logger observability.Logger) error {
	pool, err := backend.NewPoolFromConfig(newCfg.Backends, backend.WithPoolLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to rebuild backend pool: %w", err)
	}

	balancer := backend.NewBalancer(newCfg.LoadBalancer.Algorithm, pool.Targets())

	app.healthChecker.Stop()
	healthChecker := newHealthChecker(pool, newCfg.HealthCheck, logger)
	healthChecker.Start(context.Background())

	app.reverseProxy.Update(pool, balancer)

	app.pool = pool
	app.balancer = balancer
	app.healthChecker = healthChecker
	app.config = newCfg

	app.checker.RegisterCheck("backends", func() error {
		if len(pool.SelectableTargets()) == 0 {
			return backend.ErrNoAvailableBackend
		}
		return nil
	})

	logger.Info("configuration reloaded",
		observability.Int("backends", pool.Len()),
		observability.String("algorithm", balancer.Algorithm()),
	)

	return nil
}

// waitForShutdown waits for a shutdown signal and performs graceful
// shutdown.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.listener.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop listener gracefully", observability.Error(err))
	}

	if err := app.adminListener.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop admin listener gracefully", observability.Error(err))
	}

	app.healthChecker.Stop()
	app.upstream.CloseIdleConnections()

	logger.Info("balancer stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
