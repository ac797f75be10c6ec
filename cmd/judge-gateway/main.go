package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"judgegate/internal/common/cache"
	"judgegate/internal/common/db"
	"judgegate/internal/common/mq"
	"judgegate/internal/execution/judgeclient"
	"judgegate/internal/execution/language"
	"judgegate/internal/execution/reporter"
	execservice "judgegate/internal/execution/service"
	"judgegate/internal/execution/validator"
	"judgegate/internal/gateway/controller"
	"judgegate/internal/gateway/repository"
	"judgegate/internal/gateway/service"
	"judgegate/pkg/utils/logger"
	"judgegate/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_gateway.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "judge gateway stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()
	response.SetProductionMode(appCfg.IsProduction())
	if appCfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := make(map[string]controller.ReadinessCheck)
	store, closeStore, err := buildCounterStore(appCfg, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := language.Default()
	if len(appCfg.Judge.Languages) > 0 {
		registry = language.NewRegistry(language.Bindings, appCfg.Judge.Languages)
	}

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	telemetry, err := buildSinks(ctx, appCfg, metricsRegistry, checks)
	if err != nil {
		return err
	}
	defer telemetry.close()

	judge, err := judgeclient.New(judgeclient.Config{
		BaseURL:       appCfg.Judge.BaseURL,
		AuthToken:     appCfg.Judge.AuthToken,
		APIKey:        appCfg.Judge.APIKey,
		APIHost:       appCfg.Judge.APIHost,
		Timeout:       appCfg.Judge.Timeout,
		DisableBase64: appCfg.Judge.DisableBase64,
		MaxCodeSize:   appCfg.Limits.MaxCodeSize,
		MaxStdinSize:  appCfg.Limits.MaxStdinSize,
		Transport:     appCfg.Judge.Transport,
	}, registry)
	if err != nil {
		return fmt.Errorf("init judge client failed: %w", err)
	}

	rateService := service.NewRateLimitService(store)
	quotaService := service.NewQuotaService(store, service.QuotaLimits{
		Daily:            appCfg.Quota.Daily,
		Monthly:          appCfg.Quota.Monthly,
		Total:            appCfg.Quota.Total,
		WarningThreshold: appCfg.Quota.WarningThreshold,
	})
	authService := service.NewAuthService(appCfg.Auth.JWTSecret, appCfg.Auth.JWTIssuer)
	if appCfg.Auth.JWTSecret == "" {
		logger.Warn(ctx, "jwt secret not configured, every caller is anonymous")
	}

	executions := execservice.NewExecutionService(
		judge,
		quotaService,
		reporter.New(appCfg.Telemetry.WriteTimeout, telemetry.sinks...),
		appCfg.Judge.Concurrency,
	)
	v := validator.New(validator.Config{
		MaxCodeSize:  appCfg.Limits.MaxCodeSize,
		MaxStdinSize: appCfg.Limits.MaxStdinSize,
		MaxTestCases: appCfg.Limits.MaxTestCases,
	}, registry, nil)

	generalPolicy := service.Policy{Max: appCfg.Rate.General.Max, Window: appCfg.Rate.General.Window}
	executionPolicy := service.Policy{Max: appCfg.Rate.Execution.Max, Window: appCfg.Rate.Execution.Window}

	router := controller.NewRouter(controller.RouterConfig{
		Production:      appCfg.IsProduction(),
		FrontendURL:     appCfg.CORS.FrontendURL,
		MaxBodyBytes:    appCfg.Limits.MaxBodyBytes,
		GeneralPolicy:   generalPolicy,
		ExecutionPolicy: executionPolicy,
	}, controller.RouterDeps{
		Executions: controller.NewExecutionController(executions),
		System: controller.NewSystemController(controller.SystemDeps{
			Environment:     appCfg.Environment,
			Registry:        registry,
			RateLimiter:     rateService,
			Quota:           quotaService,
			GeneralPolicy:   generalPolicy,
			ExecutionPolicy: executionPolicy,
			History:         telemetry.history,
			Checks:          checks,
		}),
		Validator:      v,
		RateLimiter:    rateService,
		Quota:          quotaService,
		Identity:       authService,
		MetricsHandler: metricsHandler(appCfg, metricsRegistry),
	})

	httpServer := &http.Server{
		Addr:           appCfg.Server.Addr,
		Handler:        router,
		ReadTimeout:    appCfg.Server.ReadTimeout,
		WriteTimeout:   appCfg.Server.WriteTimeout,
		IdleTimeout:    appCfg.Server.IdleTimeout,
		MaxHeaderBytes: appCfg.Server.MaxHeaderBytes,
	}

	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "judge gateway started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("environment", appCfg.Environment),
			zap.String("store", appCfg.Store.Backend),
			zap.Strings("languages", registry.Supported()),
		)
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server stopped: %w", err)
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	return serveErr
}

// buildCounterStore returns the shared counter backend for rate limits and quota.
func buildCounterStore(cfg *AppConfig, checks map[string]controller.ReadinessCheck) (repository.CounterStore, func(), error) {
	if cfg.Store.Backend != storeRedis {
		return repository.NewMemoryCounterStore(cfg.Store.Capacity), func() {}, nil
	}
	redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis failed: %w", err)
	}
	checks["redis"] = redisCache
	return repository.NewRedisCounterStore(redisCache, cfg.Store.OpTimeout), func() { _ = redisCache.Close() }, nil
}

type telemetrySinks struct {
	sinks   []reporter.Sink
	// history is nil unless MySQL logging is enabled.
	history controller.ExecutionHistory
	close   func()
}

// buildSinks opens every enabled execution log sink. Closers run in reverse order.
func buildSinks(ctx context.Context, cfg *AppConfig, reg prometheus.Registerer, checks map[string]controller.ReadinessCheck) (*telemetrySinks, error) {
	out := &telemetrySinks{}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	out.close = closeAll

	if !cfg.Telemetry.NoMetrics {
		metrics, err := reporter.NewMetricsSink(reg)
		if err != nil {
			return nil, fmt.Errorf("register execution metrics failed: %w", err)
		}
		out.sinks = append(out.sinks, metrics)
	}

	if cfg.Telemetry.MySQL.Enabled {
		database, err := db.NewMySQLWithConfig(&db.MySQLConfig{DSN: cfg.Telemetry.MySQL.DSN})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init mysql failed: %w", err)
		}
		closers = append(closers, func() { _ = database.Close() })
		checks["mysql"] = database
		logStore := reporter.NewMySQLLogStore(database)
		if cfg.Telemetry.MySQL.EnsureSchema {
			if err := logStore.EnsureSchema(ctx); err != nil {
				closeAll()
				return nil, fmt.Errorf("ensure execution_logs schema failed: %w", err)
			}
		}
		out.sinks = append(out.sinks, logStore)
		out.history = logStore
	}

	if cfg.Telemetry.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(mq.KafkaConfig{
			Brokers:  cfg.Telemetry.Kafka.Brokers,
			ClientID: cfg.Telemetry.Kafka.ClientID,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init kafka failed: %w", err)
		}
		closers = append(closers, func() { _ = producer.Close() })
		checks["kafka"] = producer
		out.sinks = append(out.sinks, reporter.NewKafkaEventSink(producer, cfg.Telemetry.Kafka.Topic))
	}

	if len(out.sinks) == 0 {
		logger.Warn(ctx, "no execution log sinks enabled")
	}
	return out, nil
}

func metricsHandler(cfg *AppConfig, reg *prometheus.Registry) http.Handler {
	if cfg.Telemetry.NoMetrics {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
