package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	appfees "github.com/schoolerp/backend/internal/application/fees"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/auth"
	"github.com/schoolerp/backend/internal/infrastructure/cache"
	"github.com/schoolerp/backend/internal/infrastructure/config"
	"github.com/schoolerp/backend/internal/infrastructure/event"
	"github.com/schoolerp/backend/internal/infrastructure/gateway"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/schoolerp/backend/internal/infrastructure/persistence"
	"github.com/schoolerp/backend/internal/infrastructure/scheduler"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"github.com/schoolerp/backend/internal/interfaces/http/handler"
	"github.com/schoolerp/backend/internal/interfaces/http/middleware"
	"github.com/schoolerp/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting fee ledger service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry: traces and the zap log bridge share the collector endpoint
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	logsProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if logsProvider.IsEnabled() {
		otelCore := logsProvider.ZapCore(cfg.Log.Level)
		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelCore)
		}))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.EnableTracing(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTracingEnabled,
		LogFullSQL:      cfg.Telemetry.LogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to enable database tracing", zap.Error(err))
	}
	log.Info("Database connected")

	// Idempotency store: Redis, with an in-process fallback when Redis is
	// not reachable at startup
	var idemStore shared.IdempotencyStore
	redisStore, err := cache.NewRedisIdempotencyStore(&cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
		idemStore = cache.NewInMemoryIdempotencyStore()
	} else {
		idemStore = redisStore
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}
	defer func() {
		if err := idemStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Payment gateway
	razorpay, err := gateway.NewRazorpayAdapter(&cfg.Gateway)
	if err != nil {
		log.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}

	// Repositories
	templateRepo := persistence.NewGormFeeTemplateRepository(db.DB)
	recordRepo := persistence.NewGormFeeRecordRepository(db.DB)
	txRepo := persistence.NewGormTransactionRepository(db.DB)
	logRepo := persistence.NewGormReconciliationLogRepository(db.DB)
	directory := persistence.NewGormStudentDirectory(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Event bus with the audit subscriber
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewFeeAuditHandler(log))

	// Application services
	templateService := appfees.NewTemplateService(templateRepo, recordRepo, log)
	ledgerService := appfees.NewLedgerService(templateRepo, recordRepo, directory, txScope, eventBus, log)
	collectionService := appfees.NewCollectionService(appfees.CollectionServiceConfig{
		RecordRepo:       recordRepo,
		TransactionRepo:  txRepo,
		Gateway:          razorpay,
		Scope:            txScope,
		IdempotencyStore: idemStore,
		Idempotency:      shared.DefaultIdempotencyConfig(),
		EventPublisher:   eventBus,
		Logger:           log,
	})
	lateFeeService := appfees.NewLateFeeService(recordRepo, eventBus, log)
	reconciliationService := appfees.NewReconciliationService(txRepo, logRepo, razorpay, collectionService, log)
	receiptService := appfees.NewReceiptService(txRepo, log)

	finePolicy, err := scheduler.PolicyFromConfig(&cfg.LateFee)
	if err != nil {
		log.Fatal("Invalid late fee policy configuration", zap.Error(err))
	}

	// Background jobs
	var (
		jobScheduler   *scheduler.Scheduler
		lateFeeTrigger *scheduler.LateFeeCronTrigger
		reconTrigger   *scheduler.ReconcileTrigger
	)
	if cfg.Scheduler.Enabled {
		executor, err := scheduler.NewFeeJobExecutor(lateFeeService, reconciliationService, &cfg.LateFee, log)
		if err != nil {
			log.Fatal("Failed to initialize job executor", zap.Error(err))
		}

		schedConfig := scheduler.DefaultConfig()
		schedConfig.MaxConcurrentJobs = cfg.Scheduler.MaxConcurrentJobs
		schedConfig.JobTimeout = cfg.Scheduler.JobTimeout
		jobScheduler = scheduler.NewScheduler(schedConfig, executor, log)

		if err := jobScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}

		schools := persistence.NewGormSchoolProvider(db.DB)

		cronConfig, err := scheduler.ParseDailyCron(cfg.Scheduler.LateFeeCron)
		if err != nil {
			log.Fatal("Invalid late fee cron spec", zap.Error(err))
		}
		lateFeeTrigger = scheduler.NewLateFeeCronTrigger(cronConfig, jobScheduler, schools, log)
		if err := lateFeeTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start late fee trigger", zap.Error(err))
		}

		reconTrigger = scheduler.NewReconcileTrigger(scheduler.ReconcileTriggerConfig{
			Interval: cfg.Scheduler.ReconcileInterval,
			Lookback: cfg.Scheduler.ReconcileLookback,
		}, jobScheduler, schools, log)
		if err := reconTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start reconciliation trigger", zap.Error(err))
		}

		log.Info("Background scheduler started",
			zap.String("late_fee_cron", cfg.Scheduler.LateFeeCron),
			zap.Duration("reconcile_interval", cfg.Scheduler.ReconcileInterval))
	} else {
		log.Info("Background scheduler disabled")
	}

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		middleware.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.App.Name,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.JWTAuthMiddleware(jwtService),
		middleware.TracingAttributeInjector(),
	)

	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Env, db.Ping)
	r := router.NewRouter(engine)
	r.Register(systemHandler)
	r.Register(handler.NewFeeTemplateHandler(templateService))
	r.Register(handler.NewFeeLedgerHandler(ledgerService))
	r.Register(handler.NewPaymentHandler(collectionService, receiptService, log))
	r.Register(handler.NewAdminHandler(lateFeeService, reconciliationService, finePolicy))
	r.Setup()

	// Bare liveness probe outside the versioned API
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownGracePeriod)
	defer cancel()

	// Stop accepting new HTTP work first, then drain background jobs
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if lateFeeTrigger != nil {
		if err := lateFeeTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Late fee trigger shutdown failed", zap.Error(err))
		}
	}
	if reconTrigger != nil {
		if err := reconTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Reconciliation trigger shutdown failed", zap.Error(err))
		}
	}
	if jobScheduler != nil {
		if err := jobScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler shutdown failed", zap.Error(err))
		}
	}
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Logger provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
