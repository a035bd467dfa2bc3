package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-appointment-booking/internal/api"
	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/config"
	"github.com/hackgods/clinic-appointment-booking/internal/db"
	"github.com/hackgods/clinic-appointment-booking/internal/identity"
	"github.com/hackgods/clinic-appointment-booking/internal/observability/metrics"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	redisclient "github.com/hackgods/clinic-appointment-booking/internal/redis"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
	"github.com/hackgods/clinic-appointment-booking/pkg/logging"
)

var version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server", "env", cfg.Env)
	logger.Info("configuration loaded",
		"http_port", cfg.HTTPPort,
		"storage_backend", cfg.StorageBackend,
		"redis_enabled", cfg.RedisEnabled,
		"timezone", cfg.Location.String(),
		"lock_ttl", cfg.LockTTL.String(),
		"lock_wait", cfg.LockWait.String(),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		deps         []api.Dependency
		providerRepo provider.Repository
		apptRepo     appointment.Repository
	)

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatalf("postgres connection error: %v", err)
		}
		defer pgPool.Close()
		logger.Info("connected to Postgres")

		providerRepo = provider.NewPgRepository(pgPool)
		apptRepo = appointment.NewPgRepository(pgPool)
		deps = append(deps, api.Dependency{Name: "postgres", Check: pgPool})
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		providerRepo = provider.NewMemoryRepository()
		apptRepo = appointment.NewMemoryRepository()
	}

	locker := redisclient.NewLocalSlotLocker()
	if cfg.RedisEnabled {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("redis connection error: %v", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error("error closing redis", "error", err.Error())
			}
		}()
		logger.Info("connected to Redis", "addr", cfg.RedisAddr)

		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait)
		// Readiness only degrades; bookings return 503 while Redis is down.
		deps = append(deps, api.Dependency{Name: "redis", Check: api.PingFunc(redisclient.Ping(rdb)), Optional: true})
	}

	var (
		bookingMetrics *metrics.BookingMetrics
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		bookingMetrics = metrics.NewBookingMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	clock := schedule.SystemClock{Location: cfg.Location}
	providers := provider.NewService(providerRepo, logger.With("component", "provider"))
	appointments := appointment.NewService(apptRepo, providerRepo, locker, clock, logger.With("component", "appointment"), bookingMetrics)

	router := api.NewRouter(api.RouterConfig{
		Appointments: appointments,
		Providers:    providers,
		Verifier:     identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Logger:       logger,
		Dependencies: deps,
		Metrics:      metricsHandler,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		logger.Error("http server failed", "error", err.Error())
	}

	logger.Info("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err.Error())
	}
}
