package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"agendafacil/internal/api"
	"agendafacil/internal/availability"
	"agendafacil/internal/booking"
	"agendafacil/internal/config"
	"agendafacil/internal/database"
	"agendafacil/internal/database/postgres"
	"agendafacil/internal/events"
	"agendafacil/internal/export"
	"agendafacil/internal/hourscache"
	"agendafacil/internal/manager"
	"agendafacil/internal/memstore"
	"agendafacil/internal/metrics"
)

// store is everything the services need from the record store.
type store interface {
	booking.Store
	manager.Store
	export.Source
}

type pingFunc func(ctx context.Context) error

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(os.Getenv("AGENDA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.App.LogLevel); err == nil && cfg.App.LogLevel != "" {
		logger = logger.Level(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	location, _ := cfg.Location()
	initialStatus, _ := cfg.InitialStatus()
	policy := availability.Policy{
		PendingBlocksSlot: cfg.PendingBlocksSlot(),
		DefaultDuration:   cfg.DefaultDuration(),
	}

	records, ping, closeStore, err := openStore(ctx, cfg, policy, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("open store error")
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	bus := events.NewEventBus()
	bus.OnError(func(e events.Event, err error) {
		logger.Error().Err(err).Str("event", e.Type).Str("business_id", e.BusinessID).Msg("event handler failed")
	})
	for _, t := range []string{events.BookingCreated, events.BookingStatusChanged, events.BlockChanged, events.WorkingHoursChanged} {
		bus.Subscribe(t, func(e events.Event) error {
			logger.Debug().Str("event", e.Type).Str("business_id", e.BusinessID).RawJSON("payload", e.Payload).Msg("event")
			return nil
		})
	}

	bookings := booking.NewService(records, booking.Config{
		Policy:        policy,
		InitialStatus: initialStatus,
		Location:      location,
	}, logger)
	mgr := manager.NewService(records, logger)
	bookings.UseEvents(bus)
	mgr.UseEvents(bus)

	limits := booking.RateLimitConfig{MaxBookings: cfg.RateLimitMax(), Window: cfg.RateLimitWindow()}
	if rdb != nil {
		cache := hourscache.NewRedisCache(rdb, cfg.CacheTTL(), "")
		bookings.UseHoursCache(cache)
		mgr.UseHoursCache(cache)
		bookings.UseRateLimiter(booking.NewRedisRateLimiter(rdb, limits, ""))
	} else {
		cache := hourscache.NewMemoryCache(cfg.CacheTTL())
		bookings.UseHoursCache(cache)
		mgr.UseHoursCache(cache)
		bookings.UseRateLimiter(booking.NewMemoryRateLimiter(limits))
	}

	err = config.WatchBusinesses(ctx, cfg.BusinessesFile(), cfg.BusinessesWatchInterval(), logger, mgr.SyncFromConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("load businesses config error")
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, ping, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	handler := api.New(api.Config{
		Booking:        bookings,
		Manager:        mgr,
		Export:         records,
		ManagerAPIKey:  cfg.HTTP.ManagerAPIKey,
		RequestsPerSec: cfg.HTTP.RequestsPerSec,
		Burst:          cfg.HTTP.Burst,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("addr", srv.Addr).Str("driver", cfg.Database.Driver).Msg("agenda API started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("api server error")
	}
	logger.Info().Msg("agenda API stopped")
}

// openStore selects the record store from database.driver. SQLite also
// starts the periodic backup.
func openStore(ctx context.Context, cfg *config.Config, policy availability.Policy, logger *zerolog.Logger) (store, pingFunc, func(), error) {
	holding := policy.HoldingStatuses()
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
		if err != nil {
			return nil, nil, nil, err
		}
		s := postgres.NewStore(pool, holding)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return s, pool.Ping, pool.Close, nil
	case "memory":
		return memstore.New(holding), func(context.Context) error { return nil }, func() {}, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, holding)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.Backup.Enabled {
			go database.NewBackupService(db, cfg.Backup, logger).Start(ctx)
		}
		return db, db.PingContext, func() { _ = db.Close() }, nil
	}
}

func startHealthServer(ctx context.Context, port int, ping pingFunc, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := ping(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
