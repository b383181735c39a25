package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sessionlimit/internal/config"
	"sessionlimit/internal/events"
	"sessionlimit/internal/identity"
	"sessionlimit/internal/lock"
	"sessionlimit/internal/observability/logging"
	"sessionlimit/internal/observability/metrics"
	impl "sessionlimit/internal/service/impl"
	"sessionlimit/internal/store"
	httpx "sessionlimit/internal/transport/http"
	"sessionlimit/pkg/db"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const serviceName = "sessions"

func main() {
	cfg, cfgErr := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)

	if cfgErr != nil {
		logger.Error("invalid configuration", "error", cfgErr)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer, serviceName)

	gdb, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL, Logger: logger})
	if err != nil {
		return err
	}
	st := store.New(gdb)
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	limiter, err := impl.NewSessionLimiter(st.Sessions(),
		impl.LimiterConfig{MaxDevices: cfg.MaxDevicesPerUser, Expiry: cfg.SessionExpiry},
		impl.WithLogger(logger),
		impl.WithPublisher(events.LogPublisher{Logger: logger}),
		impl.WithLocker(locker),
	)
	if err != nil {
		return err
	}
	go limiter.Sweeper().Run(ctx, cfg.SweepInterval)

	router := httpx.NewRouter(limiter, httpx.RouterConfig{
		Logger:             logger,
		Authenticate:       identity.NewVerifier(cfg.JWTSecret, cfg.Issuer, logger).Middleware,
		RequestTimeout:     cfg.RequestTimeout,
		TrustProxy:         cfg.TrustProxy,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("session service listening", "addr", srv.Addr, "max_devices", cfg.MaxDevicesPerUser, "expiry", cfg.SessionExpiry.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, per-user locking is local to this instance")
		return lock.NewLocal(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("using redis for per-user locking", "addr", opts.Addr)
	return lock.NewRedis(client, serviceName+":lock", cfg.LockTTL), func() { _ = client.Close() }, nil
}
