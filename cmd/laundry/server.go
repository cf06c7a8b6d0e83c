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

	"github.com/antonminaichev/laundry-booking/internal/booking"
	"github.com/antonminaichev/laundry-booking/internal/gateway"
	"github.com/antonminaichev/laundry-booking/internal/lock"
	"github.com/antonminaichev/laundry-booking/internal/logger"
	"github.com/antonminaichev/laundry-booking/internal/middleware"
	"github.com/antonminaichev/laundry-booking/internal/mq"
	"github.com/antonminaichev/laundry-booking/internal/payment"
	"github.com/antonminaichev/laundry-booking/internal/router"
	"github.com/antonminaichev/laundry-booking/internal/storage"
	"github.com/antonminaichev/laundry-booking/internal/storage/memory"
	"github.com/antonminaichev/laundry-booking/internal/storage/postgres"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		logger.Log.Fatal().Err(err).Msg("server failed")
	}
}

func run() error {
	cfg, err := NewConfig()
	if err != nil {
		return err
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStorage(ctx, cfg.DatabaseConnection)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("failed to close storage")
		}
	}()

	locker, closeLocker, err := newLocker(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer closeLocker()

	var events mq.Publisher = mq.Nop{}
	if cfg.RabbitURL != "" {
		pub, err := mq.NewRabbitPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		events = pub
	} else {
		logger.Log.Info().Msg("RABBIT_URL not set, domain events are dropped")
	}

	gw := gateway.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.AppURL, cfg.Currency, cfg.PaystackTimeout)

	bookingSvc := booking.NewService(store, gw, events)
	bookingHandler := booking.NewHandler(bookingSvc)

	proc := payment.NewProcessor(bookingSvc, store, locker, events)
	paymentHandler := payment.NewHandler(proc, gw)

	r := router.NewRouter(
		bookingHandler,
		paymentHandler,
		[]byte(cfg.JWTSecret),
		cfg.PaystackSecretKey,
		middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2*cfg.PaystackTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.ReconcileInterval > 0 {
		go payment.DispatcherLoop(
			ctx,
			gw,
			store,
			proc,
			cfg.ReconcileWorkers,
			cfg.ReconcilePageSize,
			cfg.ReconcileInterval,
		)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	logger.Log.Info().Msg("shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Log.Info().Msg("server stopped gracefully")
	return nil
}

func openStorage(ctx context.Context, dsn string) (storage.Storage, error) {
	if dsn == "" {
		logger.Log.Warn().Msg("DATABASE_URI not set, using in-memory storage")
		return memory.New(), nil
	}
	store, err := postgres.NewPostgresStorage(dsn)
	if err != nil {
		return nil, fmt.Errorf("init postgres storage: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return store, nil
}

func newLocker(ctx context.Context, addr string) (lock.Locker, func(), error) {
	if addr == "" {
		logger.Log.Info().Msg("REDIS_ADDR not set, webhook locks are process-local")
		return lock.NewLocalLocker(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	onUnlockErr := func(key string, err error) {
		logger.Log.Warn().Err(err).Str("key", key).Msg("failed to release lock")
	}
	return lock.NewRedisLocker(rdb, "laundry:webhook:", onUnlockErr), func() { rdb.Close() }, nil
}
