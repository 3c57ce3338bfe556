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

	"github.com/agntsupport/hospitalsystem-sub004/internal/config"
	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"
	"github.com/agntsupport/hospitalsystem-sub004/internal/middleware"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"
	"github.com/agntsupport/hospitalsystem-sub004/internal/router"
	"github.com/agntsupport/hospitalsystem-sub004/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = rdb.Close()
	}()

	metrics := infra.NewMetrics()
	mailer := infra.NewMailer(cfg, infra.NewBreaker(infra.SMTPBreakerConfig(metrics)))
	if !mailer.Enabled() {
		log.Warn().Msg("SMTP_HOST not set: email notifications disabled")
	}
	dispatcher := worker.NewDispatcher(rdb)

	pool := worker.NewPool(rdb, metrics)
	pool.Register(worker.QueueNotificacion,
		worker.NewNotificacionWorker(mailer, repository.NewUsuarioRepository(db), cfg.NotifyEmail))
	pool.Register(worker.QueueComprobante, worker.NewComprobanteWorker(
		repository.NewDevolucionRepository(db),
		repository.NewCuentaRepository(db),
		repository.NewComprobanteRepository(db),
		dispatcher.EnqueueNotificacion, cfg.PDFStoragePath, cfg.NotifyEmail,
	))

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitPerMinute/10)
	loginLimiter := middleware.NewIPRateLimiter(10, 5)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: router.New(cfg, db, rdb, router.Deps{
			Metrics:      metrics,
			Mailer:       mailer,
			Jobs:         dispatcher,
			Limiter:      limiter,
			LoginLimiter: loginLimiter,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	pool.Start(ctx, cfg.WorkerPoolSize)

	g.Go(func() error {
		limiter.RunPurge(5*time.Minute, ctx.Done())
		return nil
	})
	g.Go(func() error {
		loginLimiter.RunPurge(5*time.Minute, ctx.Done())
		return nil
	})
	g.Go(func() error {
		log.Info().Msgf("hospital ledger listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("server exited")
}
