package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"standupbot/internal/bot"
	"standupbot/internal/config"
	"standupbot/internal/db"
	"standupbot/internal/db/models"
	"standupbot/internal/gemini"
	"standupbot/internal/lock"
	"standupbot/internal/metrics"
	"standupbot/internal/standup"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Format == "json" {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load(config.Path())
	if err != nil {
		boot := newLogger(config.LogConfig{})
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	logger := newLogger(cfg.Log)
	if envErr != nil {
		logger.Debug().Msg("no .env file found")
	}
	if cfg.Gemini.APIKey == "" {
		logger.Fatal().Msg("set gemini.api_key in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer database.Close()

	var (
		locks lock.Locker = lock.NewKeyed()
		rdb   *redis.Client
	)
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locks = lock.NewRedis(rdb, "standupbot:lock:", cfg.Redis.LockTTL(), &logger)
		logger.Info().Str("address", cfg.Redis.Address).Msg("using redis locks")
	}

	summarizer, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout(), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create gemini client")
	}

	session, err := bot.NewSession(cfg.Discord.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create discord session")
	}
	messenger := bot.NewMessenger(session)

	engine := standup.NewEngine(
		database,
		messenger,
		summarizer,
		locks,
		metrics.New(prometheus.DefaultRegisterer),
		&logger,
		standup.WithDeliveryLimiter(rate.NewLimiter(rate.Limit(cfg.Standup.DeliveryRatePerSecond), cfg.Standup.DeliveryBurst)),
		standup.WithSummaryStaleAfter(cfg.Standup.SummaryStaleAfter()),
	)
	if err := engine.Init(ctx, models.Settings{
		StartTime:        cfg.Standup.StartTime,
		EndTime:          cfg.Standup.EndTime,
		Timezone:         cfg.Standup.Timezone,
		RemindersEnabled: true,
	}); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize standup engine")
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthPort, database, rdb, &logger)
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	scheduler := standup.NewScheduler(engine, cfg.Standup.TickInterval(), &logger)
	go scheduler.Run(ctx)

	discordBot := bot.New(cfg.Discord, session, engine, messenger, &logger)
	if err := discordBot.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("error running bot")
	}

	scheduler.Stop()
	logger.Info().Msg("application shutdown complete")
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.Ping(ctxPing); err != nil {
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
