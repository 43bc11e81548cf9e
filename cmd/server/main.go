// Command server runs the fortune-telling chat backend.
//
// Startup order: env → config → logging → tracing → database → guest store →
// LLM client → router → HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-fortune-backend/internal/config"
	"github.com/tbourn/go-fortune-backend/internal/guest"
	httpapi "github.com/tbourn/go-fortune-backend/internal/http"
	"github.com/tbourn/go-fortune-backend/internal/llm"
	"github.com/tbourn/go-fortune-backend/internal/observability"
	"github.com/tbourn/go-fortune-backend/internal/repo"
	"github.com/tbourn/go-fortune-backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The env file is optional; real deployments inject the environment directly.
	envFile := sysutil.FirstNonEmpty(os.Getenv("ENV_FILE"), ".env")
	if err := godotenv.Load(envFile); err != nil {
		log.Debug().Str("file", envFile).Msg("no env file, using process environment")
	}

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if sysutil.IsTruthy(os.Getenv("DB_DEBUG")) {
		db = db.Debug()
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	var guestStore guest.Store
	if cfg.Guest.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Guest.RedisAddr, DB: cfg.Guest.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Guest.RedisAddr).Msg("redis unreachable")
		}
		guestStore = guest.NewRedisStore(rdb, cfg.Guest.SessionTTL)
		log.Info().Str("addr", cfg.Guest.RedisAddr).Msg("guest store: redis")
	} else {
		guestStore = guest.NewMemoryStore(cfg.Guest.SessionTTL)
		log.Info().Msg("guest store: in-memory")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:         db,
		GuestStore: guestStore,
		Completer:  llm.New(cfg.LLM),
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
