// Command server runs the review insights HTTP API.
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/review-insights-backend/docs"
	"github.com/tbourn/review-insights-backend/internal/config"
	httpapi "github.com/tbourn/review-insights-backend/internal/http"
	"github.com/tbourn/review-insights-backend/internal/http/handlers"
	"github.com/tbourn/review-insights-backend/internal/llm"
	"github.com/tbourn/review-insights-backend/internal/observability"
	"github.com/tbourn/review-insights-backend/internal/repo"
	"github.com/tbourn/review-insights-backend/internal/services"
	"github.com/tbourn/review-insights-backend/internal/sysutil"
)

const shutdownGrace = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(sysutil.SetLogLevel(cfg.LogLevel))
	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogPretty).With().Str("service", cfg.OTEL.ServiceName).Logger()
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, handlers.Version,
		attribute.String("llm.provider", cfg.LLM.Provider))
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	client, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.LLM.Provider).Msg("failed to build LLM client")
	}
	if c, ok := client.(io.Closer); ok {
		defer c.Close()
	}
	log.Info().Str("provider", cfg.LLM.Provider).Str("model", cfg.LLM.Model).Msg("LLM client ready")

	proc := services.NewProcessor(db, client, log.Logger, cfg.ProcessingTimeout)

	auth, err := services.NewAuthService(services.AuthOptions{
		Username:     cfg.Admin.Username,
		Password:     cfg.Admin.Password,
		PasswordHash: cfg.Admin.PasswordHash,
		Secret:       cfg.Admin.JWTSecret,
		TTL:          cfg.Admin.TokenTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure admin auth")
	}
	if cfg.Admin.JWTSecret == config.DevJWTSecret {
		log.Warn().Msg("using the development JWT secret; set SECRET_KEY in production")
	}

	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = handlers.Version

	r := gin.New()
	httpapi.RegisterRoutes(r, db, proc, auth, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// In-flight analyses get the rest of the grace period; anything still
	// running after that stays PENDING.
	if err := proc.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("background processing did not finish")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}
