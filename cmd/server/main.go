// Command server runs the chat gateway HTTP API.
//
// Startup sequence:
//  1. Load .env (best effort) and environment configuration.
//  2. Configure zerolog and OpenTelemetry tracing.
//  3. Open SQLite, run migrations, optionally seed demo data.
//  4. Compose the upstream providers (live or simulated).
//  5. Build the Gin router and serve with graceful shutdown.
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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	_ "github.com/tbourn/go-chat-gateway/docs"
	"github.com/tbourn/go-chat-gateway/internal/config"
	httpapi "github.com/tbourn/go-chat-gateway/internal/http"
	"github.com/tbourn/go-chat-gateway/internal/observability"
	"github.com/tbourn/go-chat-gateway/internal/provider"
	"github.com/tbourn/go-chat-gateway/internal/repo"
	"github.com/tbourn/go-chat-gateway/internal/search"
	"github.com/tbourn/go-chat-gateway/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Local development convenience; absent .env files are not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	if cfg.SeedDemoData {
		seeded, err := repo.SeedDemoData(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("seeding demo data failed")
		}
		if seeded {
			log.Info().Msg("demo data seeded")
		}
	}

	prov, err := buildProviders(cfg.Provider)
	if err != nil {
		log.Fatal().Err(err).Msg("provider setup failed")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, prov, cfg)

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
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Bool("simulated_providers", cfg.Provider.Simulated).
			Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// buildProviders selects the upstream pair once at boot; the stream layer
// never switches between live and simulated per request.
func buildProviders(pc config.ProviderConfig) (httpapi.Providers, error) {
	if pc.Simulated {
		idx, err := search.NewIndexFromMarkdown(pc.KnowledgePath)
		if err != nil {
			return httpapi.Providers{}, err
		}
		return httpapi.Providers{
			General:  provider.NewSimulatedGeneral(),
			Grounded: provider.NewSimulatedGrounded(idx, ""),
		}, nil
	}

	tokens := provider.NewClientCredentialsSource(provider.TokenConfig{
		AuthURL:      pc.TokenAuthURL,
		ClientID:     pc.TokenClientID,
		ClientSecret: pc.TokenClientSecret,
		Timeout:      pc.TokenTimeout,
	})
	general := provider.NewLiveGeneral(provider.GeneralConfig{
		BaseURLStaging:    pc.GeneralURLStaging,
		BaseURLProduction: pc.GeneralURLProduction,
		Environment:       pc.GeneralEnvironment,
		TokenScope:        pc.GeneralScope,
		DomainName:        pc.GeneralDomain,
		ModelName:         pc.GeneralModel,
		MaxTokens:         pc.GeneralMaxTokens,
		Timeout:           pc.GeneralTimeout,
	}, tokens)
	grounded := provider.NewLiveGrounded(provider.GroundedConfig{
		BaseURLStaging:    pc.GroundedURLStaging,
		BaseURLProduction: pc.GroundedURLProduction,
		TokenScope:        pc.GroundedScope,
		Timeout:           pc.GroundedTimeout,
	}, tokens)
	return httpapi.Providers{General: general, Grounded: grounded}, nil
}
