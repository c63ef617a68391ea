package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/odonto/odonto/internal/config"
	"github.com/odonto/odonto/internal/domain/matching"
	"github.com/odonto/odonto/internal/domain/patient"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/db"
	"github.com/odonto/odonto/internal/platform/middleware"
	"github.com/odonto/odonto/internal/platform/patientapi"
)

const version = "0.3.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "odonto-server",
		Short:        "Forensic odontology identification matcher",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(matchCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// matchOptions maps the MATCH_* settings onto matcher options.
func matchOptions(cfg *config.Config) matching.Options {
	opts := matching.DefaultOptions()
	opts.Threshold = cfg.MatchThreshold
	opts.Limit = cfg.MatchLimit
	if p := strings.TrimSpace(cfg.MatchToothPolicy); p != "" {
		opts.ToothPolicy = matching.ToothCountPolicy(strings.ToLower(p))
	}
	if cfg.MatchToothTolerance > 0 {
		opts.ToothTolerance = cfg.MatchToothTolerance
	}
	return opts
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the matching API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// serverDeps are the collaborators the HTTP surface is built from. patients
// and dbHealth are nil when the roster comes from the patient-record
// service instead of Postgres.
type serverDeps struct {
	roster   matching.RosterSource
	patients *patient.Service
	dbHealth echo.HandlerFunc
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if err := matchOptions(cfg).Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid match settings")
		return err
	}

	ctx := context.Background()
	var deps serverDeps
	switch cfg.RosterSource {
	case config.RosterAPI:
		deps.roster = patientapi.NewClient(patientapi.Config{
			BaseURL: cfg.PatientAPIURL,
			Token:   cfg.PatientAPIToken,
			Timeout: cfg.PatientAPITimeout,
			Retries: cfg.PatientAPIRetries,
		}, logger)
		logger.Info().Str("url", cfg.PatientAPIURL).Msg("using patient-record service roster")
	default:
		pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		repo := patient.NewRepo(pool)
		deps.roster = repo
		deps.patients = patient.NewService(repo)
		deps.dbHealth = db.PoolHealthHandler(pool)
	}

	if cfg.IsDev() {
		logger.Warn().Msg("development mode: every request is granted admin, do not expose this server")
	}
	e := newServer(cfg, logger, deps)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newServer(cfg *config.Config, logger zerolog.Logger, deps serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "16M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"roster":  cfg.RosterSource,
		})
	})
	if deps.dbHealth != nil {
		e.GET("/health/db", deps.dbHealth)
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))

	svc := matching.NewService(deps.roster, matchOptions(cfg), logger)
	matching.NewHandler(svc).RegisterRoutes(apiV1)
	if deps.patients != nil {
		patient.NewHandler(deps.patients).RegisterRoutes(apiV1)
	}
	return e
}
