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

	"github.com/aimerfeng/ChallengeHive/internal/auth"
	"github.com/aimerfeng/ChallengeHive/internal/cache"
	"github.com/aimerfeng/ChallengeHive/internal/config"
	"github.com/aimerfeng/ChallengeHive/internal/logging"
	"github.com/aimerfeng/ChallengeHive/internal/monitoring"
	"github.com/aimerfeng/ChallengeHive/internal/payment"
	"github.com/aimerfeng/ChallengeHive/internal/ratelimit"
	"github.com/aimerfeng/ChallengeHive/internal/server"
	"github.com/aimerfeng/ChallengeHive/internal/store/backend"
	"github.com/aimerfeng/ChallengeHive/internal/upstream"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// devJWTSecret signs tokens when no secret is configured outside production
const devJWTSecret = "challengehive-insecure-development-secret"

func main() {
	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env file: %v\n", err)
	}

	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("store", cfg.Store.Driver).
		Str("identity", cfg.Identity.Provider).
		Msg("Starting ChallengeHive API server")

	// Initialize Prometheus metrics
	monitoring.Init()

	ctx := context.Background()

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize identity verifier")
	}

	breakers := upstream.NewManager(&upstream.Config{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          cfg.Upstream.BreakerTimeout,
		FailureThreshold: uint32(cfg.Upstream.BreakerThreshold),
		MaxRetries:       uint(cfg.Upstream.MaxRetries),
		CallTimeout:      cfg.Upstream.Timeout,
	})

	deps := server.Dependencies{
		Store:    st,
		Verifier: verifier,
		Breakers: breakers,
	}

	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		deps.Redis = redisClient
	}

	if cfg.RateLimit.Enabled {
		if deps.Redis != nil {
			deps.Limiter = ratelimit.NewRedisLimiter(deps.Redis, cfg.RateLimit.RequestsPerMinute, time.Minute)
		} else {
			deps.Limiter = ratelimit.NewLocalLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		}
	}

	if cfg.Stripe.SecretKey != "" {
		deps.Processor = payment.NewStripeProcessor(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, breakers)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set; payment endpoints are disabled")
	}

	// Start metrics server if enabled
	if cfg.Monitoring.Enabled && cfg.Monitoring.MetricsPort != 0 {
		go startMetricsServer(cfg.Monitoring.MetricsPort)
	}

	srv := server.NewAPIServer(cfg, deps)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownWait)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	switch cfg.Identity.Provider {
	case config.IdentityProviderFirebase:
		return auth.NewFirebaseVerifier(ctx, cfg.Identity.FirebaseProjectID, cfg.Identity.CredentialsFile)
	case config.IdentityProviderJWT:
		secret := cfg.Identity.JWTSecret
		if secret == "" {
			log.Warn().Msg("JWT_SECRET not set; using the insecure development secret")
			secret = devJWTSecret
		}
		return auth.NewJWTVerifier(secret, cfg.Identity.JWTIssuer), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Identity.Provider)
	}
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().
		Int("port", port).
		Msg("Prometheus metrics server listening")

	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Metrics server error")
	}
}
