package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-otp-onboarding/internal/application/auth"
	"github.com/go-otp-onboarding/internal/config"
	"github.com/go-otp-onboarding/internal/infrastructure/awscfg"
	"github.com/go-otp-onboarding/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-otp-onboarding/internal/infrastructure/jwt"
	"github.com/go-otp-onboarding/internal/infrastructure/mongodb"
	"github.com/go-otp-onboarding/internal/infrastructure/redisdb"
	"github.com/go-otp-onboarding/internal/infrastructure/smtp"
	"github.com/go-otp-onboarding/internal/infrastructure/sns"
	"github.com/go-otp-onboarding/internal/infrastructure/twilio"
	"github.com/go-otp-onboarding/internal/pkg/ratelimit"
	"github.com/go-otp-onboarding/internal/pkg/retry"
	transporthttp "github.com/go-otp-onboarding/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.AppEnv == "production" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	ctx := context.Background()
	var closers []func(context.Context) error

	// User and challenge stores.
	var userRepo transporthttp.UserRepository
	var challenges sns.ChallengeStore
	switch cfg.StoreBackend {
	case config.StoreMongo:
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatalf("mongo: %v", err)
		}
		closers = append(closers, client.Disconnect)
		db := client.Database(cfg.MongoDatabase)
		if err := mongodb.Bootstrap(ctx, db); err != nil {
			log.Fatalf("mongo bootstrap: %v", err)
		}
		userRepo = mongodb.NewUserRepo(db)
		challenges = mongodb.NewChallengeRepo(db)
	default:
		awsCfg, err := awscfg.Load(ctx, cfg, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("aws: %v", err)
		}
		// Bootstrap DynamoDB tables (creates them if they don't exist).
		dynamoClient := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
		if err := dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables); err != nil {
			log.Fatalf("dynamo bootstrap: %v", err)
		}
		userRepo = dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users, cfg.DynamoTables.UserUniques)
		challenges = dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.OTPChallenges)
	}

	// OTP delivery provider.
	var provider auth.Provider
	switch cfg.OTPProvider {
	case config.ProviderSNS:
		awsCfg, err := awscfg.Load(ctx, cfg, cfg.SNSRegion)
		if err != nil {
			log.Fatalf("aws: %v", err)
		}
		sender := sns.NewSender(awsCfg, cfg.AWSEndpointURL)
		provider = sns.NewVerifyService(challenges, sender, cfg.OTPTTL, cfg.OTPMaxChecks)
	default:
		provider = twilio.NewVerifyClient(cfg)
	}
	provider = auth.NewThrottledProvider(provider, cfg.ProviderRPS, cfg.ProviderBurst)

	// Per-IP limiter for OTP requests.
	var limiter ratelimit.Limiter
	switch cfg.RateLimitBackend {
	case config.LimiterRedis:
		rdb, err := redisdb.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		closers = append(closers, func(context.Context) error { return rdb.Close() })
		limiter = ratelimit.NewRedis(rdb, "otp:ip", cfg.OTPRequestLimit, cfg.OTPRequestWindow)
	default:
		limiter = ratelimit.NewMemory(cfg.OTPRequestLimit, cfg.OTPRequestWindow)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}

	policy := retry.Default()
	policy.AttemptTimeout = cfg.ProviderTimeout

	deps := &transporthttp.Deps{
		UserRepo:    userRepo,
		Provider:    provider,
		OTPLimiter:  limiter,
		JWTProvider: jwtProvider,
		Mailer:      smtp.NewMailer(cfg),
		Retry:       policy,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // covers the full dispatch retry budget
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
			"store", cfg.StoreBackend, "provider", cfg.OTPProvider, "limiter", cfg.RateLimitBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(shutdownCtx); err != nil {
			slog.Warn("close dependency", "error", err)
		}
	}
	slog.Info("server stopped")
}
