package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/otp-auth-api/internal/auth"
	"github.com/redmonkez12/otp-auth-api/internal/challenge"
	"github.com/redmonkez12/otp-auth-api/internal/config"
	"github.com/redmonkez12/otp-auth-api/internal/database"
	_ "github.com/redmonkez12/otp-auth-api/internal/docs" // Swagger docs (generated)
	"github.com/redmonkez12/otp-auth-api/internal/email"
	httpServer "github.com/redmonkez12/otp-auth-api/internal/http"
	"github.com/redmonkez12/otp-auth-api/internal/logging"
	"github.com/redmonkez12/otp-auth-api/internal/user"
)

// @title           OTP Auth API
// @version         1.0
// @description     Email-verified registration with one-time passcodes, and password login.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// challengeStore is what the service and the reaper need from a backend
type challengeStore interface {
	auth.ChallengeStore
	challenge.Purger
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	var logOutputs []io.Writer
	if cfg.Log.File != "" {
		logFile, err := logging.NewRotatingFile(cfg.Log.File, cfg.Log.MaxAgeDays)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()
		logOutputs = append(logOutputs, logFile)
	}
	logger := logging.NewLogger(cfg.Server.IsDevelopment(), logOutputs...)
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"user_store", cfg.Auth.UserStore,
		"challenge_store", cfg.OTP.ChallengeStore,
	)

	// Initialize database connection
	var db *bun.DB
	if cfg.NeedsPostgres() {
		db, err = database.Open(ctx, cfg.Database.ConnectionString())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db.DB); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			logger.Info("database migrations applied")
		}
	}

	// Initialize Redis connection
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = initRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()
	}

	clock := clockwork.NewRealClock()

	// Initialize repositories
	var userRepo auth.UserRepository
	switch cfg.Auth.UserStore {
	case config.StorePostgres:
		userRepo = user.NewRepository(db)
	default:
		logger.Warn("users are kept in memory and will be lost on restart")
		userRepo = user.NewMemoryRepository()
	}

	var challenges challengeStore
	switch cfg.OTP.ChallengeStore {
	case config.StoreRedis:
		challenges = challenge.NewRedisStore(redisClient, cfg.OTP.TTL, clock)
	case config.StorePostgres:
		challenges = challenge.NewPostgresStore(db, cfg.OTP.TTL, clock)
	default:
		challenges = challenge.NewMemoryStore(cfg.OTP.TTL, clock)
	}

	// Initialize email service
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.From,
		cfg.Server.IsDevelopment(),
		logger,
	)
	if cfg.Email.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, otp codes will not be emailed")
	}

	// Initialize auth service
	authService := auth.NewService(
		userRepo,
		challenges,
		emailService,
		auth.NewPasswordHasher(cfg.Auth.PasswordHasher, cfg.Auth.BcryptCost),
		logger,
		cfg.OTP.TTL,
		cfg.OTP.SendTimeout,
	)

	if cfg.OTP.ReapInterval > 0 {
		reaper := challenge.NewReaper(challenges, cfg.OTP.ReapInterval, clock, logger)
		go reaper.Run(ctx)
		logger.Info("challenge reaper started", "interval", cfg.OTP.ReapInterval.String())
	}

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(authService, cfg.Auth.ConcealUnknownEmail)

	// Initialize router
	router := httpServer.NewRouter(cfg, authHandler, logger)

	// Serve until SIGINT/SIGTERM, then drain
	server := httpServer.NewServer(cfg.Server, router, logger)
	if err := server.ListenAndRun(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
