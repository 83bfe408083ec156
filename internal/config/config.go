package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DefaultOTPTTL is the only code lifetime accepted outside dev
const DefaultOTPTTL = 10 * time.Minute

// Password hashers
const (
	HasherArgon2id = "argon2id"
	HasherBcrypt   = "bcrypt"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	OTP      OTPConfig
	Email    EmailConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
	AutoMigrate    bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	UserStore string
	// ConcealUnknownEmail answers unknown-email logins exactly like wrong-password ones
	ConcealUnknownEmail bool
	PasswordHasher      string
	BcryptCost          int
}

type OTPConfig struct {
	TTL            time.Duration
	SendTimeout    time.Duration
	ChallengeStore string
	// ReapInterval of zero disables the background reaper
	ReapInterval time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	From         string
}

type LogConfig struct {
	File       string
	MaxAgeDays int
}

// Load reads configuration from environment variables
// Call godotenv.Load() before this if using .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", getEnv("PORT", "8080")),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "otpauth"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
			AutoMigrate:    getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			UserStore:           getEnv("USER_STORE", StorePostgres),
			ConcealUnknownEmail: getBoolEnv("AUTH_CONCEAL_UNKNOWN_EMAIL", false),
			PasswordHasher:      getEnv("PASSWORD_HASHER", HasherArgon2id),
			BcryptCost:          getIntEnv("BCRYPT_COST", 12),
		},
		OTP: OTPConfig{
			TTL:            getDurationEnv("OTP_TTL", DefaultOTPTTL),
			SendTimeout:    getDurationEnv("OTP_SEND_TIMEOUT", 15*time.Second),
			ChallengeStore: getEnv("CHALLENGE_STORE", StoreRedis),
			ReapInterval:   getDurationEnv("CHALLENGE_REAP_INTERVAL", 0),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", getEnv("EMAIL_USER", "")),
			SMTPPassword: getEnv("SMTP_PASS", getEnv("EMAIL_PASS", "")),
		},
		Log: LogConfig{
			File:       getEnv("LOG_FILE", ""),
			MaxAgeDays: getIntEnv("LOG_MAX_AGE_DAYS", 7),
		},
	}
	cfg.Email.From = getEnv("EMAIL_FROM", cfg.Email.SMTPUser)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks combinations that cannot be caught per variable
func (c *Config) Validate() error {
	switch c.Auth.UserStore {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("USER_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Auth.UserStore)
	}

	switch c.OTP.ChallengeStore {
	case StoreRedis, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("CHALLENGE_STORE must be one of redis, postgres, memory, got %q", c.OTP.ChallengeStore)
	}

	switch c.Auth.PasswordHasher {
	case HasherArgon2id, HasherBcrypt:
	default:
		return fmt.Errorf("PASSWORD_HASHER must be %q or %q, got %q", HasherArgon2id, HasherBcrypt, c.Auth.PasswordHasher)
	}

	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 10 and 31, got %d", c.Auth.BcryptCost)
	}

	if c.OTP.TTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}

	// Outside dev the code lifetime is fixed at 10 minutes
	if !c.Server.IsDevelopment() && c.OTP.TTL != DefaultOTPTTL {
		return fmt.Errorf("OTP_TTL must be %d outside dev, got %d", int(DefaultOTPTTL.Seconds()), int(c.OTP.TTL.Seconds()))
	}

	if c.OTP.SendTimeout <= 0 {
		return fmt.Errorf("OTP_SEND_TIMEOUT must be positive")
	}

	return nil
}

// NeedsPostgres reports whether any configured store lives in Postgres
func (c *Config) NeedsPostgres() bool {
	return c.Auth.UserStore == StorePostgres || c.OTP.ChallengeStore == StorePostgres
}

// NeedsRedis reports whether the challenge store lives in Redis
func (c *Config) NeedsRedis() bool {
	return c.OTP.ChallengeStore == StoreRedis
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

// getDurationEnv reads a whole number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
