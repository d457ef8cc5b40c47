package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	DatabaseType    string
	DatabasePath    string
	DatabaseURL     string
	MigrationsPath  string
	SessionDuration time.Duration
	TokenDuration   time.Duration
	JWTSecret       string
	CSRFSecret      string

	// Puzzle
	PuzzleTimezone string
	PowerUses      int
	MonthlyPrize   string

	// OAuth
	GoogleClientID       string
	GoogleClientSecret   string
	OAuthRedirectBaseURL string

	// Email
	AWSRegion     string
	SESFromEmail  string
	SESFromName   string
	AppBaseURL    string
	AdminEmail    string
	AdminPassword string

	LogLevel string
	Debug    bool
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	return &Config{
		ServerPort:      getEnv("PORT", "8080"),
		DatabaseType:    getEnv("DB_TYPE", "sqlite"),
		DatabasePath:    getEnv("DB_PATH", "./krosswordle.db"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		SessionDuration: getDuration("SESSION_DURATION", 24*time.Hour),
		TokenDuration:   getDuration("TOKEN_DURATION", 30*24*time.Hour),
		JWTSecret:       getEnv("JWT_SECRET", "dev-jwt-secret-change-me"),
		CSRFSecret:      getEnv("CSRF_SECRET", "dev-csrf-secret-change-me"),

		PuzzleTimezone: getEnv("PUZZLE_TIMEZONE", "Europe/Istanbul"),
		PowerUses:      getInt("POWER_USES", 1),
		MonthlyPrize:   getEnv("MONTHLY_PRIZE", ""),

		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		OAuthRedirectBaseURL: getEnv("OAUTH_REDIRECT_BASE_URL", "http://localhost:8080"),

		AWSRegion:     getEnv("AWS_REGION", "eu-central-1"),
		SESFromEmail:  getEnv("SES_FROM_EMAIL", ""),
		SESFromName:   getEnv("SES_FROM_NAME", "KrossWordle"),
		AppBaseURL:    getEnv("APP_BASE_URL", "http://localhost:8080"),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		Debug:    getBool("DEBUG", false),
	}
}

// Location resolves the puzzle time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.PuzzleTimezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", c.PuzzleTimezone).Msg("unknown puzzle timezone, using UTC")
		return time.UTC
	}
	return loc
}

// EmailEnabled reports whether a sender address is configured
func (c *Config) EmailEnabled() bool {
	return c.SESFromEmail != ""
}

// OAuthEnabled reports whether Google login is configured
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration, using default")
		return defaultValue
	}
	return d
}
