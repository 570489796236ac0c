package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServerPort       string        `yaml:"port"`
	DatabaseType     string        `yaml:"database_type"`
	DatabasePath     string        `yaml:"database_path"`
	DatabaseURL      string        `yaml:"database_url"`
	MigrationsPath   string        `yaml:"migrations_path"`
	SessionDuration  time.Duration `yaml:"session_duration"`
	CSRFSecret       string        `yaml:"csrf_secret"`
	DefaultTimezone  string        `yaml:"default_timezone"`
	ChatHistoryLimit int           `yaml:"chat_history_limit"`

	// OAuth
	OAuthRedirectBaseURL string `yaml:"oauth_redirect_base_url"`
	GoogleClientID       string `yaml:"google_client_id"`
	GoogleClientSecret   string `yaml:"google_client_secret"`
	FacebookClientID     string `yaml:"facebook_client_id"`
	FacebookClientSecret string `yaml:"facebook_client_secret"`
	AppleClientID        string `yaml:"apple_client_id"`
	AppleClientSecret    string `yaml:"apple_client_secret"`

	// Email (Amazon SES)
	AWSRegion    string `yaml:"aws_region"`
	SESFromEmail string `yaml:"ses_from_email"`
	SESFromName  string `yaml:"ses_from_name"`
	AppBaseURL   string `yaml:"app_base_url"`
	EmailDebug   bool   `yaml:"email_debug"`
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServerPort:       getEnv("PORT", "8080"),
		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DB_PATH", "./familysync.db"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", ""),
		SessionDuration:  getEnvDuration("SESSION_DURATION", 7*24*time.Hour),
		CSRFSecret:       getEnv("CSRF_SECRET", "change-me-in-production"),
		DefaultTimezone:  getEnv("DEFAULT_TIMEZONE", "UTC"),
		ChatHistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 100),

		OAuthRedirectBaseURL: getEnv("OAUTH_REDIRECT_BASE_URL", ""),
		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		FacebookClientID:     getEnv("FACEBOOK_CLIENT_ID", ""),
		FacebookClientSecret: getEnv("FACEBOOK_CLIENT_SECRET", ""),
		AppleClientID:        getEnv("APPLE_CLIENT_ID", ""),
		AppleClientSecret:    getEnv("APPLE_CLIENT_SECRET", ""),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "FamilySync"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:8080"),
		EmailDebug:   getEnvBool("EMAIL_DEBUG", false),
	}
}

// LoadFile applies a YAML file on top of the environment configuration.
// Keys missing from the file keep their environment (or default) values.
// An empty path returns the environment configuration unchanged.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.ChatHistoryLimit <= 0 {
		cfg.ChatHistoryLimit = 100
	}
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = 7 * 24 * time.Hour
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
