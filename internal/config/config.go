package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	BaseURL            string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	SessionSecret      string
	DatabaseURL        string
	RedisURL           string
	MaxPollResults     int64
	LogLevel           string
	Env                string
}

// Error reports a missing or malformed configuration value.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s %s", e.Key, e.Reason)
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	baseURL := GetEnv("BASE_URL", "http://localhost:8080")

	maxPoll, err := strconv.ParseInt(GetEnv("MAX_POLL_RESULTS", "100"), 10, 64)
	if err != nil || maxPoll <= 0 {
		return nil, &Error{Key: "MAX_POLL_RESULTS", Reason: "must be a positive integer"}
	}

	return &Config{
		Port:               GetEnv("PORT", "8080"),
		BaseURL:            baseURL,
		GoogleClientID:     GetEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: GetEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  GetEnv("GOOGLE_REDIRECT_URI", baseURL+"/api/gmail/callback"),
		SessionSecret:      GetEnv("SESSION_SECRET", ""),
		DatabaseURL:        GetEnv("DATABASE_URL", ""),
		RedisURL:           GetEnv("REDIS_URL", ""),
		MaxPollResults:     maxPoll,
		LogLevel:           GetEnv("LOG_LEVEL", "info"),
		Env:                GetEnv("ENV", "development"),
	}, nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.GoogleClientID == "" {
		return &Error{Key: "GOOGLE_CLIENT_ID", Reason: "is required"}
	}
	if c.GoogleClientSecret == "" {
		return &Error{Key: "GOOGLE_CLIENT_SECRET", Reason: "is required"}
	}
	if c.GoogleRedirectURI == "" {
		return &Error{Key: "GOOGLE_REDIRECT_URI", Reason: "is required"}
	}
	if c.SessionSecret == "" {
		return &Error{Key: "SESSION_SECRET", Reason: "is required"}
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
