package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	ServerPort     string
	DatabaseType   string
	DatabasePath   string
	DatabaseURL    string
	MigrationsPath string
	LogLevel       string

	// Notification (Amazon SES) settings; empty FromEmail disables sending
	AWSRegion  string
	FromEmail  string
	FromName   string
	AppBaseURL string

	// Ledger engine tunables
	AutoApprovalThreshold int64
	MaxFamiliesPerUser    int
	MaxFamilyMembers      int
	InvitationTTL         time.Duration
	RequestTTL            time.Duration
	UnfreezeTTL           time.Duration
	RecoveryTTL           time.Duration
	CleanupRetention      time.Duration
	TxTimeout             time.Duration
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServerPort:     getEnv("PORT", "8080"),
		DatabaseType:   getEnv("DB_TYPE", "sqlite"),
		DatabasePath:   getEnv("DB_PATH", "./sbdledger.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		AWSRegion:  getEnv("AWS_REGION", "us-east-1"),
		FromEmail:  getEnv("SES_FROM_EMAIL", ""),
		FromName:   getEnv("SES_FROM_NAME", "SBD Ledger"),
		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:8080"),

		AutoApprovalThreshold: getEnvInt64("AUTO_APPROVAL_THRESHOLD", 100),
		MaxFamiliesPerUser:    getEnvInt("MAX_FAMILIES_PER_USER", 5),
		MaxFamilyMembers:      getEnvInt("MAX_FAMILY_MEMBERS", 20),
		InvitationTTL:         getEnvDuration("INVITATION_TTL", 7*24*time.Hour),
		RequestTTL:            getEnvDuration("REQUEST_TTL", 7*24*time.Hour),
		UnfreezeTTL:           getEnvDuration("UNFREEZE_TTL", 72*time.Hour),
		RecoveryTTL:           getEnvDuration("RECOVERY_TTL", 72*time.Hour),
		CleanupRetention:      getEnvDuration("CLEANUP_RETENTION", 90*24*time.Hour),
		TxTimeout:             getEnvDuration("TX_TIMEOUT", 10*time.Second),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
