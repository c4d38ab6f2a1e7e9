package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	AI        AIConfig
	Export    ExportConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// AIConfig holds the itinerary assistant configuration
type AIConfig struct {
	GeminiAPIKey string
	GeminiModel  string
}

// ExportConfig holds PDF export storage configuration. Uploads are
// optional: with no bucket configured the export endpoint only
// streams, it never uploads.
type ExportConfig struct {
	S3Bucket         string
	S3Region         string
	S3Endpoint       string // set for MinIO/self-hosted, empty for AWS
	S3AccessKey      string
	S3SecretKey      string
	PresignExpiryMin int
}

// UploadsEnabled reports whether exported PDFs can be pushed to object
// storage.
func (e ExportConfig) UploadsEnabled() bool {
	return e.S3Bucket != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "tripcraft"),
			Alter:    getBoolEnv("DB_ALTER", false),
		},
		AI: AIConfig{
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Export: ExportConfig{
			S3Bucket:         os.Getenv("S3_BUCKET"),
			S3Region:         getEnv("S3_REGION", "eu-central-1"),
			S3Endpoint:       os.Getenv("S3_ENDPOINT"),
			S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
			PresignExpiryMin: getIntEnv("S3_PRESIGN_EXPIRY_MIN", 15),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
