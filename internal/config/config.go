package config

import (
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CryptoConfig holds the envelope encryption settings. The master secret
// is never written to logs or stored next to any blob.
type CryptoConfig struct {
	MasterSecret     string
	PBKDF2Iterations int
}

// UploadConfig holds validation limits for incoming files.
type UploadConfig struct {
	MaxSizeBytes     int64
	AllowedMimeTypes []string
}

// ModerationConfig sizes the classification worker pool and its queue.
type ModerationConfig struct {
	Workers       int
	QueueCapacity int
}

// AccessConfig controls ephemeral grant issuance.
type AccessConfig struct {
	GrantTTLSeconds int
	// MatchServiceURL points at the matching subsystem used for the
	// relationship check. Empty means non-owners are always denied.
	MatchServiceURL string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not
// hardcoded.
type AppConfig struct {
	AppHost    string
	Port       string
	Database   DatabaseConfig
	MinIO      MinIOConfig
	Crypto     CryptoConfig
	Upload     UploadConfig
	Moderation ModerationConfig
	Access     AccessConfig
}

// Load reads configuration from environment variables. A .env file can be
// auto-loaded by importing: _ "github.com/joho/godotenv/autoload". Real
// environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Crypto: CryptoConfig{
			MasterSecret:     getEnv("MEDIA_MASTER_SECRET", ""),
			PBKDF2Iterations: getEnvInt("MEDIA_PBKDF2_ITERATIONS", 100000),
		},
		Upload: UploadConfig{
			MaxSizeBytes:     getEnvInt64("UPLOAD_MAX_SIZE_BYTES", 0),
			AllowedMimeTypes: getEnvList("UPLOAD_ALLOWED_MIME_TYPES"),
		},
		Moderation: ModerationConfig{
			Workers:       getEnvInt("MODERATION_WORKERS", 2),
			QueueCapacity: getEnvInt("MODERATION_QUEUE_CAPACITY", 256),
		},
		Access: AccessConfig{
			GrantTTLSeconds: getEnvInt("ACCESS_GRANT_TTL_SEC", 3600),
			MatchServiceURL: getEnv("MATCH_SERVICE_URL", ""),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList parses a comma-separated env var; empty yields nil so callers
// can fall back to their own defaults.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
