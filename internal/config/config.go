package config

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// S3Config describes the S3-compatible bucket (R2, MinIO, AWS) that holds
// transfer files and recipient avatars.
type S3Config struct {
	Endpoint        string
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	PublicBaseURL   string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Config struct {
	DBDriver       string
	DBURL          string
	RedisURL       string
	Port           string
	SessionSecret  string
	SessionTTL     time.Duration
	Environment    string
	LogLevel       string
	FrontendURL    string
	MaxUploadBytes int64
	CorsConfig     cors.Options
	S3             S3Config
	Google         GoogleConfig
}

// Load reads ENV_FILE (default .env) into the environment and builds the
// configuration from it.
func Load() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		logrus.Infof("No %s file found", envFile)
	}

	return Config{
		DBDriver:       getEnv("DB_DRIVER", "postgres"),
		DBURL:          getEnv("DB_URL", ""),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		Port:           getEnv("PORT", "8080"),
		SessionSecret:  getEnv("SESSION_SECRET", "not-so-secret-now-is-it?"),
		SessionTTL:     getDuration("SESSION_TTL", 24*time.Hour),
		Environment:    getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:5173"),
		MaxUploadBytes: getInt64("MAX_UPLOAD_BYTES", 100<<20),
		CorsConfig:     CorsConfig(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccountID:       getEnv("S3_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("S3_BUCKET_NAME", "dispatch"),
			Region:          getEnv("S3_REGION", "auto"),
			PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/v1/auth/google/callback"),
		},
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logrus.Warnf("Invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func getInt64(key string, fallback int64) int64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		logrus.Warnf("Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return n
}

func CorsConfig(origins string) cors.Options {
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	return cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}
