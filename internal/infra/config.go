package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	ArchiveDriverNone  = "none"
	ArchiveDriverFile  = "file"
	ArchiveDriverMinio = "minio"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	StoreDriver string
	DatabaseURL string

	ScrapeGraphAPIKey  string
	ScrapeGraphBaseURL string
	ScrapeGraphScrolls int

	KlingAccessKey string
	KlingSecretKey string
	KlingBaseURL   string
	KlingModel     string
	KlingMode      string
	KlingDuration  string

	DailymotionClientID     string
	DailymotionClientSecret string
	DailymotionUserID       string
	DailymotionBaseURL      string

	ProviderTimeout       time.Duration
	HTTPReadTimeout       time.Duration
	HTTPReadHeaderTimeout time.Duration
	HTTPWriteTimeout      time.Duration
	HTTPIdleTimeout       time.Duration
	HTTPMaxHeaderBytes    int
	RateLimitPerMin       int
	CORSOrigins           []string

	RedisAddr     string
	RedisPassword string
	EventsChannel string

	ArchiveDriver  string
	StoragePath    string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		ScrapeGraphAPIKey:  os.Getenv("SCRAPEGRAPH_API_KEY"),
		ScrapeGraphBaseURL: getEnv("SCRAPEGRAPH_BASE_URL", "https://api.scrapegraphai.com/v1"),
		ScrapeGraphScrolls: getEnvInt("SCRAPEGRAPH_SCROLLS", 2),

		KlingAccessKey: os.Getenv("KLING_ACCESS_KEY"),
		KlingSecretKey: os.Getenv("KLING_SECRET_KEY"),
		KlingBaseURL:   getEnv("KLING_BASE_URL", "https://api-singapore.klingai.com/v1"),
		KlingModel:     getEnv("KLING_MODEL", "kling-v2-5-turbo"),
		KlingMode:      getEnv("KLING_MODE", "pro"),
		KlingDuration:  getEnv("KLING_DURATION", "10"),

		DailymotionClientID:     os.Getenv("DAILYMOTION_CLIENT_ID"),
		DailymotionClientSecret: os.Getenv("DAILYMOTION_CLIENT_SECRET"),
		DailymotionUserID:       os.Getenv("DAILYMOTION_USER_ID"),
		DailymotionBaseURL:      getEnv("DAILYMOTION_BASE_URL", "https://partner.api.dailymotion.com"),

		ProviderTimeout:       getEnvSeconds("PROVIDER_TIMEOUT_SECONDS", 60),
		HTTPReadTimeout:       getEnvSeconds("HTTP_READ_TIMEOUT_SECONDS", 15),
		HTTPReadHeaderTimeout: getEnvSeconds("HTTP_READ_HEADER_TIMEOUT_SECONDS", 5),
		HTTPWriteTimeout:      getEnvSeconds("HTTP_WRITE_TIMEOUT_SECONDS", 150),
		HTTPIdleTimeout:       getEnvSeconds("HTTP_IDLE_TIMEOUT_SECONDS", 60),
		HTTPMaxHeaderBytes:    getEnvInt("HTTP_MAX_HEADER_BYTES", 64<<10),
		RateLimitPerMin:       getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:           splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		EventsChannel: getEnv("EVENTS_CHANNEL", "productreel:events"),

		ArchiveDriver:  strings.ToLower(getEnv("ARCHIVE_DRIVER", ArchiveDriverNone)),
		StoragePath:    getEnv("STORAGE_PATH", "./data"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "productreel"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	switch cfg.ArchiveDriver {
	case ArchiveDriverNone, ArchiveDriverFile:
	case ArchiveDriverMinio:
		if cfg.MinioEndpoint == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required when ARCHIVE_DRIVER=minio")
		}
	default:
		return nil, fmt.Errorf("unsupported ARCHIVE_DRIVER %q", cfg.ArchiveDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Second * time.Duration(getEnvInt(key, fallback))
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
