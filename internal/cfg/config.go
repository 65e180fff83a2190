package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	JWTSecret     string
	JWTTTL        time.Duration
	AdminUsername string
	AdminPassword string

	ForecastURL       string
	ForecastTimeout   time.Duration
	ActiveTimeTimeout time.Duration

	DeviationThreshold     float64
	CheckAllDelay          time.Duration
	CompletionQueueSize    int
	CompletionWorkers      int
	CompletionCheckTimeout time.Duration
	LockTTL                time.Duration

	RateLimitRequests   int
	RateLimitWindow     time.Duration
	TrustedProxies      []string
	ShutdownGracePeriod time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
}

func Load() (Config, error) {
	// .env может отсутствовать, тогда работаем только с переменными окружения
	_ = godotenv.Load(".env")

	cfg := Config{
		HTTPPort: getEnv("HTTP_PORT", "5001"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "tasks"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: parseCSVEnv("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "task.completed"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "anomaly-checker"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTTTL:        getEnvDuration("JWT_TTL", 24*time.Hour),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		ForecastURL:       getEnv("FORECAST_SERVICE_URL", "http://localhost:5002"),
		ForecastTimeout:   getEnvDuration("FORECAST_TIMEOUT", 10*time.Second),
		ActiveTimeTimeout: getEnvDuration("ACTIVE_TIME_TIMEOUT", 5*time.Second),

		DeviationThreshold:     getEnvFloat("DEVIATION_THRESHOLD", 2.0),
		CheckAllDelay:          getEnvDuration("CHECK_ALL_DELAY", 100*time.Millisecond),
		CompletionQueueSize:    getEnvInt("COMPLETION_QUEUE_SIZE", 64),
		CompletionWorkers:      getEnvInt("COMPLETION_WORKERS", 2),
		CompletionCheckTimeout: getEnvDuration("COMPLETION_CHECK_TIMEOUT", 30*time.Second),
		LockTTL:                getEnvDuration("LOCK_TTL", 10*time.Second),

		RateLimitRequests:   getEnvInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		TrustedProxies:      parseCSVEnv("TRUSTED_PROXIES"),
		ShutdownGracePeriod: getEnvDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		ReadTimeout:         getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:        getEnvDuration("WRITE_TIMEOUT", 2*time.Minute),
		IdleTimeout:         getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AdminPassword == "" {
		return Config{}, fmt.Errorf("ADMIN_PASSWORD is required")
	}

	return cfg, nil
}

// DSN собирает строку подключения к PostgreSQL
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBSSLMode,
	)
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseCSVEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
