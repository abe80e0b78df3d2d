package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Canvas   CanvasConfig
	Database DatabaseConfig
	Runs     RunsConfig
	CORS     CORSConfig
	Log      LogConfig
}

// CanvasConfig points the client at a Canvas-compatible LMS API.
type CanvasConfig struct {
	BaseURL         string
	PerPage         int
	RequestTimeout  time.Duration
	DefaultTimezone string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RunsConfig governs sync-run bookkeeping and schedule retention.
type RunsConfig struct {
	ResultTTL    time.Duration
	HistoryLimit int
	QueueBuffer  int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Canvas = CanvasConfig{
		BaseURL:         strings.TrimRight(v.GetString("CANVAS_BASE_URL"), "/"),
		PerPage:         v.GetInt("CANVAS_PER_PAGE"),
		RequestTimeout:  parseDuration(v.GetString("CANVAS_REQUEST_TIMEOUT"), 30*time.Second),
		DefaultTimezone: v.GetString("CANVAS_DEFAULT_TIMEZONE"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Runs = RunsConfig{
		ResultTTL:    parseDuration(v.GetString("RUNS_RESULT_TTL"), 6*time.Hour),
		HistoryLimit: v.GetInt("RUNS_HISTORY_LIMIT"),
		QueueBuffer:  v.GetInt("RUNS_QUEUE_BUFFER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("CANVAS_BASE_URL", "https://canvas.sfu.ca/api/v1")
	v.SetDefault("CANVAS_PER_PAGE", 50)
	v.SetDefault("CANVAS_REQUEST_TIMEOUT", "30s")
	v.SetDefault("CANVAS_DEFAULT_TIMEZONE", "America/Los_Angeles")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "deadline_radar")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("RUNS_RESULT_TTL", "6h")
	v.SetDefault("RUNS_HISTORY_LIMIT", 20)
	v.SetDefault("RUNS_QUEUE_BUFFER", 16)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
