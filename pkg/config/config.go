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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Survey    SurveyConfig
	Email     EmailConfig
	Jobs      JobsConfig
	Dashboard DashboardConfig
	Analytics AnalyticsConfig
	Reports   ReportsConfig
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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SurveyConfig carries scoring thresholds and survey window tuning.
// Thresholds are injected into the scoring pipeline, never hard-coded there.
type SurveyConfig struct {
	GreenMin        float64
	YellowMin       float64
	DropThreshold   float64
	TokenExpiryDays int
	MaxReminders    int
	BaseURL         string
}

// EmailConfig configures outbound mail delivery via SendGrid.
type EmailConfig struct {
	Enabled       bool
	SendGridKey   string
	FromAddress   string
	FromName      string
	SubjectPrefix string
	SendTimeout   time.Duration
}

// JobsConfig tunes the in-process worker queue used for deferred email dispatch.
type JobsConfig struct {
	EmailWorkers    int
	EmailBuffer     int
	EmailRetries    int
	EmailRetryDelay time.Duration
}

// DashboardConfig governs cache tuning for dashboard endpoints.
type DashboardConfig struct {
	CacheTTL time.Duration
}

// AnalyticsConfig governs cache behaviour for analytics endpoints.
type AnalyticsConfig struct {
	CacheTTL time.Duration
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
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

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Survey = SurveyConfig{
		GreenMin:        v.GetFloat64("SCORE_GREEN_MIN"),
		YellowMin:       v.GetFloat64("SCORE_YELLOW_MIN"),
		DropThreshold:   v.GetFloat64("SCORE_DROP_THRESHOLD"),
		TokenExpiryDays: v.GetInt("SURVEY_TOKEN_EXPIRY_DAYS"),
		MaxReminders:    v.GetInt("SURVEY_MAX_REMINDERS"),
		BaseURL:         v.GetString("SURVEY_BASE_URL"),
	}

	cfg.Email = EmailConfig{
		Enabled:       v.GetBool("EMAIL_ENABLED"),
		SendGridKey:   v.GetString("SENDGRID_API_KEY"),
		FromAddress:   v.GetString("EMAIL_FROM_ADDRESS"),
		FromName:      v.GetString("EMAIL_FROM_NAME"),
		SubjectPrefix: v.GetString("EMAIL_SUBJECT_PREFIX"),
		SendTimeout:   parseDuration(v.GetString("EMAIL_SEND_TIMEOUT"), 30*time.Second),
	}

	cfg.Jobs = JobsConfig{
		EmailWorkers:    v.GetInt("EMAIL_WORKER_CONCURRENCY"),
		EmailBuffer:     v.GetInt("EMAIL_WORKER_BUFFER"),
		EmailRetries:    v.GetInt("EMAIL_WORKER_RETRIES"),
		EmailRetryDelay: parseDuration(v.GetString("EMAIL_WORKER_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheTTL: parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "trivsel")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCORE_GREEN_MIN", 4.0)
	v.SetDefault("SCORE_YELLOW_MIN", 3.0)
	v.SetDefault("SCORE_DROP_THRESHOLD", 1.0)
	v.SetDefault("SURVEY_TOKEN_EXPIRY_DAYS", 4)
	v.SetDefault("SURVEY_MAX_REMINDERS", 2)
	v.SetDefault("SURVEY_BASE_URL", "http://localhost:5173")

	v.SetDefault("EMAIL_ENABLED", false)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM_ADDRESS", "noreply@trivsel.local")
	v.SetDefault("EMAIL_FROM_NAME", "TrivselsTracker")
	v.SetDefault("EMAIL_SUBJECT_PREFIX", "")
	v.SetDefault("EMAIL_SEND_TIMEOUT", "30s")

	v.SetDefault("EMAIL_WORKER_CONCURRENCY", 2)
	v.SetDefault("EMAIL_WORKER_BUFFER", 64)
	v.SetDefault("EMAIL_WORKER_RETRIES", 3)
	v.SetDefault("EMAIL_WORKER_RETRY_DELAY", "5s")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_REPORTS", true)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)
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
