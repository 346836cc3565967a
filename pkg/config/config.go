package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EventTransportInProcess = "inprocess"
	EventTransportAsynq     = "asynq"
)

// Config holds application configuration loaded from the environment,
// configs/.env and an optional config.yaml.
type Config struct {
	AppEnv string `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	Port   string `mapstructure:"PORT" validate:"required,numeric"`

	DBHost     string `mapstructure:"DB_HOST" validate:"required"`
	DBPort     string `mapstructure:"DB_PORT" validate:"required,numeric"`
	DBUser     string `mapstructure:"DB_USER" validate:"required"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME" validate:"required"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE" validate:"required,oneof=disable require verify-ca verify-full prefer allow"`

	JWTSecret   string `mapstructure:"JWT_SECRET" validate:"required,min=8"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	EventTransport   string `mapstructure:"EVENT_TRANSPORT" validate:"required,oneof=inprocess asynq"`
	RedisAddr        string `mapstructure:"REDIS_ADDR" validate:"required_if=EventTransport asynq"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	AsynqConcurrency int    `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	ContractValidityDays   int    `mapstructure:"CONTRACT_VALIDITY_DAYS" validate:"gte=1,lte=365"`
	ContractExpirySchedule string `mapstructure:"CONTRACT_EXPIRY_SCHEDULE" validate:"required"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var keys = []string{
	"APP_ENV", "PORT",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"JWT_SECRET", "CORS_ORIGINS",
	"LOG_LEVEL", "LOG_FORMAT",
	"EVENT_TRANSPORT", "REDIS_ADDR", "REDIS_PASSWORD", "ASYNQ_CONCURRENCY",
	"CONTRACT_VALIDITY_DAYS", "CONTRACT_EXPIRY_SCHEDULE",
	"SHUTDOWN_TIMEOUT",
}

// Load reads configs/.env (if present), applies defaults, binds env vars and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("EVENT_TRANSPORT", EventTransportInProcess)
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("CONTRACT_VALIDITY_DAYS", 30)
	v.SetDefault("CONTRACT_EXPIRY_SCHEDULE", "@every 1h")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")

	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	if s := v.GetString("SHUTDOWN_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}

	// Development fallback only, matches the JWT middleware behaviour
	if c.JWTSecret == "" && c.AppEnv != "production" {
		c.JWTSecret = "default_super_secret_key"
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &c, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ContractValidity is the window between contract creation and expiry.
func (c *Config) ContractValidity() time.Duration {
	return time.Duration(c.ContractValidityDays) * 24 * time.Hour
}
