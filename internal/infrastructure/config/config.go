package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Gateway   GatewayConfig
	LateFee   LateFeeConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// GatewayConfig holds payment gateway credentials and endpoints
type GatewayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

// LateFeeConfig holds the late fine policy applied by the nightly sweep
type LateFeeConfig struct {
	PolicyType string // flat or percent
	FlatAmount string
	Percent    string
}

// TelemetryConfig holds OpenTelemetry export settings. Traces, logs, and
// database spans ship to one OTLP gRPC collector endpoint.
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	Insecure          bool
	LogsEnabled       bool
	DBTracingEnabled  bool
	DBSlowQueryThresh time.Duration
	LogFullSQL        bool // Include query variables in DB spans (dev only)
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	Enabled             bool
	LateFeeCron         string
	ReconcileInterval   time.Duration
	ReconcileLookback   time.Duration
	MaxConcurrentJobs   int
	JobTimeout          time.Duration
	ShutdownGracePeriod time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SCHOOLERP_ prefix (e.g., SCHOOLERP_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SCHOOLERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Gateway: GatewayConfig{
			BaseURL:       v.GetString("gateway.base_url"),
			KeyID:         v.GetString("gateway.key_id"),
			KeySecret:     v.GetString("gateway.key_secret"),
			WebhookSecret: v.GetString("gateway.webhook_secret"),
			Timeout:       v.GetDuration("gateway.timeout"),
		},
		LateFee: LateFeeConfig{
			PolicyType: v.GetString("latefee.policy_type"),
			FlatAmount: v.GetString("latefee.flat_amount"),
			Percent:    v.GetString("latefee.percent"),
		},
		Scheduler: SchedulerConfig{
			Enabled:             v.GetBool("scheduler.enabled"),
			LateFeeCron:         v.GetString("scheduler.late_fee_cron"),
			ReconcileInterval:   v.GetDuration("scheduler.reconcile_interval"),
			ReconcileLookback:   v.GetDuration("scheduler.reconcile_lookback"),
			MaxConcurrentJobs:   v.GetInt("scheduler.max_concurrent_jobs"),
			JobTimeout:          v.GetDuration("scheduler.job_timeout"),
			ShutdownGracePeriod: v.GetDuration("scheduler.shutdown_grace_period"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTracingEnabled:  v.GetBool("telemetry.db_tracing_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			LogFullSQL:        v.GetBool("telemetry.log_full_sql"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "schoolerp-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "schoolerp"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "schoolerp-backend"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until
	// explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-School-ID"}
	}
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 30 * time.Second
	}
	if cfg.LateFee.PolicyType == "" {
		cfg.LateFee.PolicyType = "flat"
	}
	if cfg.LateFee.FlatAmount == "" {
		cfg.LateFee.FlatAmount = "100"
	}
	if cfg.LateFee.Percent == "" {
		cfg.LateFee.Percent = "2"
	}
	if cfg.Scheduler.LateFeeCron == "" {
		cfg.Scheduler.LateFeeCron = "0 2 * * *"
	}
	if cfg.Scheduler.ReconcileInterval == 0 {
		cfg.Scheduler.ReconcileInterval = 30 * time.Minute
	}
	if cfg.Scheduler.ReconcileLookback == 0 {
		cfg.Scheduler.ReconcileLookback = 24 * time.Hour
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 3
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.ShutdownGracePeriod == 0 {
		cfg.Scheduler.ShutdownGracePeriod = 30 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.LateFee.PolicyType != "flat" && c.LateFee.PolicyType != "percent" {
		return fmt.Errorf("latefee.policy_type must be 'flat' or 'percent', got %q", c.LateFee.PolicyType)
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %g", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Gateway.WebhookSecret == "" {
			return fmt.Errorf("gateway.webhook_secret is required in production")
		}
		if c.Telemetry.LogFullSQL {
			return fmt.Errorf("telemetry.log_full_sql cannot be enabled in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address for the Redis connection
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
