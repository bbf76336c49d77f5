package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Olympiad  OlympiadConfig  `mapstructure:"olympiad"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// OlympiadConfig is the competition format for the active year. It is read
// once per operation and passed down explicitly so ranking and advancement
// stay pure functions of (evaluation, config).
type OlympiadConfig struct {
	ActiveYear      int `mapstructure:"active_year"`
	StageCount      int `mapstructure:"stage_count"` // 2 or 3
	Stage2TopN      int `mapstructure:"stage2_top_n"`
	Stage3TopN      int `mapstructure:"stage3_top_n"`
	DefaultAttempts int `mapstructure:"default_attempts"`
}

type MonitorConfig struct {
	InactivityThresholdMinutes int `mapstructure:"inactivity_threshold_minutes"`
	InactivityDebounceMinutes  int `mapstructure:"inactivity_debounce_minutes"`
	InactivitySweepSeconds     int `mapstructure:"inactivity_sweep_seconds"`
	ExpirySweepSeconds         int `mapstructure:"expiry_sweep_seconds"`
	RefreshSweepSeconds        int `mapstructure:"refresh_sweep_seconds"`
	StaleRetentionHours        int `mapstructure:"stale_retention_hours"`
	StaleSweepHours            int `mapstructure:"stale_sweep_hours"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("OLIMPO")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Olympiad format
	viper.BindEnv("olympiad.active_year", "OLYMPIAD_ACTIVE_YEAR")
	viper.BindEnv("olympiad.stage_count", "OLYMPIAD_STAGE_COUNT")

	viper.SetDefault("olympiad.stage_count", 3)
	viper.SetDefault("olympiad.stage2_top_n", 15)
	viper.SetDefault("olympiad.stage3_top_n", 5)
	viper.SetDefault("olympiad.default_attempts", 1)

	viper.SetDefault("monitor.inactivity_threshold_minutes", 10)
	viper.SetDefault("monitor.inactivity_debounce_minutes", 30)
	viper.SetDefault("monitor.inactivity_sweep_seconds", 120)
	viper.SetDefault("monitor.expiry_sweep_seconds", 30)
	viper.SetDefault("monitor.refresh_sweep_seconds", 60)
	viper.SetDefault("monitor.stale_retention_hours", 24)
	viper.SetDefault("monitor.stale_sweep_hours", 24)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Olympiad.StageCount != 2 && cfg.Olympiad.StageCount != 3 {
		return nil, fmt.Errorf("olympiad.stage_count must be 2 or 3, got %d", cfg.Olympiad.StageCount)
	}

	return &cfg, nil
}
