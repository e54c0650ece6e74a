package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without /usr/share/zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultDatabaseIDs lists the database targets read from DB<n>_* variables.
var DefaultDatabaseIDs = []string{"db1", "db2"}

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	NewsEndpoint       string        `mapstructure:"news_endpoint"`
	PageLimit          int           `mapstructure:"page_limit"`
	CursorFallbackMs   int64         `mapstructure:"cursor_fallback_ms"`
	TimeZone           string        `mapstructure:"time_zone"`
	DefaultTitle       string        `mapstructure:"default_title"`
	UserAgent          string        `mapstructure:"user_agent"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	SinksFile string     `mapstructure:"sinks_file"`
	Databases []Database `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Database carries the connection parameters of one relational target as read
// from the environment. Empty values are passed through untouched; they show
// up as connection failures when the target is written to.
type Database struct {
	ID       string `json:"id"`
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     string `json:"port,omitempty"`
	User     string `json:"user"`
	Password string `json:"-"`
	Name     string `json:"database"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "news-archiver")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("news_endpoint", "https://quote.ru/api/v1/news/for-main-page")
	v.SetDefault("page_limit", 20)
	v.SetDefault("cursor_fallback_ms", 1000000)
	v.SetDefault("time_zone", "Europe/Moscow")
	v.SetDefault("default_title", "No title")
	v.SetDefault("user_agent", "news-archiver/1.0")
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("sinks_file", "")
	v.SetDefault("storage_type", "memory")
	v.SetDefault("bbolt_path", "./data/seen.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	for _, id := range DefaultDatabaseIDs {
		v.SetDefault(id+"_driver", "mysql")
		for _, field := range []string{"user", "password", "host", "port", "database"} {
			v.SetDefault(id+"_"+field, "")
		}
	}

	v.AllowEmptyEnv(false)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.NewsEndpoint) == "" {
		return nil, fmt.Errorf("news_endpoint is required")
	}
	if cfg.PageLimit <= 0 {
		return nil, fmt.Errorf("invalid page_limit (must be positive)")
	}
	if cfg.CursorFallbackMs <= 0 {
		return nil, fmt.Errorf("invalid cursor_fallback_ms (must be positive milliseconds)")
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", cfg.TimeZone, err)
	}

	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	cfg.Databases = make([]Database, 0, len(DefaultDatabaseIDs))
	for _, id := range DefaultDatabaseIDs {
		cfg.Databases = append(cfg.Databases, loadDatabase(v, id))
	}

	return &cfg, nil
}

func loadDatabase(v *viper.Viper, id string) Database {
	return Database{
		ID:       id,
		Driver:   strings.ToLower(strings.TrimSpace(v.GetString(id + "_driver"))),
		Host:     v.GetString(id + "_host"),
		Port:     v.GetString(id + "_port"),
		User:     v.GetString(id + "_user"),
		Password: v.GetString(id + "_password"),
		Name:     v.GetString(id + "_database"),
	}
}
