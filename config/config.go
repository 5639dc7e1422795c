package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Quotes QuotesConfig `mapstructure:"quotes"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	Port            string        `mapstructure:"port"`
	SSLMode         string        `mapstructure:"sslmode"`
	Timezone        string        `mapstructure:"timezone"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

// ConnString returns DSN when set, otherwise builds one from the discrete fields.
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.Timezone)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QuotesConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Convert        string        `mapstructure:"convert"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Cache          string        `mapstructure:"cache"`
	RedisKey       string        `mapstructure:"redis_key"`
	RefreshCron    string        `mapstructure:"refresh_cron"`
	RefreshOnStart bool          `mapstructure:"refresh_on_start"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	PasswordHash string        `mapstructure:"password_hash"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

// Load reads the YAML file at path (unless envOnly) and overlays environment
// variables. A missing file is not an error.
func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	// Variable names the tracker has always read from .env.
	bindings := map[string]string{
		"db.dsn":             "DB_DSN",
		"db.host":            "DB_HOST",
		"db.user":            "DB_USER",
		"db.password":        "DB_PASSWORD",
		"db.name":            "DB_NAME",
		"db.port":            "DB_PORT",
		"redis.addr":         "REDIS_ADDR",
		"redis.password":     "REDIS_PASSWORD",
		"quotes.api_key":     "COINMARKETCAP_API_KEY",
		"auth.jwt_secret":    "JWT_SECRET",
		"auth.password_hash": "OWNER_PASSWORD_HASH",
		"server.http_addr":   "HTTP_ADDR",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, err
		}
	}

	if !envOnly && path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "crypto_tracker")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.log_queries", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("quotes.base_url", "https://pro-api.coinmarketcap.com")
	v.SetDefault("quotes.api_key", "")
	v.SetDefault("quotes.convert", "USD")
	v.SetDefault("quotes.timeout", "15s")
	v.SetDefault("quotes.cache", "memory")
	v.SetDefault("quotes.redis_key", "crypto:quotes")
	v.SetDefault("quotes.refresh_cron", "@every 5m")
	v.SetDefault("quotes.refresh_on_start", true)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.token_ttl", "24h")
}

// InitDB opens the PostgreSQL connection pool.
func InitDB(cfg DBConfig) (*gorm.DB, error) {
	mode := logger.Silent
	if cfg.LogQueries {
		mode = logger.Info
	}
	db, err := gorm.Open(postgres.Open(cfg.ConnString()), &gorm.Config{
		Logger: logger.Default.LogMode(mode),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// InitRedis connects to Redis and verifies the connection with a PING.
func InitRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}
