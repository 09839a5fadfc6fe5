package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		Driver string
		URI    string
		Name   string
		Path   string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
	}
	Cache struct {
		RedisURL   string
		TTLSeconds int
	}
	Events struct {
		Brokers string
		Topic   string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level string
	}
}

var envBindings = map[string]string{
	"server.port":          "PORT",
	"database.driver":      "DB_DRIVER",
	"database.uri":         "MONGO_URI",
	"database.name":        "MONGO_DB",
	"database.path":        "SQLITE_PATH",
	"auth.jwtsecret":       "JWT_SECRET",
	"auth.tokenttlminutes": "TOKEN_TTL_MINUTES",
	"cache.redisurl":       "REDIS_URL",
	"cache.ttlseconds":     "CACHE_TTL_SEC",
	"events.brokers":       "KAFKA_BROKERS",
	"events.topic":         "KAFKA_TODO_TOPIC",
	"storage.bucket":       "EXPORT_BUCKET",
	"storage.keyprefix":    "EXPORT_PREFIX",
	"storage.region":       "AWS_REGION",
	"storage.endpoint":     "S3_ENDPOINT",
	"aws.profile":          "AWS_PROFILE",
	"log.level":            "LOG_LEVEL",
}

// Load reads configuration from environment variables, an optional .env file
// and an optional config file in the working directory.
func Load() (Config, error) {
	// variables already set in the environment win over .env
	_ = godotenv.Load()

	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	v.SetDefault("server.port", "5000")
	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.name", "todo")
	v.SetDefault("database.path", "data/todo.db")
	v.SetDefault("auth.tokenttlminutes", 6000)
	v.SetDefault("cache.ttlseconds", 300)
	v.SetDefault("events.topic", "todo-events")
	v.SetDefault("storage.keyprefix", "todo-exports")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Database.Driver {
	case DriverMongo:
		if strings.TrimSpace(c.Database.URI) == "" {
			return errors.New("MONGO_URI is required for the mongo driver")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return errors.New("TOKEN_TTL_MINUTES must be positive")
	}
	if strings.TrimSpace(c.Cache.RedisURL) != "" && c.Cache.TTLSeconds <= 0 {
		return errors.New("CACHE_TTL_SEC must be positive when REDIS_URL is set")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Server.Port
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
