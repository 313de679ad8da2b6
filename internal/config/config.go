package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pentia/chatcore/internal/log"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Bus    BusConfig    `mapstructure:"bus"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Feed   FeedConfig   `mapstructure:"feed"`
	Push   PushConfig   `mapstructure:"push"`
	Links  LinksConfig  `mapstructure:"links"`
	WS     WSConfig     `mapstructure:"ws"`
	Log    log.Config   `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the persistence backend: "postgres" or "pebble".
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	PebblePath string `mapstructure:"pebble_path"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// DSN builds the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Name)
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// BusConfig selects the live event bus: "redis" or "local".
type BusConfig struct {
	Driver string `mapstructure:"driver"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type FeedConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type PushConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	// EmbeddedFanout runs the fan-out trigger inside the server process,
	// for single-node setups on the local bus.
	EmbeddedFanout bool `mapstructure:"embedded_fanout"`
}

type LinksConfig struct {
	Prefix string `mapstructure:"prefix"`
}

type WSConfig struct {
	SendRate  float64 `mapstructure:"send_rate"`
	SendBurst int     `mapstructure:"send_burst"`
}

// Load reads an optional .env file, an optional YAML config file at path and
// environment overrides (e.g. STORE_DRIVER, REDIS_ADDRESS, JWT_SECRET).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.pebble_path", "data/chat")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "chat")
	v.SetDefault("db.password", "chat_dev_password")
	v.SetDefault("db.name", "chat")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("bus.driver", "redis")
	v.SetDefault("jwt.secret", "dev-secret-change-me")
	v.SetDefault("feed.page_size", 50)
	v.SetDefault("push.credentials_file", "")
	v.SetDefault("push.embedded_fanout", false)
	v.SetDefault("links.prefix", "app://")
	v.SetDefault("ws.send_rate", 5)
	v.SetDefault("ws.send_burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "pebble":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Bus.Driver {
	case "redis", "local":
	default:
		return fmt.Errorf("unknown bus driver %q", c.Bus.Driver)
	}
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("feed.page_size must be positive, got %d", c.Feed.PageSize)
	}
	return nil
}
