// Package config loads settings from defaults, an optional .todo.yaml file,
// a .env file and TODO_* environment variables, and opens the persistence
// gateway they select.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"todo-app/store"
)

const (
	configName = ".todo"
	envPrefix  = "TODO"
)

// Backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the resolved application configuration.
type Config struct {
	Backend string       `mapstructure:"backend" validate:"oneof=file redis sqlite memory"`
	Data    DataConfig   `mapstructure:"data"`
	Redis   RedisConfig  `mapstructure:"redis"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
	Log     LogConfig    `mapstructure:"log"`
	Watch   bool         `mapstructure:"watch"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	File  string `mapstructure:"file"`
}

var validate = validator.New()

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir := defaultDataDir()
	v.SetDefault("backend", BackendFile)
	v.SetDefault("data.dir", dataDir)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.prefix", "todo:")
	v.SetDefault("sqlite.path", filepath.Join(dataDir, "todo.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dataDir, "todo.log"))
	v.SetDefault("watch", true)
	return v
}

// Load reads .env, then cfgFile or the first .todo.yaml found in the
// working directory or $HOME, and unmarshals the result. A missing config
// file is not an error unless cfgFile names it explicitly.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// OpenGateway opens the gateway selected by Backend. The returned close
// function releases it and is never nil.
func (c Config) OpenGateway() (store.Gateway, func() error, error) {
	noop := func() error { return nil }
	switch c.Backend {
	case BackendMemory:
		return store.NewMemory(), noop, nil
	case BackendFile, "":
		return store.NewFile(afero.NewOsFs(), c.Data.Dir), noop, nil
	case BackendRedis:
		client, err := store.DialRedis(c.Redis.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		gw := store.NewRedis(client, c.Redis.Prefix)
		return gw, gw.Close, nil
	case BackendSQLite:
		gw, err := store.OpenSQLite(c.SQLite.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite: %w", err)
		}
		return gw, gw.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "todo-app")
	}
	return ".todo-data"
}
