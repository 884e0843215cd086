// Package config loads the server configuration from a YAML file, a .env
// file and MOX_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the server configuration.
type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Logging   LoggingConfig  `mapstructure:"logging"`
	Database  DatabaseConfig `mapstructure:"database"`
	AI        AIConfig       `mapstructure:"ai"`
	Game      GameConfig     `mapstructure:"game"`
	ReplayDir string         `mapstructure:"replay_dir"`
}

type ServerConfig struct {
	Lobby     ListenerConfig `mapstructure:"lobby"`
	GRPC      GRPCConfig     `mapstructure:"grpc"`
	WebSocket ListenerConfig `mapstructure:"websocket"`
	// FeedBuffer bounds the events queued for a watcher.
	FeedBuffer int `mapstructure:"feed_buffer"`
}

type ListenerConfig struct {
	Address string `mapstructure:"address"`
}

type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig selects the game store. Driver is postgres or sqlite; an
// empty DSN disables persistence.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AIConfig struct {
	Depth    int           `mapstructure:"depth"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxNodes int           `mapstructure:"max_nodes"`
}

type GameConfig struct {
	StartingLife      int               `mapstructure:"starting_life"`
	HandSize          int               `mapstructure:"hand_size"`
	Seats             int               `mapstructure:"seats"`
	ChoiceTimeout     time.Duration     `mapstructure:"choice_timeout"`
	Linger            time.Duration     `mapstructure:"linger"`
	AllowRegistration bool              `mapstructure:"allow_registration"`
	Users             map[string]string `mapstructure:"users"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.lobby.address", ":7100")
	v.SetDefault("server.grpc.address", ":7101")
	v.SetDefault("server.grpc.max_concurrent_streams", 1000)
	v.SetDefault("server.websocket.address", ":7102")
	v.SetDefault("server.feed_buffer", 1<<16)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")

	v.SetDefault("ai.depth", 2)
	v.SetDefault("ai.timeout", time.Second)
	v.SetDefault("ai.max_nodes", 5000)

	v.SetDefault("game.starting_life", 20)
	v.SetDefault("game.hand_size", 7)
	v.SetDefault("game.seats", 2)
	v.SetDefault("game.choice_timeout", 5*time.Minute)
	v.SetDefault("game.linger", time.Minute)
	v.SetDefault("game.allow_registration", true)

	v.SetDefault("replay_dir", "")
}

// Load reads the configuration at path. A missing file leaves the defaults
// and the environment in effect.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !missing(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func missing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx", "sqlite", "":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Game.Seats < 2 {
		return fmt.Errorf("game.seats must be at least 2, got %d", c.Game.Seats)
	}
	if c.Game.StartingLife <= 0 || c.Game.HandSize < 0 {
		return errors.New("game.starting_life must be positive and game.hand_size not negative")
	}
	if c.AI.Depth <= 0 {
		return fmt.Errorf("ai.depth must be positive, got %d", c.AI.Depth)
	}
	return nil
}
