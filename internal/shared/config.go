package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment override, e.g. SPOTIPRO_SPOTIFY_CLIENT_ID.
const EnvPrefix = "SPOTIPRO_"

//go:embed config.example.toml
var exampleConf []byte

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify   SpotifyConfig   `toml:"spotify" envPrefix:"SPOTIFY_"`
	Storage   StorageConfig   `toml:"storage" envPrefix:"STORAGE_"`
	Server    ServerConfig    `toml:"server" envPrefix:"SERVER_"`
	Dashboard DashboardConfig `toml:"dashboard" envPrefix:"DASHBOARD_"`
	Log       LogConfig       `toml:"log" envPrefix:"LOG_"`
}

// SpotifyConfig contains the public client registration and provider endpoints.
//
// There is no client secret: the app is a PKCE public client.
type SpotifyConfig struct {
	ClientID    string   `toml:"client_id" env:"CLIENT_ID" validate:"required,ne=your_spotify_client_id"`
	RedirectURI string   `toml:"redirect_uri" env:"REDIRECT_URI" validate:"required,url"`
	AuthURL     string   `toml:"auth_url" env:"AUTH_URL" validate:"required,url"`
	TokenURL    string   `toml:"token_url" env:"TOKEN_URL" validate:"required,url"`
	APIURL      string   `toml:"api_url" env:"API_URL" validate:"required,url"`
	Scopes      []string `toml:"scopes" env:"SCOPES" envSeparator:" " validate:"dive,required"`
}

// StorageConfig selects the durable client storage backend.
type StorageConfig struct {
	Driver       string `toml:"driver" env:"DRIVER" validate:"oneof=sqlite memory"`
	Path         string `toml:"path" env:"PATH" validate:"required_if=Driver sqlite"`
	MaxOpenConns int    `toml:"max_open_conns" env:"MAX_OPEN_CONNS" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"MAX_IDLE_CONNS" validate:"gte=0"`
}

// ServerConfig contains local web client settings.
type ServerConfig struct {
	Host string `toml:"host" env:"HOST" validate:"required"`
	Port int    `toml:"port" env:"PORT" validate:"min=1,max=65535"`
}

// DashboardConfig tunes the concurrent dashboard loader.
type DashboardConfig struct {
	Workers   int     `toml:"workers" env:"WORKERS" validate:"gte=0,lte=10"`
	RateLimit float64 `toml:"rate_limit" env:"RATE_LIMIT" validate:"gte=0"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn error fatal"`
	File  string `toml:"file" env:"FILE"`
}

// Addr returns the host:port the local web client listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Validate checks the configuration and returns an [ErrInvalidConfig] wrapped error describing every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Errorf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(msgs...))
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// ResolveConfig loads the config at path when it exists, falling back to defaults, then applies .env and environment overrides.
func ResolveConfig(path string, dotenv ...string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := ApplyEnv(config, dotenv...); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv loads any existing .env files into the process environment and overlays SPOTIPRO_* variables onto config.
//
// Variables already present in the environment win over .env values.
func ApplyEnv(config *Config, dotenv ...string) error {
	var existing []string
	for _, p := range dotenv {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}

	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config back to path as TOML.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
