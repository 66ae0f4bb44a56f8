// Package config loads the service configuration from YAML.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// StoreConfig configures the embedded database. Use ":memory:" for an
// ephemeral store.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// MarketDataConfig selects the price feed.
type MarketDataConfig struct {
	Provider string `yaml:"provider" validate:"required,oneof=binance polygon"`
	// PolygonAPIKey is required when the provider is polygon. Falls back to
	// the POLYGON_API_KEY environment variable.
	PolygonAPIKey string `yaml:"polygon_api_key"`
}

// LogConfig sets the logging verbosity.
type LogConfig struct {
	Level string `yaml:"level" validate:"required,oneof=debug info warn error"`
}

// Config is the root service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Log        LogConfig        `yaml:"log"`
}

var validate = validator.New()

// DefaultConfig returns the configuration used when no file is given:
// Binance market data, an on-disk store next to the binary and port 8080.
func DefaultConfig() Config {
	return Config{
		Server:     ServerConfig{Addr: ":8080"},
		Store:      StoreConfig{Path: "argo-signal.db"},
		MarketData: MarketDataConfig{Provider: "binance", PolygonAPIKey: ""},
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads and validates the YAML config file at path. Omitted fields keep
// their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "failed to read config file %s", path)
	}

	return Parse(data)
}

// Parse unmarshals and validates YAML config content over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to parse config", err)
	}

	if cfg.MarketData.PolygonAPIKey == "" {
		cfg.MarketData.PolygonAPIKey = os.Getenv("POLYGON_API_KEY")
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid config", err)
	}

	if cfg.MarketData.Provider == "polygon" && cfg.MarketData.PolygonAPIKey == "" {
		return Config{}, errors.New(errors.ErrCodeInvalidParameter, "polygon provider requires an API key")
	}

	return cfg, nil
}
