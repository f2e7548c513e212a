package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting of the resolver binaries. Values come from app.env and the environment.
type Config struct {
	DBSource      string `mapstructure:"DB_SOURCE"`
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	MapQuestKey         string        `mapstructure:"MAPQUEST_KEY"`
	MapQuestBaseURL     string        `mapstructure:"MAPQUEST_BASE_URL"`
	GeoNamesUser        string        `mapstructure:"GEONAMES_USER"`
	GeoNamesBaseURL     string        `mapstructure:"GEONAMES_BASE_URL"`
	GeoNamesMinInterval time.Duration `mapstructure:"GEONAMES_MIN_INTERVAL"`
	HTTPTimeout         time.Duration `mapstructure:"HTTP_TIMEOUT"` // zero means no timeout

	MaxFuzzy int `mapstructure:"MAX_FUZZY"`
	ZipFuzzy int `mapstructure:"ZIP_FUZZY"`

	AddressThreshold  float64 `mapstructure:"ADDRESS_THRESHOLD"`
	NameThreshold     float64 `mapstructure:"NAME_THRESHOLD"`
	NameOnlyThreshold float64 `mapstructure:"NAME_ONLY_THRESHOLD"`
}

// MinGeoNamesInterval is the shortest spacing between place name service calls.
const MinGeoNamesInterval = 100 * time.Millisecond

var (
	ErrMissingDBSource    = errors.New("config: DB_SOURCE is required")
	ErrMissingCredentials = errors.New("config: MAPQUEST_KEY and GEONAMES_USER are required")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_SOURCE", "")
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAPQUEST_KEY", "")
	v.SetDefault("MAPQUEST_BASE_URL", "http://open.mapquestapi.com")
	v.SetDefault("GEONAMES_USER", "")
	v.SetDefault("GEONAMES_BASE_URL", "http://api.geonames.org")
	v.SetDefault("GEONAMES_MIN_INTERVAL", MinGeoNamesInterval)
	v.SetDefault("HTTP_TIMEOUT", time.Duration(0))
	v.SetDefault("MAX_FUZZY", 2)
	v.SetDefault("ZIP_FUZZY", 6)
	v.SetDefault("ADDRESS_THRESHOLD", 4.0)
	v.SetDefault("NAME_THRESHOLD", 5.0)
	v.SetDefault("NAME_ONLY_THRESHOLD", 10.0)
}

// LoadConfig reads app.env from path, if present, and overlays environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("config: failed to decode config: %w", err)
	}

	if config.MaxFuzzy < 0 || config.MaxFuzzy > 10 || config.ZipFuzzy < 0 || config.ZipFuzzy > 10 {
		return config, fmt.Errorf("config: fuzziness levels must be within [0, 10]")
	}

	if config.GeoNamesMinInterval < MinGeoNamesInterval {
		return config, fmt.Errorf("config: GEONAMES_MIN_INTERVAL must be at least %s, got %s", MinGeoNamesInterval, config.GeoNamesMinInterval)
	}

	if config.HTTPTimeout < 0 {
		return config, fmt.Errorf("config: HTTP_TIMEOUT must not be negative")
	}

	return config, nil
}

// RequireStore checks the settings needed to open the record store.
func (c Config) RequireStore() error {
	if c.DBSource == "" {
		return ErrMissingDBSource
	}
	return nil
}

// RequireGeocoders checks the provider credentials. There are no built-in fallbacks.
func (c Config) RequireGeocoders() error {
	if c.MapQuestKey == "" || c.GeoNamesUser == "" {
		return ErrMissingCredentials
	}
	return nil
}
