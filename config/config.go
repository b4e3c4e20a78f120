// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the placegeo settings from an optional YAML file,
// PLACEGEO_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/audiotour/placegeo/geocode"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// EnvPrefix prefixes every environment override, e.g. PLACEGEO_GEOCODER_DELAY.
	EnvPrefix = "PLACEGEO"

	ProviderNominatim = "nominatim"
	ProviderGoogle    = "google"

	DefaultThresholdMeters = 50.0
)

// Config holds the full application configuration.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Geocoder GeocoderConfig `yaml:"geocoder" mapstructure:"geocoder"`
	Enrich   EnrichConfig   `yaml:"enrich" mapstructure:"enrich"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates the data files.
type PathsConfig struct {
	PlacesDir     string `yaml:"places_dir" mapstructure:"places_dir"`
	OverridesFile string `yaml:"overrides_file" mapstructure:"overrides_file"`
	CacheFile     string `yaml:"cache_file" mapstructure:"cache_file"`
	LogFile       string `yaml:"log_file" mapstructure:"log_file"`
}

// GeocoderConfig configures the lookup provider.
type GeocoderConfig struct {
	Provider      string        `yaml:"provider" mapstructure:"provider"`
	Endpoint      string        `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	Limit         int           `yaml:"limit" mapstructure:"limit"`
	Delay         time.Duration `yaml:"delay" mapstructure:"delay"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	GoogleAPIKey  string        `yaml:"google_api_key" mapstructure:"google_api_key"`
	GoogleKeyName string        `yaml:"google_key_name" mapstructure:"google_key_name"`
	Classes       []string      `yaml:"classes" mapstructure:"classes"`
	Types         []string      `yaml:"types" mapstructure:"types"`
}

// EnrichConfig tunes the enrichment job.
type EnrichConfig struct {
	ThresholdMeters float64 `yaml:"threshold_meters" mapstructure:"threshold_meters"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads the configuration. When file is empty, placegeo.yaml in the
// working directory is used if present.
func Load(file, version string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("placegeo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("paths.places_dir", "data/places")
	v.SetDefault("paths.overrides_file", "data/geocode-overrides.json")
	v.SetDefault("paths.cache_file", "data/geocode-cache.json")
	v.SetDefault("paths.log_file", "data/geocode-log.json")
	v.SetDefault("geocoder.provider", ProviderNominatim)
	v.SetDefault("geocoder.endpoint", "")
	v.SetDefault("geocoder.user_agent", fmt.Sprintf("placegeo/%s (+https://github.com/audiotour/placegeo)", version))
	v.SetDefault("geocoder.limit", geocode.DefaultLimit)
	v.SetDefault("geocoder.delay", geocode.DefaultDelay)
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("geocoder.google_api_key", "")
	v.SetDefault("geocoder.google_key_name", "Tour Guide Geocoding Key")
	v.SetDefault("geocoder.classes", geocode.DefaultClasses)
	v.SetDefault("geocoder.types", geocode.DefaultTypes)
	v.SetDefault("enrich.threshold_meters", DefaultThresholdMeters)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the job cannot run with.
func (c *Config) Validate() error {
	if c.Enrich.ThresholdMeters <= 0 {
		return eris.Errorf("config: enrich.threshold_meters must be positive, got %v", c.Enrich.ThresholdMeters)
	}

	if c.Geocoder.Delay < 0 {
		return eris.Errorf("config: geocoder.delay must not be negative, got %s", c.Geocoder.Delay)
	}

	if c.Geocoder.Limit < 1 || c.Geocoder.Limit > 50 {
		return eris.Errorf("config: geocoder.limit must be between 1 and 50, got %d", c.Geocoder.Limit)
	}

	switch c.Geocoder.Provider {
	case ProviderNominatim, ProviderGoogle:
	default:
		return eris.Errorf("config: unknown geocoder.provider %q", c.Geocoder.Provider)
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		zapCfg.DisableStacktrace = true
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
