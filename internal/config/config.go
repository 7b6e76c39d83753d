// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"FileCatalog/internal/catalog"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	minJWTSecretLen = 32
)

type Config struct {
	Port     string
	LogLevel string

	Store        string
	FilePath     string
	DatabaseURL  string
	DocumentName string

	IDStrategy   string
	StrictWrites bool

	JWTSecret       string
	WriteRateLimit  int
	WriteRateWindow time.Duration

	MetricsEnabled   bool
	MetricsTokenHash string
}

// WritesEnabled reports whether the mutating routes should be mounted.
func (c Config) WritesEnabled() bool { return c.JWTSecret != "" }

func (c Config) Addr() string { return ":" + c.Port }

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CATALOG_STORE", StoreFile)
	v.SetDefault("CATALOG_FILE", "./products.json")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("CATALOG_DOCUMENT", "products")
	v.SetDefault("CATALOG_ID_STRATEGY", catalog.IDStrategyLength)
	v.SetDefault("CATALOG_STRICT_WRITES", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("WRITE_RATE_LIMIT", 30)
	v.SetDefault("WRITE_RATE_WINDOW", time.Minute)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_TOKEN_HASH", "")
}

// Load reads the configuration from environment variables over defaults.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		Port:             v.GetString("PORT"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		Store:            v.GetString("CATALOG_STORE"),
		FilePath:         v.GetString("CATALOG_FILE"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		DocumentName:     v.GetString("CATALOG_DOCUMENT"),
		IDStrategy:       v.GetString("CATALOG_ID_STRATEGY"),
		StrictWrites:     v.GetBool("CATALOG_STRICT_WRITES"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		WriteRateLimit:   v.GetInt("WRITE_RATE_LIMIT"),
		WriteRateWindow:  v.GetDuration("WRITE_RATE_WINDOW"),
		MetricsEnabled:   v.GetBool("METRICS_ENABLED"),
		MetricsTokenHash: v.GetString("METRICS_TOKEN_HASH"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}

	switch c.Store {
	case StoreFile:
		if c.FilePath == "" {
			errs = append(errs, errors.New("CATALOG_FILE is required for the file store"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
		if c.DocumentName == "" {
			errs = append(errs, errors.New("CATALOG_DOCUMENT is required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_STORE %q", c.Store))
	}

	if _, err := catalog.ParseIDStrategy(c.IDStrategy); err != nil {
		errs = append(errs, fmt.Errorf("CATALOG_ID_STRATEGY: %w", err))
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d chars", minJWTSecretLen))
	}
	if c.WriteRateLimit < 0 {
		errs = append(errs, errors.New("WRITE_RATE_LIMIT must not be negative"))
	}
	if c.WriteRateWindow <= 0 {
		errs = append(errs, errors.New("WRITE_RATE_WINDOW must be positive"))
	}

	return errors.Join(errs...)
}
