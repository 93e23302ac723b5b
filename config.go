package main

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type config struct {
	HTTPAddr         string        `yaml:"http_addr"`
	DatabaseURL      string        `yaml:"database_url"`
	SQLitePath       string        `yaml:"sqlite_path"`
	JWTSecret        string        `yaml:"jwt_secret"`
	SuggestBaseURL   string        `yaml:"suggest_base_url"`
	SuggestToken     string        `yaml:"suggest_token"`
	SuggestTimeout   time.Duration `yaml:"suggest_timeout"`
	SuggestThreshold float64       `yaml:"suggest_threshold"`
	SuggestFloor     float64       `yaml:"suggest_floor"`
	CatalogSource    string        `yaml:"catalog_source"`
	CatalogPath      string        `yaml:"catalog_path"`
	CatalogWatch     bool          `yaml:"catalog_watch"`
	DatasetManifest  string        `yaml:"dataset_manifest"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	SessionSweep     string        `yaml:"session_sweep"`
}

const (
	catalogSourceFile     = "file"
	catalogSourcePostgres = "postgres"
)

// loadConfig reads env defaults, then applies MAPPER_CONFIG when set.
func loadConfig() (config, error) {
	cfg := config{
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		SQLitePath:       getenvDefault("SQLITE_PATH", ""),
		JWTSecret:        getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		SuggestBaseURL:   getenvDefault("SUGGEST_BASE_URL", ""),
		SuggestToken:     getenvDefault("SUGGEST_TOKEN", ""),
		SuggestTimeout:   getenvDuration("SUGGEST_TIMEOUT", 10*time.Second),
		SuggestThreshold: getenvFloatDefault("SUGGEST_THRESHOLD", 0.7),
		SuggestFloor:     getenvFloatDefault("SUGGEST_FLOOR", 0.3),
		CatalogSource:    getenvDefault("CATALOG_SOURCE", catalogSourceFile),
		CatalogPath:      getenvDefault("CATALOG_PATH", ""),
		CatalogWatch:     getenvBool("CATALOG_WATCH", true),
		DatasetManifest:  getenvDefault("DATASET_MANIFEST", ""),
		SessionTTL:       getenvDuration("SESSION_TTL", 30*time.Minute),
		SessionSweep:     getenvDefault("SESSION_SWEEP", "@every 1m"),
	}

	if path := os.Getenv("MAPPER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: http_addr is required")
	}
	if c.SuggestThreshold < 0 || c.SuggestThreshold > 1 {
		return errors.New("config: suggest_threshold must be within [0,1]")
	}
	if c.SuggestFloor < 0 || c.SuggestFloor > 1 {
		return errors.New("config: suggest_floor must be within [0,1]")
	}
	switch c.CatalogSource {
	case catalogSourceFile:
	case catalogSourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: catalog_source postgres needs database_url")
		}
	default:
		return errors.New("config: catalog_source must be file or postgres")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
