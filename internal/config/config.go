package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Preference store backends.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Geolocation modes.
const (
	GeoModeIP     = "ip"
	GeoModeStatic = "static"
	GeoModeDenied = "denied"
	GeoModeOff    = "off"
)

var validate = validator.New()

// Config holds all runtime settings, read from the environment.
type Config struct {
	Port string `validate:"required,numeric"`

	GeminiAPIKey  string `validate:"required"`
	GeminiModel   string `validate:"required"`
	GeminiBaseURL string `validate:"required,url"`

	PrefsBackend  string `validate:"oneof=redis postgres"`
	RedisURL      string `validate:"required_if=PrefsBackend redis"`
	DatabaseURL   string `validate:"required_if=PrefsBackend postgres"`
	MigrationsDir string

	// RefreshInterval is the period of the automatic background refresh.
	RefreshInterval time.Duration `validate:"gt=0"`
	QueryTimeout    time.Duration `validate:"gt=0"`
	PanelCacheTTL   time.Duration `validate:"gte=0"`

	GeolocationMode string  `validate:"oneof=ip static denied off"`
	GeolocationLat  float64 `validate:"gte=-90,lte=90"`
	GeolocationLon  float64 `validate:"gte=-180,lte=180"`
	GeoIPURL        string  `validate:"required_if=GeolocationMode ip"`

	LogLevel slog.Level
}

// Load reads configuration from the environment with defaults. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Port:            getenvDefault("PORT", "8080"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getenvDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:   getenvDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		PrefsBackend:    strings.ToLower(getenvDefault("PREFS_BACKEND", BackendRedis)),
		RedisURL:        os.Getenv("REDIS_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MigrationsDir:   getenvDefault("MIGRATIONS_DIR", "migrations"),
		GeolocationMode: strings.ToLower(getenvDefault("GEOLOCATION_MODE", GeoModeIP)),
		GeoIPURL:        getenvDefault("GEOIP_URL", "http://ip-api.com/json"),
	}

	var err error
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.QueryTimeout, err = getenvDuration("QUERY_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.PanelCacheTTL, err = getenvDuration("PANEL_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.GeolocationLat, err = getenvFloat("GEOLOCATION_LAT", 0); err != nil {
		return nil, err
	}
	if cfg.GeolocationLon, err = getenvFloat("GEOLOCATION_LON", 0); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
