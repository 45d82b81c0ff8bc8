// Package config provides configuration parsing for the meteocache server.
//
// Every setting can be given as a command-line flag or as an environment
// variable; flags take precedence over the environment, which takes
// precedence over the defaults. A .env file in the working directory, if
// present, is loaded into the environment before parsing.
//
// Example usage:
//
//	cfg, err := config.ParseFlags()
//	if err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/HatiCode/meteocache/pkg/openmeteo"
)

// Location is a coordinate the warmer keeps fresh in the forecast cache.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Config holds all server configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	CacheDir      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	ForecastTTL     time.Duration
	SafetyMargin    time.Duration
	CleanupInterval time.Duration
	RecentMonths    int

	ArchiveURL        string
	ForecastURL       string
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	RequestBurst      int
	BreakerFailures   int
	BreakerTimeout    time.Duration

	WarmLocations []Location
	WarmInterval  time.Duration
	WarmDays      int
}

// ParseFlags loads .env, then parses os.Args into a validated Config.
func ParseFlags() (*Config, error) {
	_ = godotenv.Load()
	return Parse(flag.CommandLine, os.Args[1:])
}

// Parse registers the server flags on fs and parses args.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	var warm string

	fs.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "file"), "Partition storage backend: file, redis or memory")
	fs.StringVar(&cfg.CacheDir, "cache-dir", getEnv("CACHE_DIR", "./cache"), "Directory for file partition storage")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 0), "Redis partition TTL (0 keeps partitions forever)")

	fs.DurationVar(&cfg.ForecastTTL, "forecast-ttl", getEnvDuration("FORECAST_TTL", 60*time.Minute), "Maximum age of a cached forecast")
	fs.DurationVar(&cfg.SafetyMargin, "safety-margin", getEnvDuration("SAFETY_MARGIN", 3*time.Hour), "Cached forecasts expire this long before their last point")
	fs.DurationVar(&cfg.CleanupInterval, "cleanup-interval", getEnvDuration("CLEANUP_INTERVAL", 10*time.Minute), "Interval between forecast cache sweeps")
	fs.IntVar(&cfg.RecentMonths, "recent-months", getEnvInt("RECENT_MONTHS", 5), "Months before the current one that are always refetched")

	fs.StringVar(&cfg.ArchiveURL, "archive-url", getEnv("ARCHIVE_URL", openmeteo.ArchiveBaseURL), "Open-Meteo archive endpoint")
	fs.StringVar(&cfg.ForecastURL, "forecast-url", getEnv("FORECAST_URL", openmeteo.ForecastBaseURL), "Open-Meteo forecast endpoint")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", getEnvDuration("HTTP_TIMEOUT", 30*time.Second), "Upstream request timeout")
	fs.Float64Var(&cfg.RequestsPerSecond, "rps", getEnvFloat("UPSTREAM_RPS", 0), "Upstream requests per second (0 = unlimited)")
	fs.IntVar(&cfg.RequestBurst, "burst", getEnvInt("UPSTREAM_BURST", 1), "Upstream request burst")
	fs.IntVar(&cfg.BreakerFailures, "breaker-failures", getEnvInt("BREAKER_FAILURES", 5), "Consecutive upstream failures that open the circuit")
	fs.DurationVar(&cfg.BreakerTimeout, "breaker-timeout", getEnvDuration("BREAKER_TIMEOUT", 30*time.Second), "How long the circuit stays open")

	fs.StringVar(&warm, "warm-locations", getEnv("WARM_LOCATIONS", ""), "Locations to keep warm, as lat,lon;lat,lon")
	fs.DurationVar(&cfg.WarmInterval, "warm-interval", getEnvDuration("WARM_INTERVAL", 30*time.Minute), "Forecast warm-up interval")
	fs.IntVar(&cfg.WarmDays, "warm-days", getEnvInt("WARM_DAYS", openmeteo.DefaultForecastDays), "Forecast days fetched by the warmer")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	locs, err := ParseLocations(warm)
	if err != nil {
		return nil, err
	}
	cfg.WarmLocations = locs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage {
	case "file":
		if c.CacheDir == "" {
			errs = append(errs, errors.New("cache-dir is required when storage=file"))
		}
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis-addr is required when storage=redis"))
		}
		if c.RedisDB < 0 {
			errs = append(errs, errors.New("redis-db must be >= 0"))
		}
		if c.RedisTTL < 0 {
			errs = append(errs, errors.New("redis-ttl must be >= 0"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("invalid storage %q (must be file, redis or memory)", c.Storage))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log-format %q (must be text or json)", c.LogFormat))
	}

	if c.ForecastTTL <= 0 {
		errs = append(errs, errors.New("forecast-ttl must be > 0"))
	}
	if c.SafetyMargin < 0 {
		errs = append(errs, errors.New("safety-margin must be >= 0"))
	}
	if c.RecentMonths < 0 {
		errs = append(errs, errors.New("recent-months must be >= 0"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http-timeout must be > 0"))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("rps must be >= 0"))
	}
	if c.BreakerFailures <= 0 {
		errs = append(errs, errors.New("breaker-failures must be > 0"))
	}
	if len(c.WarmLocations) > 0 {
		if c.WarmInterval < time.Minute {
			errs = append(errs, errors.New("warm-interval must be at least 1m"))
		}
		if c.WarmDays < 1 || c.WarmDays > openmeteo.MaxForecastDays {
			errs = append(errs, fmt.Errorf("warm-days must be in range [1, %d]", openmeteo.MaxForecastDays))
		}
	}

	return errors.Join(errs...)
}

// ParseLocations parses "lat,lon;lat,lon". An empty string yields no locations.
func ParseLocations(s string) ([]Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var locs []Location
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		coords := strings.Split(part, ",")
		if len(coords) != 2 {
			return nil, fmt.Errorf("invalid location %q: want lat,lon", part)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q: %w", part, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q: %w", part, err)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("location %q out of range", part)
		}
		locs = append(locs, Location{Latitude: lat, Longitude: lon})
	}
	return locs, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
