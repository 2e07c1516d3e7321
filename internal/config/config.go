package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Partition names one yearly partition and where it lives.
// DSN is a Postgres URL or a SQLite file path; empty for the memory driver.
type Partition struct {
	Year int
	DSN  string
}

type Config struct {
	Port       string
	APIKey     string
	Driver     string
	Partitions []Partition
	RedisURL   string
	CacheTTL   time.Duration
	SeedPath   string

	RateLimitPerMinute int
	RateLimitBurst     int
}

// LoadDotenv loads a .env file when present. A missing file is not an error.
func LoadDotenv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
}

// Get returns the environment value for key, or fallback when unset or empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads the service configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:     Get("PORT", "8080"),
		APIKey:   strings.TrimSpace(os.Getenv("API_KEY")),
		Driver:   strings.ToLower(strings.TrimSpace(Get("STORE_DRIVER", "postgres"))),
		RedisURL: strings.TrimSpace(os.Getenv("REDIS_URL")),
		SeedPath: os.Getenv("SEED_PATH"),
	}

	ttl, err := time.ParseDuration(Get("CACHE_TTL", "0s"))
	if err != nil {
		return Config{}, fmt.Errorf("load config: CACHE_TTL: %w", err)
	}
	if ttl < 0 {
		return Config{}, errors.New("load config: CACHE_TTL must not be negative")
	}
	cfg.CacheTTL = ttl

	if cfg.RateLimitPerMinute, err = nonNegativeInt("RATE_LIMIT_PER_MINUTE", "0"); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.RateLimitBurst, err = nonNegativeInt("RATE_LIMIT_BURST", "10"); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	raw := os.Getenv("PARTITIONS")
	if strings.TrimSpace(raw) == "" {
		return Config{}, errors.New("load config: PARTITIONS is required")
	}
	cfg.Partitions, err = ParsePartitions(raw, cfg.Driver != "memory")
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

func nonNegativeInt(key, fallback string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(Get(key, fallback)))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// ParsePartitions parses "2023=dsn,2024=dsn". With requireDSN false a bare
// year list ("2023,2024") is accepted as well. Years are returned ascending.
func ParsePartitions(raw string, requireDSN bool) ([]Partition, error) {
	seen := map[int]struct{}{}
	out := []Partition{}

	for i, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		yearStr, dsn, hasDSN := strings.Cut(item, "=")
		year, err := strconv.Atoi(strings.TrimSpace(yearStr))
		if err != nil || year < 1 || year > 9999 {
			return nil, fmt.Errorf("parse partitions: item #%d: invalid year %q", i+1, yearStr)
		}

		dsn = strings.TrimSpace(dsn)
		if requireDSN && (!hasDSN || dsn == "") {
			return nil, fmt.Errorf("parse partitions: year %d: dsn is required", year)
		}

		if _, dup := seen[year]; dup {
			return nil, fmt.Errorf("parse partitions: year %d configured twice", year)
		}
		seen[year] = struct{}{}
		out = append(out, Partition{Year: year, DSN: dsn})
	}

	if len(out) == 0 {
		return nil, errors.New("parse partitions: no partitions configured")
	}

	slices.SortFunc(out, func(a, b Partition) int { return a.Year - b.Year })
	return out, nil
}
