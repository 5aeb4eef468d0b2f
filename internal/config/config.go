package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type APIConfig struct {
	Addr            string
	DatabaseURL     string
	RedisURL        string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	RateLimitPerSec float64
	RateLimitBurst  int
}

type WorkerConfig struct {
	DatabaseURL string
	RedisURL    string
	SweepEvery  time.Duration
	RotateEvery time.Duration
	BurnEvery   time.Duration
	HeatEvery   time.Duration
}

// LoadAPIFromEnv reads API configuration. A .env file is honored when
// present; real environment variables win.
func LoadAPIFromEnv() (APIConfig, error) {
	_ = godotenv.Load()

	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("GRIDMIND_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:        strings.TrimSpace(os.Getenv("REDIS_URL")),
		AllowedOrigins:  splitCSV(envDefault("GRIDMIND_ALLOWED_ORIGINS", "*")),
		RequestTimeout:  envDurationDefault("GRIDMIND_REQUEST_TIMEOUT", 30*time.Second),
		RateLimitPerSec: envFloatDefault("GRIDMIND_RATE_LIMIT_PER_SEC", 10),
		RateLimitBurst:  envIntDefault("GRIDMIND_RATE_LIMIT_BURST", 20),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// LoadWorkerFromEnv reads scheduler configuration. The Redis URL is optional
// in both binaries; an empty value degrades to the in-process store.
func LoadWorkerFromEnv() (WorkerConfig, error) {
	_ = godotenv.Load()

	cfg := WorkerConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		SweepEvery:  envDurationDefault("GRIDMIND_SWEEP_EVERY", 30*time.Minute),
		RotateEvery: envDurationDefault("GRIDMIND_ROTATE_EVERY", time.Hour),
		BurnEvery:   envDurationDefault("GRIDMIND_BURN_EVERY", time.Hour),
		HeatEvery:   envDurationDefault("GRIDMIND_HEAT_EVERY", time.Hour),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
