package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything read from the environment at startup. Values
// are fixed for the lifetime of the process.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	NumberCallInterval time.Duration // gap between called numbers in an active round
	PollInterval       time.Duration // scheduler scan cadence
	LockLease          time.Duration // round lock lease

	JackpotThreshold int // win qualifies for the jackpot share at <= this many calls

	HouseRate   float64
	WinnerRate  float64
	JackpotRate float64
}

// Load reads .env plus environment variables and validates the result.
// Missing endpoints or a broken commission split are startup errors.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, reading environment variables")
	}

	cfg := &Config{
		Port:               envOr("PORT", "8000"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		NumberCallInterval: time.Duration(envIntOr("NUMBER_CALL_INTERVAL", 5)) * time.Second,
		PollInterval:       time.Second,
		LockLease:          5 * time.Second,
		JackpotThreshold:   envIntOr("JACKPOT_THRESHOLD", 40),
		HouseRate:          envFloatOr("HOUSE_COMMISSION", 0.20),
		WinnerRate:         envFloatOr("WINNER_COMMISSION", 0.70),
		JackpotRate:        envFloatOr("JACKPOT_COMMISSION", 0.10),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.NumberCallInterval <= 0 {
		return nil, fmt.Errorf("NUMBER_CALL_INTERVAL must be positive")
	}
	if cfg.JackpotThreshold < 1 || cfg.JackpotThreshold > 75 {
		return nil, fmt.Errorf("JACKPOT_THRESHOLD must be in 1..75, got %d", cfg.JackpotThreshold)
	}
	sum := cfg.HouseRate + cfg.WinnerRate + cfg.JackpotRate
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("commission rates must sum to 1.0, got %.4f", sum)
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloatOr(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
