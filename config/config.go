package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all portal client configuration.
type Config struct {
	APIBaseURL     string
	SessionDBPath  string
	TokenKey       string
	ToastTTL       time.Duration
	RequestTimeout time.Duration
	LocationWait   time.Duration
}

// Load reads configuration from a .env file (if present) and the
// environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:     getEnv("CIVIC_API_URL", "http://127.0.0.1:8000"),
		SessionDBPath:  getEnv("CIVIC_SESSION_DB", "./session.db"),
		TokenKey:       os.Getenv("CIVIC_TOKEN_KEY"),
		ToastTTL:       getDuration("CIVIC_TOAST_TTL", 3*time.Second),
		RequestTimeout: getDuration("CIVIC_REQUEST_TIMEOUT", 30*time.Second),
		LocationWait:   getDuration("CIVIC_LOCATION_WAIT", 15*time.Second),
	}

	if cfg.TokenKey == "" {
		log.Println("Warning: CIVIC_TOKEN_KEY not set, using a default key. This is NOT secure for production!")
		cfg.TokenKey = "default-key-for-development-only"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("Warning: invalid duration %q for %s, using %v", val, key, fallback)
		return fallback
	}
	return d
}
