package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

// Config holds the server settings read from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	Storage  string
	MongoURI string
	MongoDB  string

	JWTSecret string
	JWTExpiry time.Duration

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	RateLimitRPS   float64
	RateLimitBurst int
	// TrustProxy keys clients by X-Forwarded-For/X-Real-IP. Enable only
	// behind a proxy that overwrites those headers.
	TrustProxy bool

	SeedAdminUsername string
	SeedAdminPassword string
}

// Load reads the configuration from the environment, first loading any
// .env files given (or ./.env when none are). A missing file is not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		Storage:           getEnv("STORAGE", StorageMongo),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:           getEnv("MONGO_DB", "repair_desk"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		MQTTBroker:        os.Getenv("MQTT_BROKER"),
		MQTTTopic:         getEnv("MQTT_TOPIC", "repair-desk/works"),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "repair-desk-server"),
		SeedAdminUsername: os.Getenv("SEED_ADMIN_USERNAME"),
		SeedAdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
	}

	var err error
	if cfg.JWTExpiry, err = time.ParseDuration(getEnv("JWT_EXPIRY", "24h")); err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY: %w", err)
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "10"), 64); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getEnv("RATE_LIMIT_BURST", "20")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	if cfg.TrustProxy, err = strconv.ParseBool(getEnv("TRUST_PROXY", "false")); err != nil {
		return nil, fmt.Errorf("invalid TRUST_PROXY: %w", err)
	}

	cfg.Storage = strings.ToLower(cfg.Storage)
	if cfg.Storage != StorageMongo && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("invalid STORAGE %q: must be %s or %s", cfg.Storage, StorageMongo, StorageMemory)
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, using development default")
	}
	return cfg, nil
}

// ConfigureLogging applies the level and format to the standard logrus logger.
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
