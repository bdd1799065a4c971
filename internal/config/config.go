// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/unclebandit/whatsapp-campaigns/internal/phone"
)

type Config struct {
	Port        string
	StoreDriver string

	DatabaseURL string
	DBUser      string
	DBPassword  string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string

	AMQPURL       string
	AMQPConsumers int

	SenderMode      string
	EngineURL       string
	EngineTimeout   time.Duration
	MockSuccessRate float64

	SendInterval time.Duration
	PrefixSwaps  []phone.PrefixSwap
	SchedulePoll time.Duration

	LogLevel  string
	LogFormat string
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	SenderBridge = "bridge"
	SenderMock   = "mock"
)

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	swaps, err := phone.ParsePrefixSwaps(getEnv("PHONE_PREFIX_SWAPS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		StoreDriver:     getEnv("STORE_DRIVER", StorePostgres),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", ""),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnv("DB_PORT", "5432"),
		DBName:          getEnv("DB_NAME", "campaigns"),
		DBSSLMode:       getEnv("DB_SSLMODE", "disable"),
		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPConsumers:   getInt("AMQP_CONSUMERS", 4),
		SenderMode:      getEnv("SENDER_MODE", SenderBridge),
		EngineURL:       getEnv("WHATSAPP_ENGINE_URL", "http://localhost:3000"),
		EngineTimeout:   time.Duration(getInt("WHATSAPP_ENGINE_TIMEOUT", 30)) * time.Second,
		MockSuccessRate: getFloat("MOCK_SUCCESS_RATE", 0.9),
		SendInterval:    time.Duration(getInt("SEND_INTERVAL_MS", 500)) * time.Millisecond,
		PrefixSwaps:     swaps,
		SchedulePoll:    time.Duration(getInt("SCHEDULE_POLL_SECONDS", 30)) * time.Second,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
	}

	switch cfg.StoreDriver {
	case StorePostgres, StoreMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	switch cfg.SenderMode {
	case SenderBridge, SenderMock:
	default:
		return nil, fmt.Errorf("unknown SENDER_MODE %q", cfg.SenderMode)
	}
	return cfg, nil
}

// DSN prefers DATABASE_URL and otherwise assembles one from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		log.Printf("⚠️ invalid %s=%q, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		log.Printf("⚠️ invalid %s=%q, using %v", key, raw, defaultValue)
		return defaultValue
	}
	return v
}
