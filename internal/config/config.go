package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Redis       RedisConfig
	Room        RoomConfig
	LiveKit     LiveKitConfig
	App         AppConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RedisConfig struct {
	// Addr may be left empty to run against the in-process store
	// (tests, local development without Redis).
	Addr     string
	Password string
	DB       int
}

type RoomConfig struct {
	// TTL is written once at room creation and never refreshed by activity.
	TTL time.Duration
}

type LiveKitConfig struct {
	APIKey    string
	APISecret string
	TokenTTL  time.Duration
}

type AppConfig struct {
	// URL is the public base used to build shareable join links.
	URL         string
	AllowOrigin string
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Room: RoomConfig{
			TTL: getEnvAsDuration("ROOM_TTL", 24*time.Hour),
		},
		LiveKit: LiveKitConfig{
			APIKey:    getEnv("LIVEKIT_API_KEY", "devkey"),
			APISecret: getEnv("LIVEKIT_API_SECRET", "devsecret_devsecret_devsecret_00"),
			TokenTTL:  getEnvAsDuration("LIVEKIT_TOKEN_TTL", 24*time.Hour),
		},
		App: AppConfig{
			URL:         getEnv("APP_URL", "http://localhost:3000"),
			AllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "" {
		return fmt.Errorf("LiveKit API credentials must be set")
	}
	if c.Room.TTL <= 0 {
		return fmt.Errorf("room TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
