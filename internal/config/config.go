package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	Board     BoardConfig
	WebSocket WebSocketConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	StaticDir    string // empty disables static file serving
}

// BoardConfig holds board store settings.
type BoardConfig struct {
	DefaultName string
}

// WebSocketConfig holds per-connection settings.
type WebSocketConfig struct {
	SendBuffer   int
	WriteTimeout time.Duration
	ReadLimit    int64
	EventRate    float64
	EventBurst   int
}

// RateLimitConfig holds the per-IP limit for the REST API.
type RateLimitConfig struct {
	Rate  float64
	Burst int
}

// RedisConfig holds Redis connection settings for the observer mirror.
type RedisConfig struct {
	Addr         string // empty disables the mirror
	Password     string //nolint:gosec // G117: Redis connection config
	DB           int
	MirrorBuffer int
}

// Enabled reports whether a Redis address is configured.
func (c *RedisConfig) Enabled() bool { return c.Addr != "" }

// Load reads configuration from environment variables.
// Defaults are suitable for running a single local instance.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("ZENBOARD_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("ZENBOARD_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sendBuffer, err := getEnvInt("ZENBOARD_WS_SEND_BUFFER", 256)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	wsWriteTimeout, err := getEnvDuration("ZENBOARD_WS_WRITE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readLimit, err := getEnvInt("ZENBOARD_WS_READ_LIMIT", 1<<20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	eventRate, err := getEnvFloat("ZENBOARD_WS_EVENT_RATE", 60)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	eventBurst, err := getEnvInt("ZENBOARD_WS_EVENT_BURST", 120)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	httpRate, err := getEnvFloat("ZENBOARD_HTTP_RATE", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	httpBurst, err := getEnvInt("ZENBOARD_HTTP_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("ZENBOARD_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	mirrorBuffer, err := getEnvInt("ZENBOARD_MIRROR_BUFFER", 1024)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("ZENBOARD_SERVER_ADDR", ":3000"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  getEnvList("ZENBOARD_CORS_ORIGINS", []string{"*"}),
			StaticDir:    getEnv("ZENBOARD_STATIC_DIR", ""),
		},
		Board: BoardConfig{
			DefaultName: getEnv("ZENBOARD_DEFAULT_BOARD_NAME", "Main Board"),
		},
		WebSocket: WebSocketConfig{
			SendBuffer:   sendBuffer,
			WriteTimeout: wsWriteTimeout,
			ReadLimit:    int64(readLimit),
			EventRate:    eventRate,
			EventBurst:   eventBurst,
		},
		RateLimit: RateLimitConfig{
			Rate:  httpRate,
			Burst: httpBurst,
		},
		Redis: RedisConfig{
			Addr:         getEnv("ZENBOARD_REDIS_ADDR", ""),
			Password:     getEnv("ZENBOARD_REDIS_PASSWORD", ""),
			DB:           redisDB,
			MirrorBuffer: mirrorBuffer,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("ZENBOARD_SERVER_ADDR must not be blank")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("ZENBOARD_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("ZENBOARD_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if slices.Contains(c.Server.CORSOrigins, "*") {
		log.Warn().Msg("ZENBOARD_CORS_ORIGINS=* accepts any origin; restrict it for public deployments")
	}

	if strings.TrimSpace(c.Board.DefaultName) == "" {
		return errors.New("ZENBOARD_DEFAULT_BOARD_NAME must not be blank")
	}

	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("ZENBOARD_WS_SEND_BUFFER must be >= 1, got %d", c.WebSocket.SendBuffer)
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("ZENBOARD_WS_WRITE_TIMEOUT must be positive, got %s", c.WebSocket.WriteTimeout)
	}
	if c.WebSocket.ReadLimit < 1 {
		return fmt.Errorf("ZENBOARD_WS_READ_LIMIT must be >= 1, got %d", c.WebSocket.ReadLimit)
	}
	if c.WebSocket.EventRate <= 0 {
		return fmt.Errorf("ZENBOARD_WS_EVENT_RATE must be positive, got %g", c.WebSocket.EventRate)
	}
	if c.WebSocket.EventBurst < 1 {
		return fmt.Errorf("ZENBOARD_WS_EVENT_BURST must be >= 1, got %d", c.WebSocket.EventBurst)
	}

	if c.RateLimit.Rate <= 0 {
		return fmt.Errorf("ZENBOARD_HTTP_RATE must be positive, got %g", c.RateLimit.Rate)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("ZENBOARD_HTTP_BURST must be >= 1, got %d", c.RateLimit.Burst)
	}

	if c.Redis.DB < 0 {
		return fmt.Errorf("ZENBOARD_REDIS_DB must be >= 0, got %d", c.Redis.DB)
	}
	if c.Redis.MirrorBuffer < 1 {
		return fmt.Errorf("ZENBOARD_MIRROR_BUFFER must be >= 1, got %d", c.Redis.MirrorBuffer)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
