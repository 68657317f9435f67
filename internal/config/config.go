package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every externally supplied setting of the service.
type Config struct {
	Service  ServiceConfig
	HTTP     HTTPConfig
	Presence PresenceConfig
	WS       WSConfig
	AMQP     AMQPConfig
	Tracing  TracingConfig
	Logger   LoggerConfig
}

type ServiceConfig struct {
	Name        string
	Env         string
	Version     string
	DebugRoutes bool
	SeedWelcome bool
}

type HTTPConfig struct {
	Port         string
	GRPCAddr     string
	AllowOrigins []string
}

// PresenceConfig tunes the proximity engine and the sweeper.
type PresenceConfig struct {
	SweepInterval     time.Duration
	InactiveThreshold time.Duration
	NotifyRadiusKm    float64
	DefaultRadiusKm   int
}

type WSConfig struct {
	SendBuffer   int
	WriteTimeout time.Duration
	ReadLimit    int64
}

type AMQPConfig struct {
	URL             string
	Exchange        string
	AuditRoutingKey string
}

type TracingConfig struct {
	Endpoint string
}

type LoggerConfig struct {
	Level  string
	Format string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "geo-chat-service"),
			Env:         getEnv("SERVICE_ENV", "development"),
			Version:     getEnv("SERVICE_VERSION", "1.0.0"),
			DebugRoutes: getEnvBool("DEBUG_ROUTES", false),
			SeedWelcome: getEnvBool("SEED_WELCOME_MESSAGE", true),
		},
		HTTP: HTTPConfig{
			Port:         getEnv("PORT", "3001"),
			GRPCAddr:     getEnv("GRPC_ADDR", ":9091"),
			AllowOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Presence: PresenceConfig{
			SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Minute),
			InactiveThreshold: getEnvDuration("INACTIVE_THRESHOLD", 5*time.Minute),
			NotifyRadiusKm:    getEnvFloat("NOTIFY_RADIUS_KM", 10),
			DefaultRadiusKm:   getEnvInt("DEFAULT_RADIUS_KM", 5),
		},
		WS: WSConfig{
			SendBuffer:   getEnvInt("SEND_BUFFER", 256),
			WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
			ReadLimit:    int64(getEnvInt("READ_LIMIT", 64*1024)),
		},
		AMQP: AMQPConfig{
			URL:             getEnv("AMQP_URL", ""),
			Exchange:        getEnv("AMQP_EXCHANGE", "geochat.events"),
			AuditRoutingKey: getEnv("AUDIT_ROUTING_KEY", "audit.geochat"),
		},
		Tracing: TracingConfig{
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Presence.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.Presence.SweepInterval)
	}
	if c.Presence.InactiveThreshold <= 0 {
		return fmt.Errorf("INACTIVE_THRESHOLD must be positive, got %s", c.Presence.InactiveThreshold)
	}
	if c.Presence.NotifyRadiusKm <= 0 {
		return fmt.Errorf("NOTIFY_RADIUS_KM must be positive, got %v", c.Presence.NotifyRadiusKm)
	}
	switch c.Presence.DefaultRadiusKm {
	case 1, 5, 10:
	default:
		return fmt.Errorf("DEFAULT_RADIUS_KM must be 1, 5 or 10, got %d", c.Presence.DefaultRadiusKm)
	}
	if c.WS.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.WS.SendBuffer)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
