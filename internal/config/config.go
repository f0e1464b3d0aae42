package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"jewelry_checkout/internal/gateway"

	"github.com/joho/godotenv"
)

// Config хранит все основные настройки приложения
type Config struct {
	DatabaseURL      string
	SessionCapacity  int
	SessionNumShards int
	HTTPPort         string
	MetricsPort      string
	KafkaBrokers     []string

	// Настройки симулируемого платежного шлюза
	GatewayLatency time.Duration
	CardFailRate   float64
	StripeFailRate float64
	PayPalFailRate float64
	UploadFailRate float64
}

// Load читает конфигурацию из .env файла
// и предоставляет значения по умолчанию
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, using environment variables")
	}

	dbUser := os.Getenv("POSTGRES_USER")
	dbPassword := os.Getenv("POSTGRES_PASSWORD")
	dbHost := os.Getenv("POSTGRES_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbPort := os.Getenv("POSTGRES_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}
	dbName := os.Getenv("POSTGRES_DB")

	sessionCapacity := getEnvAsInt("SESSION_CACHE_CAPACITY", 1024)
	sessionNumShards := getEnvAsInt("SESSION_CACHE_NUM_SHARDS", 64)

	httpPort := os.Getenv("HTTP_PORT")
	if httpPort == "" {
		httpPort = "8081"
	}

	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "9090"
	}

	kafkaBroker := os.Getenv("KAFKA_BROKER")
	if kafkaBroker == "" {
		kafkaBroker = "localhost:9092"
	}

	// Тайминги и доли отказов шлюза по умолчанию берутся у симулятора
	simDefaults := gateway.DefaultSimulatorConfig()
	gatewayLatencyMs := getEnvAsInt("GATEWAY_LATENCY_MS", int(simDefaults.Latency/time.Millisecond))

	return &Config{
		DatabaseURL: fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			dbUser, dbPassword, dbHost, dbPort, dbName),
		SessionCapacity:  sessionCapacity,
		SessionNumShards: sessionNumShards,
		HTTPPort:         ":" + httpPort,
		MetricsPort:      ":" + metricsPort,
		KafkaBrokers:     []string{kafkaBroker},

		GatewayLatency: time.Duration(gatewayLatencyMs) * time.Millisecond,
		CardFailRate:   getEnvAsFloat("GATEWAY_CARD_FAIL_RATE", simDefaults.CardFailRate),
		StripeFailRate: getEnvAsFloat("GATEWAY_STRIPE_FAIL_RATE", simDefaults.StripeFailRate),
		PayPalFailRate: getEnvAsFloat("GATEWAY_PAYPAL_FAIL_RATE", simDefaults.PayPalFailRate),
		UploadFailRate: getEnvAsFloat("GATEWAY_UPLOAD_FAIL_RATE", simDefaults.UploadFailRate),
	}
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn(fmt.Sprintf("Invalid value for env var '%s', using default value.", key))
		return fallback
	}

	return value
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn(fmt.Sprintf("Invalid value for env var '%s', using default value.", key))
		return fallback
	}

	return value
}
