package config

import (
	"time"

	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN      string
	MongoURI         string
	RedisAddr        string
	RabbitURL        string
	HTTPAddr         string
	GatewayBaseURL   string
	GatewayKeyID     string
	GatewayKeySecret string
	Currency         string
	DraftTTL         time.Duration
	OTLPEndpoint     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	draftTTL, _ := time.ParseDuration(os.Getenv("DRAFT_TTL"))
	if draftTTL == 0 {
		draftTTL = 30 * time.Minute
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	currency := os.Getenv("GATEWAY_CURRENCY")
	if currency == "" {
		currency = "INR"
	}

	return &Config{
		PostgresDSN:      os.Getenv("PG_DSN"),
		MongoURI:         os.Getenv("MONGO_URI"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RabbitURL:        os.Getenv("RABBIT_URL"),
		HTTPAddr:         httpAddr,
		GatewayBaseURL:   os.Getenv("GATEWAY_BASE_URL"),
		GatewayKeyID:     os.Getenv("GATEWAY_KEY_ID"),
		GatewayKeySecret: os.Getenv("GATEWAY_KEY_SECRET"),
		Currency:         currency,
		DraftTTL:         draftTTL,
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
