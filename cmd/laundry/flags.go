package main

import (
	"errors"
	"flag"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

type Config struct {
	Address            string        `env:"RUN_ADDRESS" envDefault:"localhost:8080"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"INFO"`
	DatabaseConnection string        `env:"DATABASE_URI"`
	JWTSecret          string        `env:"JWT_SECRET"`
	PaystackSecretKey  string        `env:"PAYSTACK_SECRET_KEY"`
	PaystackBaseURL    string        `env:"PAYSTACK_BASE_URL" envDefault:"https://api.paystack.co"`
	PaystackTimeout    time.Duration `env:"PAYSTACK_TIMEOUT" envDefault:"10s"`
	AppURL             string        `env:"APP_URL" envDefault:"http://localhost:3000"`
	Currency           string        `env:"CURRENCY" envDefault:"KES"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RabbitURL          string        `env:"RABBIT_URL"`
	EventsExchange     string        `env:"EVENTS_EXCHANGE" envDefault:"laundry.events"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`
	ReconcileWorkers   int           `env:"RECONCILE_WORKERS" envDefault:"2"`
	ReconcilePageSize  int           `env:"RECONCILE_PAGE_SIZE" envDefault:"50"`
	RateLimitRPS       float64       `env:"RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"5"`
}

func NewConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	address := flag.String("a", cfg.Address, "{Host:port} for server")
	loglevel := flag.String("l", cfg.LogLevel, "Log level for server")
	databaseConnection := flag.String("d", cfg.DatabaseConnection, "Database connection string")
	appURL := flag.String("u", cfg.AppURL, "Public URL of the booking UI")
	redisAddr := flag.String("r", cfg.RedisAddr, "Redis address for webhook locks")
	reconcileInterval := flag.Duration("i", cfg.ReconcileInterval, "Reconciliation interval, 0 disables")
	reconcileWorkers := flag.Int("w", cfg.ReconcileWorkers, "Size of reconciliation worker pool")

	flag.Parse()

	cfg.Address = *address
	cfg.LogLevel = *loglevel
	cfg.DatabaseConnection = *databaseConnection
	cfg.AppURL = *appURL
	cfg.RedisAddr = *redisAddr
	cfg.ReconcileInterval = *reconcileInterval
	cfg.ReconcileWorkers = *reconcileWorkers

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("ENV JWT_SECRET must be set")
	}
	if c.PaystackSecretKey == "" {
		return errors.New("ENV PAYSTACK_SECRET_KEY must be set")
	}
	if c.ReconcileInterval > 0 && c.ReconcileWorkers < 1 {
		return errors.New("reconciliation needs at least one worker")
	}
	return nil
}
