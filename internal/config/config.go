package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL   string        `env:"DATABASE_URL,required"`
	JWTSecret     string        `env:"JWT_SECRET,required"`
	JWTExpiry     time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	AdminToken    string        `env:"ADMIN_TOKEN,required"`
	WebhookSecret string        `env:"WEBHOOK_SECRET,required"`
	Port          int           `env:"PORT" envDefault:"8080"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string        `env:"APP_ENV" envDefault:"production"`

	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`
	MigrationsDir  string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	GatewayBaseURL      string        `env:"GATEWAY_BASE_URL" envDefault:"http://mock-gateway:8081"`
	GatewayClientID     string        `env:"GATEWAY_CLIENT_ID,required"`
	GatewayClientSecret string        `env:"GATEWAY_CLIENT_SECRET,required"`
	GatewayTimeout      time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`

	DepositExpirationS int   `env:"DEPOSIT_EXPIRATION_S" envDefault:"3600"`
	MaxAmountCents     int64 `env:"MAX_AMOUNT_CENTS" envDefault:"100000000"`
	LedgerMaxRetries   int   `env:"LEDGER_MAX_RETRIES" envDefault:"3"`

	AffiliateCommissionPercent decimal.Decimal `env:"AFFILIATE_COMMISSION_PERCENT" envDefault:"0.10"`
	AffiliateBaseURL           string          `env:"AFFILIATE_BASE_URL" envDefault:"https://app.example.com/r/"`

	WebhookPollInterval   time.Duration `env:"WEBHOOK_POLL_INTERVAL" envDefault:"2s"`
	OutboxPollInterval    time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	StaleWithdrawSchedule string        `env:"STALE_WITHDRAW_SCHEDULE" envDefault:"@every 5m"`
	StaleWithdrawAfter    time.Duration `env:"STALE_WITHDRAW_AFTER" envDefault:"30m"`

	OutboxBroker     string   `env:"OUTBOX_BROKER" envDefault:"log"`
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic       string   `env:"KAFKA_TOPIC" envDefault:"pix-ledger.events"`
	RabbitMQURL      string   `env:"RABBITMQ_URL"`
	RabbitMQExchange string   `env:"RABBITMQ_EXCHANGE" envDefault:"pix-ledger"`
	RedisURL         string   `env:"REDIS_URL,required,notEmpty"`
	RedisStream      string   `env:"REDIS_STREAM" envDefault:"pix-ledger:events"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config.Load: %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.AffiliateCommissionPercent.IsNegative() || c.AffiliateCommissionPercent.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("AFFILIATE_COMMISSION_PERCENT must be within [0, 1], got %s", c.AffiliateCommissionPercent)
	}
	switch c.OutboxBroker {
	case "log":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when OUTBOX_BROKER=kafka")
		}
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when OUTBOX_BROKER=rabbitmq")
		}
	case "redis":
	default:
		return fmt.Errorf("unknown OUTBOX_BROKER %q", c.OutboxBroker)
	}
	return nil
}

func (c *Config) DepositExpiration() time.Duration {
	return time.Duration(c.DepositExpirationS) * time.Second
}
