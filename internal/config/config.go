package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/pricing"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"

	StoreRedisPostgres = "redis_postgres"
	StoreMemory        = "memory"
)

type TelegramConfig struct {
	Token    string  `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
	// OperatorChatID receives failure reports; 0 means the first admin.
	OperatorChatID int64  `yaml:"operator_chat_id" envconfig:"OPERATOR_CHAT_ID"`
	RunMode        string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeout is the server-side wait of getUpdates in long-poll mode.
	LongPollTimeout time.Duration `yaml:"longpoll_timeout" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT"`
}

type WebhookConfig struct {
	// URL is registered with SetWebhook at startup when non-empty.
	URL           string        `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen        string        `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Path          string        `yaml:"path" envconfig:"WEBHOOK_PATH"`
	SecretToken   string        `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
	HandleTimeout time.Duration `yaml:"handle_timeout" envconfig:"WEBHOOK_HANDLE_TIMEOUT"`
}

type RedisConfig struct {
	Host     string `yaml:"host" envconfig:"REDIS_HOST"`
	Port     string `yaml:"port" envconfig:"REDIS_PORT"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type PostgresConfig struct {
	// DSN may be empty; the store then builds one from POSTGRES_* variables.
	DSN string `yaml:"dsn" envconfig:"POSTGRES_DSN"`
}

type StoreConfig struct {
	Driver      string        `yaml:"driver" envconfig:"STORE_DRIVER"`
	SessionTTL  time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	SkipLockTTL time.Duration `yaml:"skip_lock_ttl" envconfig:"SKIP_LOCK_TTL"`
}

type JobsConfig struct {
	SweepInterval   time.Duration `yaml:"sweep_interval" envconfig:"JOBS_SWEEP_INTERVAL"`
	RenewalInterval time.Duration `yaml:"renewal_interval" envconfig:"JOBS_RENEWAL_INTERVAL"`
	RenewalWindow   time.Duration `yaml:"renewal_window" envconfig:"JOBS_RENEWAL_WINDOW"`
	PendingInterval time.Duration `yaml:"pending_interval" envconfig:"JOBS_PENDING_INTERVAL"`
	PendingLookback time.Duration `yaml:"pending_lookback" envconfig:"JOBS_PENDING_LOOKBACK"`
}

type PaymentConfig struct {
	Instructions   string `yaml:"instructions" envconfig:"PAYMENT_INSTRUCTIONS"`
	SupportContact string `yaml:"support_contact" envconfig:"SUPPORT_CONTACT"`
}

// PlanConfig overrides one catalog entry. Price is a decimal string.
type PlanConfig struct {
	Type  string `yaml:"type"`
	Days  int    `yaml:"days"`
	Price string `yaml:"price"`
	Name  string `yaml:"name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Store    StoreConfig    `yaml:"store"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Payment  PaymentConfig  `yaml:"payment"`
	Plans    []PlanConfig   `yaml:"plans" ignored:"true"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Defaults returns the configuration used when nothing overrides a key.
func Defaults() Config {
	return Config{
		Telegram: TelegramConfig{
			RunMode:         RunModeWebhook,
			LongPollTimeout: 50 * time.Second,
		},
		Webhook: WebhookConfig{
			Listen:        ":8080",
			Path:          "/webhook",
			HandleTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Host:   "localhost",
			Port:   "6379",
			Prefix: "subscriptions_bot",
		},
		Store: StoreConfig{
			Driver:      StoreRedisPostgres,
			SessionTTL:  time.Hour,
			SkipLockTTL: 15 * time.Second,
		},
		Jobs: JobsConfig{
			SweepInterval:   time.Hour,
			RenewalInterval: 24 * time.Hour,
			RenewalWindow:   3 * 24 * time.Hour,
			PendingInterval: 6 * time.Hour,
			PendingLookback: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads envFile into the process environment (existing variables win),
// then the optional YAML file, then environment overrides. Missing files are
// skipped.
func Load(envFile, yamlFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := Defaults()

	if yamlFile != "" {
		data, err := os.ReadFile(yamlFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and canonicalizes enum values.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	if len(cfg.Telegram.AdminIDs) == 0 {
		return fmt.Errorf("at least one admin id is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeWebhook
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if !strings.HasPrefix(cfg.Webhook.Path, "/") {
			cfg.Webhook.Path = "/" + cfg.Webhook.Path
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeout < 0 {
			return fmt.Errorf("telegram.longpoll_timeout must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	driver := strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch driver {
	case StoreRedisPostgres, StoreMemory:
	default:
		return fmt.Errorf("invalid store.driver %q; allowed: redis_postgres, memory", cfg.Store.Driver)
	}
	cfg.Store.Driver = driver

	for name, d := range map[string]time.Duration{
		"store.session_ttl":     cfg.Store.SessionTTL,
		"store.skip_lock_ttl":   cfg.Store.SkipLockTTL,
		"jobs.renewal_window":   cfg.Jobs.RenewalWindow,
		"jobs.pending_lookback": cfg.Jobs.PendingLookback,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	// A zero job interval disables the job.
	if cfg.Jobs.SweepInterval < 0 || cfg.Jobs.RenewalInterval < 0 || cfg.Jobs.PendingInterval < 0 {
		return fmt.Errorf("job intervals must be >= 0")
	}

	if _, err := pricing.NewCatalog(cfg.PlanOverrides()); err != nil {
		return fmt.Errorf("plans: %w", err)
	}
	return nil
}

func (c *Config) PlanOverrides() []pricing.PlanOverride {
	out := make([]pricing.PlanOverride, 0, len(c.Plans))
	for _, p := range c.Plans {
		out = append(out, pricing.PlanOverride{
			Type:  types.PlanType(strings.ToLower(strings.TrimSpace(p.Type))),
			Days:  p.Days,
			Price: p.Price,
			Name:  p.Name,
		})
	}
	return out
}
