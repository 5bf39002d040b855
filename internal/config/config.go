// Package config loads ordermesh configuration from a YAML file and
// environment variables, with documented defaults for every setting.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Transport mode names.
const (
	TransportMemory = "memory"
	TransportNATS   = "nats"
)

// Consumer names double as durable queue names on the transport.
const (
	ConsumerOrderStore    = "order-store"
	ConsumerAnalytics     = "analytics"
	ConsumerNotifications = "notifications"
)

// Config is the full ordermesh configuration.
type Config struct {
	Transport  string           `yaml:"transport" mapstructure:"transport"`
	NATS       NATSConfig       `yaml:"nats" mapstructure:"nats"`
	Consumers  ConsumersConfig  `yaml:"consumers" mapstructure:"consumers"`
	OrderStore OrderStoreConfig `yaml:"order_store" mapstructure:"order_store"`
	Notify     NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// NATSConfig holds NATS connection and stream settings.
type NATSConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Stream  string `yaml:"stream" mapstructure:"stream"`
	Subject string `yaml:"subject" mapstructure:"subject"`
}

// ConsumersConfig tunes the poll loops and the transport's delivery
// contract.
type ConsumersConfig struct {
	// BatchSize is the maximum messages per receive (transport limit 10).
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`

	// WaitTime is the long-poll wait for at least one message.
	WaitTime time.Duration `yaml:"wait_time" mapstructure:"wait_time"`

	// PollDelay is the pause between batch steps.
	PollDelay time.Duration `yaml:"poll_delay" mapstructure:"poll_delay"`

	// VisibilityWindow is how long a received message stays hidden before
	// it becomes redeliverable.
	VisibilityWindow time.Duration `yaml:"visibility_window" mapstructure:"visibility_window"`

	// MaxDeliver bounds redelivery before a message is quarantined.
	MaxDeliver int `yaml:"max_deliver" mapstructure:"max_deliver"`
}

// OrderStoreConfig selects the order-store projection backend.
type OrderStoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `yaml:"backend" mapstructure:"backend"`

	// DatabaseURL is the Postgres connection string for the postgres
	// backend.
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`

	// MigrationsPath is the migration source for the postgres backend.
	MigrationsPath string `yaml:"migrations_path" mapstructure:"migrations_path"`
}

// NotifyConfig selects the notification delivery capability.
type NotifyConfig struct {
	// WebhookURL, when set, delivers notifications by HTTP POST in
	// addition to the structured log.
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`

	// WebhookTimeout bounds each webhook call.
	WebhookTimeout time.Duration `yaml:"webhook_timeout" mapstructure:"webhook_timeout"`

	// DedupeRedisAddr, when set, enables the Redis delivery ledger so
	// redelivered envelopes do not renotify.
	DedupeRedisAddr string `yaml:"dedupe_redis_addr" mapstructure:"dedupe_redis_addr"`

	// DedupeTTL is how long a delivery claim is remembered.
	DedupeTTL time.Duration `yaml:"dedupe_ttl" mapstructure:"dedupe_ttl"`
}

// MetricsConfig controls the Prometheus endpoint of the consume command.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Port    int  `yaml:"port" mapstructure:"port"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from the given file (optional) and environment
// variables prefixed ORDERMESH_. Missing files are not an error; defaults
// apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ordermesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ordermesh")
	}

	v.SetEnvPrefix("ORDERMESH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if path != "" {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No discoverable config file: defaults and env only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport", TransportNATS)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream", "ORDERS")
	v.SetDefault("nats.subject", "orders.events.lifecycle")

	v.SetDefault("consumers.batch_size", 10)
	v.SetDefault("consumers.wait_time", "20s")
	v.SetDefault("consumers.poll_delay", "100ms")
	v.SetDefault("consumers.visibility_window", "30s")
	v.SetDefault("consumers.max_deliver", 5)

	v.SetDefault("order_store.backend", "memory")
	v.SetDefault("order_store.database_url", "")
	v.SetDefault("order_store.migrations_path", "migrations")

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.webhook_timeout", "10s")
	v.SetDefault("notify.dedupe_redis_addr", "")
	v.SetDefault("notify.dedupe_ttl", "24h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9190)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults cannot fail to unmarshal.
		panic(err)
	}
	return &cfg
}

// WriteDefault writes the default configuration as YAML to path,
// refusing to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
