package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

// ClickHouseConfig holds the connection settings for the analytics store.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// KafkaConfig describes the brokers and the topics used by the message bus.
type KafkaConfig struct {
	BootstrapServers string `yaml:"bootstrap_servers"`
	ConsumerGroup    string `yaml:"consumer_group"`
	DLQTopic         string `yaml:"dlq_topic"`
	RequestTimeout   int    `yaml:"request_timeout_seconds"`
}

// Brokers splits the comma separated bootstrap list.
func (k KafkaConfig) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(k.BootstrapServers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// GatewayConfig configures the card gateway used by the payment facade.
type GatewayConfig struct {
	APIKey           string   `yaml:"api_key"`
	EncryptionKey    string   `yaml:"encryption_key"`
	DeclineAbove     float64  `yaml:"decline_above"`
	DeclinedSuffixes []string `yaml:"declined_suffixes"`
}

// PaymentsConfig groups the payment workflow settings.
type PaymentsConfig struct {
	// EncryptionKey protects card fields at rest. Must be at least 32 bytes.
	EncryptionKey string        `yaml:"encryption_key"`
	Gateway       GatewayConfig `yaml:"gateway"`
}

// RateLimitConfig stores the per-IP request limits.
type RateLimitConfig struct {
	// Strategy is "fixed" or "sliding".
	Strategy      string `yaml:"strategy"`
	Limit         int    `yaml:"limit"`
	WindowSeconds int    `yaml:"window_seconds"`
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

type Config struct {
	App struct {
		Env string `yaml:"env"`
	} `yaml:"app"`
	Server struct {
		Port        string `yaml:"port"`
		MetricsPort string `yaml:"metrics_port"`
	} `yaml:"server"`
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	Kafka KafkaConfig `yaml:"kafka"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Jaeger     struct {
		Port string `yaml:"port"`
	} `yaml:"jaeger"`
	OIDC struct {
		URL      string `yaml:"url"`
		ClientID string `yaml:"client_id"`
	} `yaml:"oidc"`
	JWT struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Payments  PaymentsConfig  `yaml:"payments"`
	Jobs      struct {
		CertificationSweep string `yaml:"certification_sweep"`
	} `yaml:"jobs"`
}

// Bootstrap loads an optional .env file, then the YAML file named by CONFIG_PATH.
func Bootstrap() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

func Load(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Environment variables are substituted into the raw YAML before parsing.
	expandedFile := os.ExpandEnv(string(file))

	if err := yaml.Unmarshal([]byte(expandedFile), config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "academy"
	}
	if c.Kafka.DLQTopic == "" {
		c.Kafka.DLQTopic = "academy.events.dlq"
	}
	if c.Kafka.RequestTimeout <= 0 {
		c.Kafka.RequestTimeout = 10
	}
	if c.RateLimit.Strategy == "" {
		c.RateLimit.Strategy = "fixed"
	}
	if c.RateLimit.Limit <= 0 {
		c.RateLimit.Limit = 100
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.Jobs.CertificationSweep == "" {
		c.Jobs.CertificationSweep = "@every 10m"
	}
}

// Validate checks the values every binary needs before it can start.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.JWTSecret == "" && c.OIDC.URL == "" {
		errs = append(errs, errors.New("jwt.jwt_secret or oidc.url must be set"))
	}
	if len(c.Payments.EncryptionKey) < 32 {
		errs = append(errs, errors.New("payments.encryption_key must be at least 32 bytes"))
	}
	if c.RateLimit.Strategy != "fixed" && c.RateLimit.Strategy != "sliding" {
		errs = append(errs, fmt.Errorf("rate_limit.strategy %q must be fixed or sliding", c.RateLimit.Strategy))
	}
	return errors.Join(errs...)
}
