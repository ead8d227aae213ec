package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/RiverSpider/PavelBot/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development"`
	Server      Server        `yaml:"server"`
	Logging     logger.Config `yaml:"logging"`
	Metrics     struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Tinkoff   Tinkoff   `yaml:"tinkoff"`
	Engine    Engine    `yaml:"engine"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	Queue     Queue     `yaml:"queue"`
	Scheduler Scheduler `yaml:"scheduler"`
	Security  struct {
		EncryptionKey string `yaml:"encryption_key"`
	} `yaml:"security"`
	RateLimit RateLimit `yaml:"ratelimit"`
}

type Server struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type Tinkoff struct {
	BaseURL       string        `yaml:"base_url" default:"https://invest-public-api.tinkoff.ru/rest"`
	Token         string        `yaml:"token"`
	AppName       string        `yaml:"app_name" default:"pavelbot"`
	Timeout       time.Duration `yaml:"timeout" default:"15s"`
	RetryAttempts int           `yaml:"retry_attempts" default:"3"`
	RetryBackoff  time.Duration `yaml:"retry_backoff" default:"300ms"`
	NameCacheTTL  time.Duration `yaml:"name_cache_ttl" default:"6h"`
	// requests per second per token, burst Capacity
	RateLimit struct {
		Capacity int     `yaml:"capacity" default:"20"`
		Refill   float64 `yaml:"refill" default:"10"`
	} `yaml:"rate_limit"`
}

type Engine struct {
	RequestTimeout time.Duration `yaml:"request_timeout" default:"60s"`
	MaxAccounts    int           `yaml:"max_accounts" default:"20"`
	// Location for calendar dates and the daily summary window.
	Timezone string `yaml:"timezone" default:"Europe/Moscow"`
}

type Redis struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"pavelbot"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topics  struct {
		Notifications string `yaml:"notifications" default:"finance.notifications"`
		Logs          string `yaml:"logs" default:"finance.ops-logs"`
	} `yaml:"topics"`
	Compression  string `yaml:"compression" default:"gzip"`
	RequiredAcks int    `yaml:"required_acks" default:"-1"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"50"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"producer"`
	LogFlush struct {
		Interval   time.Duration `yaml:"interval" default:"30s"`
		MaxEntries int           `yaml:"max_entries" default:"100"`
	} `yaml:"log_flush"`
}

type Queue struct {
	Name       string        `yaml:"name" default:"digests"`
	Workers    int           `yaml:"workers" default:"4"`
	MaxRetries int           `yaml:"max_retries" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	JobTimeout time.Duration `yaml:"job_timeout" default:"2m"`
}

type Scheduler struct {
	Enabled      bool   `yaml:"enabled" default:"true"`
	DailySummary string `yaml:"daily_summary" default:"0 20 * * *"`
	Payments     string `yaml:"payments" default:"0 13 * * 1"`
}

type RateLimit struct {
	Capacity int     `yaml:"capacity" default:"30"`
	Refill   float64 `yaml:"refill" default:"1"`
}

// Load reads a YAML file on top of the struct defaults.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv preloads .env (if present), loads the YAML file and applies
// environment overrides. Secrets normally arrive through the environment.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TINKOFF_API_TOKEN"); v != "" {
		c.Tinkoff.Token = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.Security.EncryptionKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks the fields the application cannot start without.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Tinkoff.BaseURL == "" {
		return fmt.Errorf("tinkoff.base_url is required")
	}
	if c.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be positive")
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		return fmt.Errorf("engine.timezone: %w", err)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue.workers must be positive")
	}
	return nil
}

// Location resolves engine.timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
