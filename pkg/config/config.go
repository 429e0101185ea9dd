// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the batch
// ranking job (Ranking, Input, Output, Publish) and the lookup service (Server,
// Postgres, Kafka, Redis).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"

	SelectorSort = "sort"
	SelectorHeap = "heap"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Publish  PublishConfig  `yaml:"publish"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the lookup service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RelatedPosts string `yaml:"relatedPosts"`
	RunComplete  string `yaml:"runComplete"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// RankingConfig controls the related-posts engine: how many neighbours to
// keep, which execution strategy to run and how the parallel pipeline is
// sized.
type RankingConfig struct {
	K               int    `yaml:"k"`
	Strategy        string `yaml:"strategy"`
	Selector        string `yaml:"selector"`
	Workers         int    `yaml:"workers"`
	ChannelCapacity int    `yaml:"channelCapacity"`
}

// InputConfig points at the corpus file. MaxBytes caps its size; 0 means no
// cap.
type InputConfig struct {
	Path     string `yaml:"path"`
	MaxBytes int64  `yaml:"maxBytes"`
}

// OutputConfig controls where and how the ranked results are written.
type OutputConfig struct {
	Path   string `yaml:"path"`
	Pretty bool   `yaml:"pretty"`
}

// PublishConfig toggles the downstream sinks fed after the output file is
// written.
type PublishConfig struct {
	Kafka     bool          `yaml:"kafka"`
	Redis     bool          `yaml:"redis"`
	Postgres  bool          `yaml:"postgres"`
	BatchSize int           `yaml:"batchSize"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Enabled reports whether at least one sink is switched on.
func (p PublishConfig) Enabled() bool {
	return p.Kafka || p.Redis || p.Postgres
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the ranking engine cannot run with.
func (c *Config) Validate() error {
	r := c.Ranking
	if r.K <= 0 {
		return fmt.Errorf("ranking.k must be positive, got %d", r.K)
	}
	switch r.Strategy {
	case StrategySequential, StrategyParallel:
	default:
		return fmt.Errorf("ranking.strategy must be %q or %q, got %q", StrategySequential, StrategyParallel, r.Strategy)
	}
	switch r.Selector {
	case SelectorSort, SelectorHeap:
	default:
		return fmt.Errorf("ranking.selector must be %q or %q, got %q", SelectorSort, SelectorHeap, r.Selector)
	}
	if r.Workers < 0 {
		return fmt.Errorf("ranking.workers must not be negative, got %d", r.Workers)
	}
	if r.ChannelCapacity < 0 {
		return fmt.Errorf("ranking.channelCapacity must not be negative, got %d", r.ChannelCapacity)
	}
	if c.Input.MaxBytes < 0 {
		return fmt.Errorf("input.maxBytes must not be negative, got %d", c.Input.MaxBytes)
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local runs.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "relatedposts",
			User:            "relatedposts",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "relatedposts-group",
			Topics: KafkaTopics{
				RelatedPosts: "related-posts",
				RunComplete:  "related-posts.complete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Ranking: RankingConfig{
			K:               5,
			Strategy:        StrategySequential,
			Selector:        SelectorHeap,
			Workers:         runtime.GOMAXPROCS(0),
			ChannelCapacity: 1000,
		},
		Input: InputConfig{
			Path:     "posts.json",
			MaxBytes: 1 << 30,
		},
		Output: OutputConfig{
			Path: "related_posts.json",
		},
		Publish: PublishConfig{
			BatchSize: 500,
			Timeout:   2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads RP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("RP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RP_RANKING_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Ranking.K = k
		}
	}
	if v := os.Getenv("RP_RANKING_STRATEGY"); v != "" {
		cfg.Ranking.Strategy = v
	}
	if v := os.Getenv("RP_RANKING_SELECTOR"); v != "" {
		cfg.Ranking.Selector = v
	}
	if v := os.Getenv("RP_RANKING_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ranking.Workers = n
		}
	}
	if v := os.Getenv("RP_INPUT_PATH"); v != "" {
		cfg.Input.Path = v
	}
	if v := os.Getenv("RP_INPUT_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Input.MaxBytes = n
		}
	}
	if v := os.Getenv("RP_OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("RP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
