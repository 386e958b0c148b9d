package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultHoldingsEndpoint is the upstream that serves the user's holdings
const DefaultHoldingsEndpoint = "https://35dee773a9ec441e9f38d5fc249406ce.api.mockbin.io/"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Holdings HoldingsConfig `mapstructure:"holdings"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// KafkaConfig holds Kafka configuration. Empty topics disable the matching feed.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	HoldingsTopic string   `mapstructure:"holdings_topic"`
	EventsTopic   string   `mapstructure:"events_topic"`
	GroupID       string   `mapstructure:"group_id"`
}

// RedisConfig holds Redis configuration. An empty Addr keeps the snapshot in memory.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotKey string        `mapstructure:"snapshot_key"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// HoldingsConfig holds the remote holdings source configuration
type HoldingsConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	JSONPath       string        `mapstructure:"json_path"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys to the environment variables that override them
var envBindings = map[string]string{
	"server.port":              "SERVER_PORT",
	"server.host":              "SERVER_HOST",
	"database.host":            "DB_HOST",
	"database.port":            "DB_PORT",
	"database.user":            "DB_USER",
	"database.password":        "DB_PASSWORD",
	"database.name":            "DB_NAME",
	"database.sslmode":         "DB_SSLMODE",
	"kafka.brokers":            "KAFKA_BROKERS",
	"kafka.holdings_topic":     "KAFKA_HOLDINGS_TOPIC",
	"kafka.events_topic":       "KAFKA_EVENTS_TOPIC",
	"kafka.group_id":           "KAFKA_GROUP_ID",
	"redis.addr":               "REDIS_ADDR",
	"redis.password":           "REDIS_PASSWORD",
	"redis.db":                 "REDIS_DB",
	"redis.snapshot_key":       "REDIS_SNAPSHOT_KEY",
	"redis.snapshot_ttl":       "SNAPSHOT_TTL",
	"holdings.endpoint":        "HOLDINGS_ENDPOINT",
	"holdings.json_path":       "HOLDINGS_JSON_PATH",
	"holdings.timeout":         "HOLDINGS_TIMEOUT",
	"holdings.persist_timeout": "HOLDINGS_PERSIST_TIMEOUT",
	"log.level":                "LOG_LEVEL",
	"log.format":               "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "holdings")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.holdings_topic", "")
	v.SetDefault("kafka.events_topic", "")
	v.SetDefault("kafka.group_id", "holdings-service")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_key", "holdings:snapshot")
	v.SetDefault("redis.snapshot_ttl", 24*time.Hour)
	v.SetDefault("holdings.endpoint", DefaultHoldingsEndpoint)
	v.SetDefault("holdings.json_path", "$.data.userHolding")
	v.SetDefault("holdings.timeout", 10*time.Second)
	v.SetDefault("holdings.persist_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from an optional YAML file, then environment variables
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// KAFKA_BROKERS arrives as a single comma separated string
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	return &cfg, nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Addr returns the listen address of the HTTP server
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
