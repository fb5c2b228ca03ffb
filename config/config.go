// Package config loads node settings from an optional YAML file and then
// applies DHAROHAR_* environment overrides (a .env file is read first when
// present).
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	MinePolicyImmediate = "immediate"
	MinePolicyBatched   = "batched"
)

// NodeConfig holds process-level paths.
type NodeConfig struct {
	DBPath  string `yaml:"db_path"`  // LevelDB directory for chain snapshots
	LogFile string `yaml:"log_file"` // log file; empty logs to stdout only
}

func (c *NodeConfig) SetDefaults() {
	if c.DBPath == "" {
		c.DBPath = "data/dharohar-db"
		log.Printf("[CONFIG] Warning: node.db_path not set, defaulting to %s", c.DBPath)
	}
}

// APIConfig defines the HTTP listener.
type APIConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"` // POSTs per client IP; 0 disables
}

func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
		log.Printf("[CONFIG] Warning: api.addr not set, defaulting to %s", c.Addr)
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "10s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "30s"
	}
}

// LedgerConfig controls mining and sealing.
type LedgerConfig struct {
	Difficulty     int    `yaml:"difficulty"`       // leading zero hex chars
	Digest         string `yaml:"digest"`           // rolling | sha256
	MineIntervalMS int    `yaml:"mine_interval_ms"` // scheduler tick
	MineTimeoutMS  int    `yaml:"mine_timeout_ms"`  // bound on one mining round
	MinePolicy     string `yaml:"mine_policy"`      // immediate | batched
	DEK            string `yaml:"-"`                // base64 AES-256 key, env only
}

func (c *LedgerConfig) SetDefaults() {
	if c.Difficulty <= 0 {
		c.Difficulty = 2
		log.Printf("[CONFIG] Warning: ledger.difficulty not set or invalid, defaulting to %d", c.Difficulty)
	}
	if c.Digest == "" {
		c.Digest = "rolling"
	}
	if c.MineIntervalMS <= 0 {
		c.MineIntervalMS = 2000
		log.Printf("[CONFIG] Warning: ledger.mine_interval_ms not set or invalid, defaulting to %d", c.MineIntervalMS)
	}
	if c.MineTimeoutMS <= 0 {
		c.MineTimeoutMS = 10000
	}
	if c.MinePolicy == "" {
		c.MinePolicy = MinePolicyBatched
	}
}

// MineInterval is MineIntervalMS as a duration.
func (c *LedgerConfig) MineInterval() time.Duration {
	return time.Duration(c.MineIntervalMS) * time.Millisecond
}

// MineTimeout is MineTimeoutMS as a duration.
func (c *LedgerConfig) MineTimeout() time.Duration {
	return time.Duration(c.MineTimeoutMS) * time.Millisecond
}

// KafkaConfig defines the optional mined-block event producer. Publishing is
// disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	RequiredAcks string   `yaml:"required_acks"` // none/one/all
	Async        bool     `yaml:"async"`
	BatchTimeout string   `yaml:"batch_timeout"`
	WriteTimeout string   `yaml:"write_timeout"`
}

func (c *KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

func (c *KafkaConfig) SetDefaults() {
	if !c.Enabled() {
		return
	}
	if c.Topic == "" {
		c.Topic = "dharohar.blocks"
		log.Printf("[CONFIG] Warning: kafka.topic not set, defaulting to %s", c.Topic)
	}
	if c.RequiredAcks == "" {
		c.RequiredAcks = "one"
	}
	if c.BatchTimeout == "" {
		c.BatchTimeout = "100ms"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "5s"
	}
}

// Config is the complete node configuration.
type Config struct {
	Node   NodeConfig   `yaml:"node"`
	API    APIConfig    `yaml:"api"`
	Ledger LedgerConfig `yaml:"ledger"`
	Kafka  KafkaConfig  `yaml:"kafka"`
}

// Load reads path (skipped when empty), loads envFiles with godotenv (missing
// files are ignored), applies environment overrides and fills defaults.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DHAROHAR_* variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("DHAROHAR_DB_PATH"); v != "" {
		c.Node.DBPath = v
	}
	if v := os.Getenv("DHAROHAR_LOG_FILE"); v != "" {
		c.Node.LogFile = v
	}
	if v := os.Getenv("DHAROHAR_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("DHAROHAR_RATE_LIMIT_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DHAROHAR_RATE_LIMIT_PER_MIN: %w", err)
		}
		c.API.RateLimitPerMin = n
	}
	if v := os.Getenv("DHAROHAR_DIFFICULTY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DHAROHAR_DIFFICULTY: %w", err)
		}
		c.Ledger.Difficulty = n
	}
	if v := os.Getenv("DHAROHAR_MINE_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DHAROHAR_MINE_INTERVAL_MS: %w", err)
		}
		c.Ledger.MineIntervalMS = n
	}
	if v := os.Getenv("DHAROHAR_MINE_TIMEOUT_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DHAROHAR_MINE_TIMEOUT_MS: %w", err)
		}
		c.Ledger.MineTimeoutMS = n
	}
	if v := os.Getenv("DHAROHAR_MINE_POLICY"); v != "" {
		c.Ledger.MinePolicy = v
	}
	if v := os.Getenv("DHAROHAR_DIGEST"); v != "" {
		c.Ledger.Digest = v
	}
	if v := os.Getenv("DHAROHAR_DEK"); v != "" {
		c.Ledger.DEK = v
	}
	if v := os.Getenv("DHAROHAR_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("DHAROHAR_KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	c.Node.SetDefaults()
	c.API.SetDefaults()
	c.Ledger.SetDefaults()
	c.Kafka.SetDefaults()
}

// Validate rejects values the node cannot run with.
func (c *Config) Validate() error {
	switch c.Ledger.MinePolicy {
	case MinePolicyImmediate, MinePolicyBatched:
	default:
		return fmt.Errorf("ledger.mine_policy must be %q or %q, got %q", MinePolicyImmediate, MinePolicyBatched, c.Ledger.MinePolicy)
	}
	if c.API.RateLimitPerMin < 0 {
		return fmt.Errorf("api.rate_limit_per_min must not be negative, got %d", c.API.RateLimitPerMin)
	}
	switch c.Ledger.Digest {
	case "rolling", "sha256":
	default:
		return fmt.Errorf("ledger.digest must be rolling or sha256, got %q", c.Ledger.Digest)
	}
	for name, v := range map[string]string{
		"api.read_timeout":    c.API.ReadTimeout,
		"api.write_timeout":   c.API.WriteTimeout,
		"kafka.batch_timeout": c.Kafka.BatchTimeout,
		"kafka.write_timeout": c.Kafka.WriteTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Duration parses a validated duration field, falling back to def.
func Duration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
