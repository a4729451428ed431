// Package config loads the beathard configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/broadcast"
	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/supervisor"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Log       LogConfig        `yaml:"log"`
	Radio     RadioConfig      `yaml:"radio"`
	Detection detection.Config `yaml:"detection"`
	Server    ServerConfig     `yaml:"server"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	Redis     RedisConfig      `yaml:"redis"`
	Journal   JournalConfig    `yaml:"journal"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"text"` // text, json
}

type RadioConfig struct {
	ScanBudget    time.Duration `yaml:"scan_budget" default:"2s"`
	ResolveBudget time.Duration `yaml:"resolve_budget" default:"10s"`
	SettleDelay   time.Duration `yaml:"settle_delay" default:"1s"`
	MaxCandidates int           `yaml:"max_candidates" default:"8"`
	Prefix        string        `yaml:"prefix" default:"BH-"`
	QueueSize     int           `yaml:"queue_size" default:"64"` // notifications buffered per device
}

type ServerConfig struct {
	Addr        string `yaml:"addr" default:":8080"`
	StaticDir   string `yaml:"static_dir"`
	ClientQueue int    `yaml:"client_queue" default:"64"`
}

type MQTTConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Broker      string        `yaml:"broker" default:"tcp://localhost:1883"`
	ClientID    string        `yaml:"client_id" default:"beathard"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TopicPrefix string        `yaml:"topic_prefix" default:"beathard"`
	QoS         byte          `yaml:"qos"`
	Timeout     time.Duration `yaml:"timeout" default:"5s"`
}

type RedisConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"addr" default:"localhost:6379"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	StreamPrefix string `yaml:"stream_prefix" default:"beathard"`
	MaxLen       int64  `yaml:"max_len" default:"10000"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" default:"beathard.db"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.Detection = detection.DefaultConfig()
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if c.Radio.ScanBudget <= 0 {
		errs = append(errs, fmt.Errorf("radio.scan_budget must be positive, got %s", c.Radio.ScanBudget))
	}
	if c.Radio.ResolveBudget <= 0 {
		errs = append(errs, fmt.Errorf("radio.resolve_budget must be positive, got %s", c.Radio.ResolveBudget))
	}
	if c.Radio.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("radio.settle_delay must not be negative, got %s", c.Radio.SettleDelay))
	}
	if c.Radio.MaxCandidates <= 0 {
		errs = append(errs, fmt.Errorf("radio.max_candidates must be positive, got %d", c.Radio.MaxCandidates))
	}
	if c.Radio.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("radio.queue_size must be positive, got %d", c.Radio.QueueSize))
	}
	if strings.TrimSpace(c.Radio.Prefix) == "" {
		errs = append(errs, errors.New("radio.prefix must not be empty"))
	}

	if err := c.Detection.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detection: %w", err))
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path is required when the journal is enabled"))
	}

	return errors.Join(errs...)
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		return logger
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}

// ManagerOptions maps the radio and detection sections onto supervisor options.
func (c *Config) ManagerOptions() supervisor.Options {
	return supervisor.Options{
		ScanBudget:    c.Radio.ScanBudget,
		ResolveBudget: c.Radio.ResolveBudget,
		SettleDelay:   c.Radio.SettleDelay,
		Prefix:        c.Radio.Prefix,
		MaxCandidates: c.Radio.MaxCandidates,
		Detection:     c.Detection,
	}
}

func (c *Config) MQTTOptions() broadcast.MQTTOptions {
	return broadcast.MQTTOptions{
		Broker:      c.MQTT.Broker,
		ClientID:    c.MQTT.ClientID,
		Username:    c.MQTT.Username,
		Password:    c.MQTT.Password,
		TopicPrefix: c.MQTT.TopicPrefix,
		QoS:         c.MQTT.QoS,
		Timeout:     c.MQTT.Timeout,
	}
}

func (c *Config) RedisOptions() broadcast.RedisOptions {
	return broadcast.RedisOptions{
		Addr:         c.Redis.Addr,
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		StreamPrefix: c.Redis.StreamPrefix,
		MaxLen:       c.Redis.MaxLen,
	}
}
