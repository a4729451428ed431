package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beathard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.Radio.ScanBudget)
	assert.Equal(t, 10*time.Second, cfg.Radio.ResolveBudget)
	assert.Equal(t, time.Second, cfg.Radio.SettleDelay)
	assert.Equal(t, 8, cfg.Radio.MaxCandidates)
	assert.Equal(t, "BH-", cfg.Radio.Prefix)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, detection.DefaultConfig(), cfg.Detection)
	assert.False(t, cfg.MQTT.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
radio:
  scan_budget: 3s
  settle_delay: 250ms
detection:
  cooldown: 300ms
  kick_max_gyro: 12
mqtt:
  enabled: true
  broker: tcp://broker:1883
  qos: 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3*time.Second, cfg.Radio.ScanBudget)
	assert.Equal(t, 250*time.Millisecond, cfg.Radio.SettleDelay)
	assert.Equal(t, 10*time.Second, cfg.Radio.ResolveBudget, "unset keys keep their defaults")
	assert.Equal(t, 300*time.Millisecond, cfg.Detection.Cooldown)
	assert.Equal(t, 12.0, cfg.Detection.KickMaxGyro)
	assert.Equal(t, 0.8, cfg.Detection.SlapMinAcc)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	opts := cfg.ManagerOptions()
	assert.Equal(t, 3*time.Second, opts.ScanBudget)
	assert.Equal(t, 300*time.Millisecond, opts.Detection.Cooldown)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTTOptions().Broker)
	assert.Equal(t, "beathard", cfg.RedisOptions().StreamPrefix)
}

func TestLoadEmptyPathAndFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown key", "radio:\n  scan_budgte: 1s\n", "scan_budgte"},
		{"bad duration", "radio:\n  scan_budget: soon\n", "parse config"},
		{"invalid value", "radio:\n  scan_budget: 0s\n", "radio.scan_budget"},
		{"bad detection", "detection:\n  acc_scale: 0\n", "acc_scale"},
		{"bad level", "log:\n  level: chatty\n", "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radio.MaxCandidates = 0
	cfg.Radio.Prefix = " "
	cfg.MQTT.QoS = 3
	cfg.Journal.Enabled = true
	cfg.Journal.Path = ""

	err := cfg.Validate()

	require.Error(t, err)
	for _, want := range []string{"radio.max_candidates", "radio.prefix", "mqtt.qos", "journal.path"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		format   string
		expected logrus.Level
	}{
		{"debug text", "debug", "text", logrus.DebugLevel},
		{"warn json", "warn", "json", logrus.WarnLevel},
		{"invalid level falls back to info", "loud", "text", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Log.Level = tt.level
			cfg.Log.Format = tt.format

			logger := cfg.NewLogger()

			assert.Equal(t, tt.expected, logger.GetLevel())
			if tt.format == "json" {
				_, ok := logger.Formatter.(*logrus.JSONFormatter)
				assert.True(t, ok)
				return
			}
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}
