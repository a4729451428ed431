package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		flags   map[string]string
		want    string
		wantErr string
	}{
		{name: "default", want: "info"},
		{name: "verbose", flags: map[string]string{"verbose": "true"}, want: "debug"},
		{name: "explicit level", flags: map[string]string{"log-level": "warn"}, want: "warn"},
		{name: "log-level wins over verbose", flags: map[string]string{"log-level": "error", "verbose": "true"}, want: "error"},
		{name: "invalid level", flags: map[string]string{"log-level": "loud"}, wantErr: "invalid log level: loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newTestCommand()
			for k, v := range tt.flags {
				require.NoError(t, cmd.Flags().Set(k, v))
			}

			cfg, logger, err := configureLogger(cmd)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Log.Level)

			level, _ := logrus.ParseLevel(tt.want)
			assert.Equal(t, level, logger.GetLevel())
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("config", "/nonexistent/beathard.yaml"))

	_, err := loadConfig(cmd)
	assert.ErrorContains(t, err, "read config")
}
