package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/srg/beathard/internal/broadcast"
	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/device"
	"github.com/srg/beathard/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type WatchTestSuite struct {
	CommandTestSuite
}

func (s *WatchTestSuite) TestRequiresDeviceID() {
	_, err := s.ExecuteCommand("watch")
	s.ErrorContains(err, "requires at least 1 arg")
}

func (s *WatchTestSuite) TestRejectsNonPositiveWeight() {
	_, err := s.ExecuteCommand("watch", "AA:01", "--weight", "0")
	s.ErrorContains(err, "invalid weight")
	s.Equal(0, s.FactoryCalls())
}

func (s *WatchTestSuite) TestUnknownDeviceFails() {
	cfg := s.WriteConfig(`
radio:
  resolve_budget: 100ms
  settle_delay: 0s
`)
	_, err := s.ExecuteCommand("watch", "AA:00:00:00:00:09", "--config", cfg)

	var serr *device.SessionError
	s.Require().ErrorAs(err, &serr)
	s.Equal("AA:00:00:00:00:09", serr.Device)
	s.Equal(device.StateResolving, serr.State)
	s.ErrorIs(err, device.ErrDeviceNotFound)
}

func TestWatchTestSuite(t *testing.T) {
	suite.Run(t, new(WatchTestSuite))
}

func TestFormatMessage(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	ts := time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.Local).UnixMilli()

	t.Run("combat event", func(t *testing.T) {
		line := formatMessage(broadcast.CombatEvent(detection.Event{
			EventType:      detection.LowKick,
			LimbName:       "Pierna Derecha",
			FighterID:      "fighter_1",
			CompetitorName: "Ana",
			Velocity:       6.5,
			Acceleration:   42,
			Force:          231.3,
			Timestamp:      ts,
			Confidence:     0.8,
		}))
		assert.Contains(t, line, "12:30:45.123")
		assert.Contains(t, line, "LOW_KICK")
		assert.Contains(t, line, "Pierna Derecha")
		assert.Contains(t, line, "Ana")
		assert.Contains(t, line, "force   231.3 N")
		assert.Contains(t, line, "vel  6.50 m/s")
		assert.Contains(t, line, "conf 0.80")
	})

	t.Run("new record lists broken records", func(t *testing.T) {
		rec := stats.Record{FighterID: "fighter_1", CompetitorName: "Ana", MaxForce: 231.3, MaxVelocity: 6.5, MaxAcceleration: 42}
		line := formatMessage(broadcast.NewRecord(rec, []stats.Kind{stats.Force, stats.Velocity}, detection.Event{FighterID: "fighter_1", Force: 231.3, Timestamp: ts}))
		assert.Contains(t, line, "NEW RECORD Ana: force 231.3 N, velocity 6.50 m/s")
		assert.NotContains(t, line, "acceleration")
	})

	t.Run("stats reset", func(t *testing.T) {
		assert.Contains(t, formatMessage(broadcast.StatsReset(ts)), "records reset")
	})

	t.Run("control messages are not printed", func(t *testing.T) {
		assert.Empty(t, formatMessage(broadcast.ViewChange("stats", nil, ts)))
		assert.Empty(t, formatMessage(broadcast.BattleConfig(map[string]any{"round": 1}, ts)))
	})
}

func TestEventPrinterWritesOneLinePerMessage(t *testing.T) {
	var buf bytes.Buffer
	p := newEventPrinter(&buf)

	require.NoError(t, p.Publish(context.Background(), broadcast.StatsReset(0)))
	require.NoError(t, p.Publish(context.Background(), broadcast.ViewChange("live", nil, 0)))

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}
