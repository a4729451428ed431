// Package supervisor runs device sessions and owns every piece of shared
// state: the radio handle, the registry, the stats tracker and the publisher.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/broadcast"
	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/device"
	"github.com/srg/beathard/internal/discovery"
	"github.com/srg/beathard/internal/radio"
	"github.com/srg/beathard/internal/registry"
	"github.com/srg/beathard/internal/stats"
)

const (
	DefaultScanBudget  = 2 * time.Second
	DefaultSettleDelay = time.Second
)

// Options tunes a Manager. Zero budgets fall back to the defaults; a zero
// SettleDelay disables the post-connect pause.
type Options struct {
	ScanBudget    time.Duration
	ResolveBudget time.Duration
	SettleDelay   time.Duration
	Prefix        string
	MaxCandidates int
	Detection     detection.Config
}

func DefaultOptions() Options {
	return Options{
		ScanBudget:    DefaultScanBudget,
		ResolveBudget: registry.DefaultResolveBudget,
		SettleDelay:   DefaultSettleDelay,
		Prefix:        discovery.DefaultPrefix,
		MaxCandidates: discovery.DefaultMaxCandidates,
		Detection:     detection.DefaultConfig(),
	}
}

// ScanResult is one sensor found by Scan.
type ScanResult struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Address       string         `json:"address"`
	Limb          detection.Limb `json:"limb_type"`
	LimbName      string         `json:"limb_name"`
	RSSI          int            `json:"rssi"`
	IsConnectable bool           `json:"is_connectable"`
}

// Status summarizes the manager state.
type Status struct {
	Initialized      bool                 `json:"initialized"`
	ConnectedDevices int                  `json:"connected_devices"`
	ActiveTasks      int                  `json:"active_tasks"`
	TrackedFighters  int                  `json:"tracked_fighters"`
	Devices          []registry.Connected `json:"devices"`
}

// Manager is the single entry point for device and stats operations. All
// methods are safe for concurrent use.
type Manager struct {
	opts      Options
	logger    *logrus.Logger
	radio     *radio.Handle
	scanner   *discovery.Scanner
	registry  *registry.Registry
	tracker   *stats.Tracker
	publisher broadcast.Publisher
	now       func() time.Time
}

// New wires a Manager around the adapter factory. A nil publisher discards
// every message.
func New(factory device.AdapterFactory, publisher broadcast.Publisher, opts Options, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if publisher == nil {
		publisher = broadcast.Discard
	}
	if opts.ScanBudget <= 0 {
		opts.ScanBudget = DefaultScanBudget
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}

	h := radio.New(factory, logger)
	scanner := discovery.NewScanner(h, discovery.Options{Prefix: opts.Prefix, MaxCandidates: opts.MaxCandidates}, logger)

	return &Manager{
		opts:      opts,
		logger:    logger,
		radio:     h,
		scanner:   scanner,
		registry:  registry.New(scanner, opts.ResolveBudget, logger),
		tracker:   stats.NewTracker(),
		publisher: publisher,
		now:       time.Now,
	}
}

// WithClock replaces the clock used to stamp samples and control messages.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Scan runs a broad scan and describes every sensor found.
func (m *Manager) Scan(ctx context.Context) ([]ScanResult, error) {
	candidates, err := m.scanner.Scan(ctx, m.opts.ScanBudget)
	if err != nil {
		if errors.Is(err, device.ErrAdapterUnavailable) {
			m.radio.Invalidate()
		}
		return nil, err
	}

	out := make([]ScanResult, 0, len(candidates))
	for _, c := range candidates {
		limb, _ := detection.LimbFromName(c.Name)
		address := c.ID
		if c.Peripheral != nil {
			address = c.Peripheral.Address()
		}
		out = append(out, ScanResult{
			ID:            c.ID,
			Name:          c.Name,
			Address:       address,
			Limb:          limb,
			LimbName:      limb.DisplayName(),
			RSSI:          c.RSSI,
			IsConnectable: c.Connectable,
		})
	}
	return out, nil
}

func (m *Manager) ListConnected() []registry.Connected {
	return m.registry.ListConnected()
}

func (m *Manager) Status() Status {
	devices := m.registry.ListConnected()
	return Status{
		Initialized:      m.radio.Available(),
		ConnectedDevices: len(devices),
		ActiveTasks:      m.registry.ActiveTasks(),
		TrackedFighters:  m.tracker.Len(),
		Devices:          devices,
	}
}

// MaxStats returns the personal bests of one competitor.
func (m *Manager) MaxStats(fighterID string) (stats.Record, bool) {
	return m.tracker.Get(fighterID)
}

// AllStats returns every competitor's personal bests in first-seen order.
func (m *Manager) AllStats() []stats.Record {
	return m.tracker.All()
}

// ResetStats clears all records and tells consumers about it.
func (m *Manager) ResetStats(ctx context.Context) {
	m.tracker.Reset()
	m.logger.Info("Max stats reset")
	m.publish(ctx, broadcast.StatsReset(m.now().UnixMilli()))
}

func (m *Manager) BroadcastBattleConfig(ctx context.Context, data any) error {
	return m.publisher.Publish(ctx, broadcast.BattleConfig(data, m.now().UnixMilli()))
}

func (m *Manager) BroadcastViewChange(ctx context.Context, view string, data any) error {
	if view == "" {
		return errors.New("view must not be empty")
	}
	return m.publisher.Publish(ctx, broadcast.ViewChange(view, data, m.now().UnixMilli()))
}

// Cleanup stops every session, forgets every cached device and stat, and
// releases the adapter. Calling it again is harmless.
func (m *Manager) Cleanup(_ context.Context) error {
	tasks := m.registry.DrainTasks()

	var errs []error
	for id, rt := range tasks {
		rt.Cancel()
		t, ok := rt.(*Task)
		if !ok {
			continue
		}
		if err := t.close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}

	m.registry.Purge()
	m.tracker.Reset()
	m.radio.Invalidate()

	m.logger.WithField("sessions", len(tasks)).Info("Cleanup complete")
	return errors.Join(errs...)
}

// publish logs delivery failures; sessions never stop because a consumer is down.
func (m *Manager) publish(ctx context.Context, msg broadcast.Message) {
	if err := m.publisher.Publish(ctx, msg); err != nil {
		m.logger.WithFields(logrus.Fields{
			"kind":       msg.Kind.String(),
			"fighter_id": msg.FighterID,
		}).WithError(err).Warn("Failed to publish message")
	}
}
