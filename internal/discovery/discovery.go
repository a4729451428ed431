// Package discovery runs time-boxed scans for sensor peripherals.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/device"
)

const (
	// DefaultPrefix tags every sensor's advertised name.
	DefaultPrefix = "BH-"
	// DefaultMaxCandidates is two competitors times four limbs.
	DefaultMaxCandidates = 8
)

// Radio hands out the shared adapter.
type Radio interface {
	Acquire() (device.Adapter, error)
}

// Candidate is a sensor seen during a scan.
type Candidate struct {
	ID          string
	Name        string
	RSSI        int
	Connectable bool
	Peripheral  device.Peripheral
}

// Options tune candidate filtering.
type Options struct {
	Prefix        string // must appear somewhere in the advertised name
	MaxCandidates int
}

// Scanner filters and deduplicates advertisements from the shared radio.
type Scanner struct {
	radio  Radio
	opts   Options
	logger *logrus.Logger
}

func NewScanner(radio Radio, opts Options, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	return &Scanner{radio: radio, opts: opts, logger: logger}
}

// Scan collects up to MaxCandidates distinct sensors within budget, returning
// as soon as either limit is hit. Candidates are in first-seen order.
func (s *Scanner) Scan(ctx context.Context, budget time.Duration) ([]Candidate, error) {
	var (
		mu     sync.Mutex
		result []Candidate
	)

	timedOut, err := s.run(ctx, budget, func(c Candidate, stop context.CancelFunc) {
		mu.Lock()
		defer mu.Unlock()
		if len(result) >= s.opts.MaxCandidates {
			return
		}
		result = append(result, c)
		if len(result) >= s.opts.MaxCandidates {
			s.logger.WithField("count", len(result)).Debug("Candidate cap reached, ending scan early")
			stop()
		}
	})
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	s.logger.WithFields(logrus.Fields{
		"count":     len(result),
		"timed_out": timedOut,
	}).Info("Scan finished")
	return result, nil
}

// FindByID returns the moment the sensor with id is seen. When budget runs
// out first the error wraps both device.ErrDeviceNotFound and device.ErrScanTimeout.
func (s *Scanner) FindByID(ctx context.Context, id string, budget time.Duration) (Candidate, error) {
	var (
		once  sync.Once
		found Candidate
		hit   bool
	)

	_, err := s.run(ctx, budget, func(c Candidate, stop context.CancelFunc) {
		if c.ID != id {
			return
		}
		once.Do(func() {
			found, hit = c, true
			stop()
		})
	})
	if err != nil {
		return Candidate{}, err
	}
	if !hit {
		return Candidate{}, fmt.Errorf("%w: %s not seen within %s: %w", device.ErrDeviceNotFound, id, budget, device.ErrScanTimeout)
	}

	s.logger.WithFields(logrus.Fields{"device_id": id, "name": found.Name}).Info("Target device found")
	return found, nil
}

// run scans until budget expires or stop is called. It reports whether the
// budget expired.
func (s *Scanner) run(ctx context.Context, budget time.Duration, onCandidate func(Candidate, context.CancelFunc)) (bool, error) {
	adapter, err := s.radio.Acquire()
	if err != nil {
		return false, err
	}

	budgetCtx, cancelBudget := context.WithTimeout(ctx, budget)
	defer cancelBudget()
	scanCtx, stop := context.WithCancel(budgetCtx)
	defer stop()

	seen := hashmap.New[string, struct{}]()

	s.logger.WithField("budget", budget).Debug("Starting scan")
	scanErr := adapter.Scan(scanCtx, false, func(adv device.Advertisement) {
		name := adv.LocalName()
		if !strings.Contains(name, s.opts.Prefix) {
			return
		}
		id := adv.Addr()
		if _, loaded := seen.GetOrInsert(id, struct{}{}); loaded {
			return
		}

		s.logger.WithFields(logrus.Fields{
			"device_id": id,
			"name":      name,
			"rssi":      adv.RSSI(),
		}).Debug("Sensor discovered")

		onCandidate(Candidate{
			ID:          id,
			Name:        name,
			RSSI:        adv.RSSI(),
			Connectable: adv.Connectable(),
			Peripheral:  adv.Peripheral(),
		}, stop)
	})

	// The caller's own cancellation wins over everything else.
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if scanErr != nil && !errors.Is(scanErr, context.Canceled) && !errors.Is(scanErr, context.DeadlineExceeded) {
		if errors.Is(scanErr, device.ErrAdapterUnavailable) {
			return false, scanErr
		}
		return false, fmt.Errorf("%w: %w", device.ErrScanFailed, scanErr)
	}
	return errors.Is(budgetCtx.Err(), context.DeadlineExceeded), nil
}
