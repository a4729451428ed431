package discovery_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/srg/beathard/internal/device"
	"github.com/srg/beathard/internal/discovery"
	"github.com/srg/beathard/internal/radio"
	"github.com/srg/beathard/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type ScannerTestSuite struct {
	testutils.MockRadioSuite
}

func (s *ScannerTestSuite) newScanner() *discovery.Scanner {
	return discovery.NewScanner(radio.New(s.Factory(), s.Logger), discovery.Options{}, s.Logger)
}

func (s *ScannerTestSuite) TestScanFiltersAndDeduplicates() {
	s.Radio.
		WithSensor("AA:00:00:00:00:01", "BH-ManoDerecha", -40).
		WithSensor("AA:00:00:00:00:02", "Headphones", -30).
		WithSensor("AA:00:00:00:00:01", "BH-ManoDerecha", -42).
		WithSensor("AA:00:00:00:00:03", "BH-PiernaIzquierda", -60).
		WithSensor("AA:00:00:00:00:04", "", -70).
		WithSensor("AA:00:00:00:00:05", "Proto BH-PiernaDerecha", -65)

	got, err := s.newScanner().Scan(context.Background(), 50*time.Millisecond)

	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Equal("AA:00:00:00:00:01", got[0].ID)
	s.Equal("BH-ManoDerecha", got[0].Name)
	s.Equal(-40, got[0].RSSI, "first sighting wins")
	s.True(got[0].Connectable)
	s.Equal("AA:00:00:00:00:01", got[0].Peripheral.Address())
	s.Equal("AA:00:00:00:00:03", got[1].ID)
	s.Equal("Proto BH-PiernaDerecha", got[2].Name, "the tag may appear anywhere in the name")
}

func (s *ScannerTestSuite) TestScanCapsResultsAndReturnsEarly() {
	for i := 0; i < 12; i++ {
		s.Radio.WithSensor(fmt.Sprintf("AA:00:00:00:00:%02d", i), fmt.Sprintf("BH-ManoDerecha-%d", i), -50)
	}

	start := time.Now()
	got, err := s.newScanner().Scan(context.Background(), 5*time.Second)

	s.Require().NoError(err)
	s.Len(got, discovery.DefaultMaxCandidates)
	s.Less(time.Since(start), 2*time.Second, "cap must end the scan before the budget")
}

func (s *ScannerTestSuite) TestScanWaitsOutBudget() {
	s.Radio.WithSensor("AA:00:00:00:00:01", "BH-ManoDerecha", -40)

	start := time.Now()
	got, err := s.newScanner().Scan(context.Background(), 100*time.Millisecond)

	s.Require().NoError(err)
	s.Len(got, 1)
	s.GreaterOrEqual(time.Since(start), 100*time.Millisecond)
}

func (s *ScannerTestSuite) TestFindByID() {
	s.Radio.
		WithSensor("AA:00:00:00:00:01", "BH-ManoDerecha", -40).
		WithSensor("AA:00:00:00:00:02", "BH-ManoIzquierda", -45).
		WithSensor("AA:00:00:00:00:09", "Speaker", -30)

	s.Run("returns as soon as the target is seen", func() {
		start := time.Now()
		c, err := s.newScanner().FindByID(context.Background(), "AA:00:00:00:00:02", 10*time.Second)

		s.Require().NoError(err)
		s.Equal("BH-ManoIzquierda", c.Name)
		s.Less(time.Since(start), 2*time.Second)
	})

	s.Run("reports not found after the budget", func() {
		_, err := s.newScanner().FindByID(context.Background(), "FF:FF:FF:FF:FF:FF", 50*time.Millisecond)

		s.ErrorIs(err, device.ErrDeviceNotFound)
		s.ErrorIs(err, device.ErrScanTimeout)
	})

	s.Run("ignores non-sensor names", func() {
		_, err := s.newScanner().FindByID(context.Background(), "AA:00:00:00:00:09", 50*time.Millisecond)
		s.ErrorIs(err, device.ErrDeviceNotFound)
	})
}

func (s *ScannerTestSuite) TestScanErrors() {
	s.Run("adapter failure", func() {
		s.Radio.WithScanError(errors.New("hci: command disallowed"))
		_, err := s.newScanner().Scan(context.Background(), time.Second)
		s.ErrorIs(err, device.ErrScanFailed)
	})

	s.Run("caller cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.newScanner().Scan(ctx, time.Second)
		s.ErrorIs(err, context.Canceled)
	})

	s.Run("radio unavailable", func() {
		r := radio.New(func() (device.Adapter, error) { return nil, errors.New("off") }, s.Logger)
		_, err := discovery.NewScanner(r, discovery.Options{}, s.Logger).Scan(context.Background(), time.Second)
		s.ErrorIs(err, device.ErrAdapterUnavailable)
	})
}

func (s *ScannerTestSuite) TestCustomOptions() {
	s.Radio.
		WithSensor("AA:00:00:00:00:01", "XY-One", -40).
		WithSensor("AA:00:00:00:00:02", "XY-Two", -40).
		WithSensor("AA:00:00:00:00:03", "BH-Three", -40)

	scanner := discovery.NewScanner(radio.New(s.Factory(), s.Logger), discovery.Options{Prefix: "XY-", MaxCandidates: 1}, s.Logger)
	got, err := scanner.Scan(context.Background(), time.Second)

	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("XY-One", got[0].Name)
}

func TestScannerTestSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}
