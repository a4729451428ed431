package testutils

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/device"
	"github.com/stretchr/testify/suite"
)

// MockRadioSuite provides a reusable suite with a mocked radio adapter.
//
//	type ManagerSuite struct {
//	    testutils.MockRadioSuite
//	}
//
//	func (s *ManagerSuite) SetupTest() {
//	    s.MockRadioSuite.SetupTest()
//	    s.Radio.
//	        WithSensor("AA:00", "BH-ManoDerecha", -40).
//	        WithPeripheral(testutils.NewPeripheralBuilder("AA:00"))
//	}
//
// The adapter is built on the first factory call, so configuration must be
// complete before the code under test acquires the radio.
type MockRadioSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger
	Radio  *AdapterBuilder

	adapter      *MockAdapter
	factoryCalls atomic.Int32
}

func (s *MockRadioSuite) SetupTest() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.Radio = NewAdapterBuilder()
	s.adapter = nil
	s.factoryCalls.Store(0)
}

// Factory returns a device.AdapterFactory serving the mocked adapter.
func (s *MockRadioSuite) Factory() device.AdapterFactory {
	return func() (device.Adapter, error) {
		s.factoryCalls.Add(1)
		if s.adapter == nil {
			s.adapter = s.Radio.Build()
		}
		return s.adapter, nil
	}
}

// Adapter returns the adapter built by Factory, or nil before first use.
func (s *MockRadioSuite) Adapter() *MockAdapter {
	return s.adapter
}

// FactoryCalls reports how many times the factory was invoked.
func (s *MockRadioSuite) FactoryCalls() int {
	return int(s.factoryCalls.Load())
}
