package testutils

import (
	"context"
	"sync"

	"github.com/srg/beathard/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockAdapter is a testify mock of device.Adapter.
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	args := m.Called(ctx, allowDup, handler)
	return args.Error(0)
}

func (m *MockAdapter) Dial(ctx context.Context, p device.Peripheral) (device.Link, error) {
	args := m.Called(ctx, p)
	link, _ := args.Get(0).(device.Link)
	return link, args.Error(1)
}

func (m *MockAdapter) Stop() error {
	return m.Called().Error(0)
}

// MockLink is a testify mock of device.Link.
type MockLink struct {
	mock.Mock

	address      string
	disconnected chan struct{}
	dropOnce     sync.Once
}

func NewMockLink(address string) *MockLink {
	return &MockLink{address: address, disconnected: make(chan struct{})}
}

func (m *MockLink) Address() string { return m.address }

func (m *MockLink) DiscoverServices(ctx context.Context) ([]device.Service, error) {
	args := m.Called(ctx)
	svcs, _ := args.Get(0).([]device.Service)
	return svcs, args.Error(1)
}

func (m *MockLink) DiscoverCharacteristics(ctx context.Context, svc device.Service) ([]device.Characteristic, error) {
	args := m.Called(ctx, svc)
	chars, _ := args.Get(0).([]device.Characteristic)
	return chars, args.Error(1)
}

func (m *MockLink) Subscribe(ctx context.Context, char device.Characteristic) (device.NotificationStream, error) {
	args := m.Called(ctx, char)
	st, _ := args.Get(0).(device.NotificationStream)
	return st, args.Error(1)
}

func (m *MockLink) Disconnected() <-chan struct{} { return m.disconnected }

// Drop simulates the peripheral going away.
func (m *MockLink) Drop() {
	m.dropOnce.Do(func() { close(m.disconnected) })
}

func (m *MockLink) Close() error {
	return m.Called().Error(0)
}

// StubService is a fixed device.Service.
type StubService struct {
	ID string
}

func (s *StubService) UUID() string { return s.ID }

// StubCharacteristic is a fixed device.Characteristic.
type StubCharacteristic struct {
	ID    string
	Props device.Property
}

func (c *StubCharacteristic) UUID() string                { return c.ID }
func (c *StubCharacteristic) Properties() device.Property { return c.Props }

// StubPeripheral is a device.Peripheral identified by address only.
type StubPeripheral struct {
	Addr string
}

func (p *StubPeripheral) Address() string { return p.Addr }

// StubAdvertisement is a fixed device.Advertisement.
type StubAdvertisement struct {
	Address       string
	Name          string
	Signal        int
	IsConnectable bool
}

func (a *StubAdvertisement) Addr() string      { return a.Address }
func (a *StubAdvertisement) LocalName() string { return a.Name }
func (a *StubAdvertisement) RSSI() int         { return a.Signal }
func (a *StubAdvertisement) Connectable() bool { return a.IsConnectable }

func (a *StubAdvertisement) Peripheral() device.Peripheral {
	return &StubPeripheral{Addr: a.Address}
}

// FakeStream is a hand-driven device.NotificationStream.
type FakeStream struct {
	ch chan []byte

	mu         sync.Mutex
	ended      bool
	err        error
	closeCalls int
}

func NewFakeStream(buffer int) *FakeStream {
	return &FakeStream{ch: make(chan []byte, buffer)}
}

// Push delivers one payload. It blocks when the buffer is full.
func (s *FakeStream) Push(payload []byte) {
	s.ch <- payload
}

// End closes the stream with the given cause.
func (s *FakeStream) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.ch)
}

func (s *FakeStream) C() <-chan []byte { return s.ch }

func (s *FakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	s.End(nil)
	return nil
}

// CloseCalls reports how many times Close was invoked.
func (s *FakeStream) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}
