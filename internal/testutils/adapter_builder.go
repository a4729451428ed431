package testutils

import (
	"context"
	"sync"

	"github.com/srg/beathard/internal/device"
	"github.com/stretchr/testify/mock"
)

// AdapterBuilder builds a MockAdapter that replays advertisements and serves
// links for configured peripherals.
type AdapterBuilder struct {
	ads         []device.Advertisement
	peripherals []*PeripheralBuilder
	scanErr     error

	mu    sync.Mutex
	links map[string]*MockLink
}

func NewAdapterBuilder() *AdapterBuilder {
	return &AdapterBuilder{links: make(map[string]*MockLink)}
}

// WithAdvertisements appends advertisements replayed by every Scan call.
func (b *AdapterBuilder) WithAdvertisements(ads ...device.Advertisement) *AdapterBuilder {
	b.ads = append(b.ads, ads...)
	return b
}

// WithSensor is shorthand for an advertisement with the given address and name.
func (b *AdapterBuilder) WithSensor(address, name string, rssi int) *AdapterBuilder {
	return b.WithAdvertisements(&StubAdvertisement{Address: address, Name: name, Signal: rssi, IsConnectable: true})
}

// WithPeripheral makes Dial succeed (or fail as configured) for the peripheral's address.
func (b *AdapterBuilder) WithPeripheral(p *PeripheralBuilder) *AdapterBuilder {
	b.peripherals = append(b.peripherals, p)
	return b
}

// WithScanError makes Scan fail immediately.
func (b *AdapterBuilder) WithScanError(err error) *AdapterBuilder {
	b.scanErr = err
	return b
}

// Link returns the link served for address by the last Build.
func (b *AdapterBuilder) Link(address string) *MockLink {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.links[address]
}

// Build creates the MockAdapter.
//
// Scan replays every advertisement and then blocks until its context is done,
// like a real radio would.
func (b *AdapterBuilder) Build() *MockAdapter {
	adapter := &MockAdapter{}

	if b.scanErr != nil {
		adapter.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(b.scanErr)
	} else {
		ads := append([]device.Advertisement(nil), b.ads...)
		adapter.On("Scan", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				ctx := args.Get(0).(context.Context)
				handler := args.Get(2).(func(device.Advertisement))
				for _, ad := range ads {
					if ctx.Err() != nil {
						return
					}
					handler(ad)
				}
				<-ctx.Done()
			}).
			Return(nil)
	}

	for _, p := range b.peripherals {
		address := p.Address()
		matcher := mock.MatchedBy(func(per device.Peripheral) bool {
			return per.Address() == address
		})

		if p.dialErr != nil {
			adapter.On("Dial", mock.Anything, matcher).Return(nil, p.dialErr)
			continue
		}

		link := p.Build()
		b.mu.Lock()
		b.links[address] = link
		b.mu.Unlock()
		adapter.On("Dial", mock.Anything, matcher).Return(link, nil)
	}

	adapter.On("Stop").Return(nil)
	return adapter
}
