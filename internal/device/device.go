package device

import (
	"context"
	"strings"
)

// Property is the set of GATT characteristic capabilities.
type Property uint8

const (
	PropBroadcast Property = 1 << iota
	PropRead
	PropWriteWithoutResponse
	PropWrite
	PropNotify
	PropIndicate
)

// Has reports whether all bits of p are set.
func (p Property) Has(flag Property) bool {
	return p&flag == flag
}

func (p Property) String() string {
	names := []struct {
		flag Property
		name string
	}{
		{PropBroadcast, "broadcast"},
		{PropRead, "read"},
		{PropWriteWithoutResponse, "write-without-response"},
		{PropWrite, "write"},
		{PropNotify, "notify"},
		{PropIndicate, "indicate"},
	}

	var parts []string
	for _, n := range names {
		if p.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Peripheral is a dialable handle to a discovered device.
// Adapters may attach native state to it; callers only rely on Address.
type Peripheral interface {
	Address() string
}

// Advertisement is a single advertising report seen while scanning.
type Advertisement interface {
	Addr() string
	LocalName() string
	RSSI() int
	Connectable() bool
	Peripheral() Peripheral
}

// Adapter is the shared radio. One instance serves every scan and connection.
type Adapter interface {
	// Scan delivers advertisements to handler until ctx is done.
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
	Dial(ctx context.Context, p Peripheral) (Link, error)
	Stop() error
}

// AdapterFactory creates the platform adapter.
type AdapterFactory func() (Adapter, error)

// Link is an established connection to one peripheral.
type Link interface {
	Address() string
	DiscoverServices(ctx context.Context) ([]Service, error)
	DiscoverCharacteristics(ctx context.Context, svc Service) ([]Characteristic, error)
	Subscribe(ctx context.Context, char Characteristic) (NotificationStream, error)

	// Disconnected is closed when the peripheral drops the link.
	Disconnected() <-chan struct{}
	Close() error
}

// Service is a GATT service.
type Service interface {
	UUID() string
}

// Characteristic is a GATT characteristic.
type Characteristic interface {
	UUID() string
	Properties() Property
}

// NotificationStream delivers characteristic payloads in arrival order.
//
// C is closed when the stream ends. Err then reports why: nil for an orderly
// end of stream, non-nil when the transport failed.
type NotificationStream interface {
	C() <-chan []byte
	Err() error
	Close() error
}
