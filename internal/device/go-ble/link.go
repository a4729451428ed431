package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/device"
)

// Link implements device.Link over a go-ble client.
type Link struct {
	client    ble.Client
	logger    *logrus.Entry
	queueSize int

	mu      sync.Mutex
	streams []*stream
	closed  bool
}

func newLink(client ble.Client, logger *logrus.Logger, queueSize int) *Link {
	return &Link{
		client:    client,
		logger:    logger.WithField("address", client.Addr().String()),
		queueSize: queueSize,
	}
}

func (l *Link) Address() string { return l.client.Addr().String() }

func (l *Link) DiscoverServices(ctx context.Context) ([]device.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	svcs, err := l.client.DiscoverServices(nil)
	if err != nil {
		return nil, NormalizeError(err)
	}

	result := make([]device.Service, 0, len(svcs))
	for _, s := range svcs {
		result = append(result, &Service{svc: s})
	}
	return result, nil
}

func (l *Link) DiscoverCharacteristics(ctx context.Context, svc device.Service) ([]device.Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, ok := svc.(*Service)
	if !ok {
		return nil, fmt.Errorf("service %s does not belong to this link", svc.UUID())
	}

	chars, err := l.client.DiscoverCharacteristics(nil, s.svc)
	if err != nil {
		return nil, NormalizeError(err)
	}

	result := make([]device.Characteristic, 0, len(chars))
	for _, c := range chars {
		result = append(result, &Characteristic{char: c})
	}
	return result, nil
}

func (l *Link) Subscribe(ctx context.Context, char device.Characteristic) (device.NotificationStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, ok := char.(*Characteristic)
	if !ok {
		return nil, fmt.Errorf("characteristic %s does not belong to this link", char.UUID())
	}

	// The Linux stack needs the CCCD to enable notifications.
	if c.char.CCCD == nil {
		if _, err := l.client.DiscoverDescriptors(nil, c.char); err != nil {
			return nil, NormalizeError(err)
		}
	}

	st := newStream(l.queueSize, l.logger.WithField("characteristic", c.UUID()), func() error {
		return NormalizeError(l.client.Unsubscribe(c.char, false))
	})

	if err := l.client.Subscribe(c.char, false, st.push); err != nil {
		return nil, NormalizeError(err)
	}

	l.mu.Lock()
	l.streams = append(l.streams, st)
	l.mu.Unlock()

	if disconnected := l.Disconnected(); disconnected != nil {
		go func() {
			select {
			case <-disconnected:
				l.logger.Debug("peripheral disconnected, ending notification stream")
				st.finish(nil)
			case <-st.ended:
			}
		}()
	}

	return st, nil
}

// Disconnected returns nil when the platform client cannot report link loss.
func (l *Link) Disconnected() <-chan struct{} {
	if dc, ok := l.client.(interface{ Disconnected() <-chan struct{} }); ok {
		return dc.Disconnected()
	}
	return nil
}

// Close ends every stream and cancels the connection. Subsequent calls are no-ops.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	streams := l.streams
	l.streams = nil
	l.mu.Unlock()

	for _, st := range streams {
		st.finish(nil)
	}
	return NormalizeError(l.client.CancelConnection())
}

// Service wraps *ble.Service.
type Service struct {
	svc *ble.Service
}

func (s *Service) UUID() string { return s.svc.UUID.String() }

// Characteristic wraps *ble.Characteristic.
type Characteristic struct {
	char *ble.Characteristic
}

func (c *Characteristic) UUID() string { return c.char.UUID.String() }

func (c *Characteristic) Properties() device.Property {
	return convertProperty(c.char.Property)
}

func convertProperty(p ble.Property) device.Property {
	mapping := []struct {
		from ble.Property
		to   device.Property
	}{
		{ble.CharBroadcast, device.PropBroadcast},
		{ble.CharRead, device.PropRead},
		{ble.CharWriteNR, device.PropWriteWithoutResponse},
		{ble.CharWrite, device.PropWrite},
		{ble.CharNotify, device.PropNotify},
		{ble.CharIndicate, device.PropIndicate},
	}

	var result device.Property
	for _, m := range mapping {
		if p&m.from != 0 {
			result |= m.to
		}
	}
	return result
}
