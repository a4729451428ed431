package goble

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/device"
)

// DefaultQueueSize bounds buffered notifications per subscription.
const DefaultQueueSize = 64

// Adapter implements device.Adapter on top of a go-ble device.
type Adapter struct {
	dev       ble.Device
	logger    *logrus.Logger
	queueSize int
}

// NewAdapter opens the platform radio through DeviceFactory.
func NewAdapter(logger *logrus.Logger, queueSize int) (*Adapter, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	dev, err := DeviceFactory()
	if err != nil {
		err = NormalizeError(err)
		if !errors.Is(err, device.ErrAdapterUnavailable) {
			err = fmt.Errorf("%w: %v", device.ErrAdapterUnavailable, err)
		}
		return nil, err
	}

	return &Adapter{dev: dev, logger: logger, queueSize: queueSize}, nil
}

// Factory adapts NewAdapter to device.AdapterFactory.
func Factory(logger *logrus.Logger, queueSize int) device.AdapterFactory {
	return func() (device.Adapter, error) {
		a, err := NewAdapter(logger, queueSize)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

// Scan blocks until ctx is done and returns ctx.Err() in that case.
func (a *Adapter) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	err := a.dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	})
	return NormalizeError(err)
}

func (a *Adapter) Dial(ctx context.Context, p device.Peripheral) (device.Link, error) {
	addr := nativeAddr(p)
	a.logger.WithField("address", addr.String()).Debug("Dialing BLE device...")

	client, err := a.dev.Dial(ctx, addr)
	if err != nil {
		return nil, NormalizeError(err)
	}
	return newLink(client, a.logger, a.queueSize), nil
}

func (a *Adapter) Stop() error {
	return NormalizeError(a.dev.Stop())
}
