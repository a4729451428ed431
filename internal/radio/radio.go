// Package radio owns the process-wide adapter handle.
package radio

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/device"
)

// Handle lazily creates one adapter and shares it with every caller.
//
// Creation is serialized under the same lock that guards the stored adapter,
// so two concurrent Acquire calls can never produce two live adapters.
type Handle struct {
	factory device.AdapterFactory
	logger  *logrus.Logger

	mu      sync.Mutex
	adapter device.Adapter
}

func New(factory device.AdapterFactory, logger *logrus.Logger) *Handle {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handle{factory: factory, logger: logger}
}

// Acquire returns the shared adapter, initializing it on first use.
func (h *Handle) Acquire() (device.Adapter, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.adapter != nil {
		return h.adapter, nil
	}

	if h.factory == nil {
		return nil, fmt.Errorf("%w: no adapter factory configured", device.ErrAdapterUnavailable)
	}

	a, err := h.factory()
	if err != nil {
		h.logger.WithError(err).Warn("Bluetooth adapter initialization failed")
		return nil, fmt.Errorf("%w: %w", device.ErrAdapterUnavailable, err)
	}
	if a == nil {
		return nil, device.ErrAdapterUnavailable
	}

	h.logger.Info("Bluetooth adapter initialized")
	h.adapter = a
	return a, nil
}

// Available reports whether an adapter is currently held.
func (h *Handle) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.adapter != nil
}

// Invalidate stops and forgets the adapter. The next Acquire creates a new one.
func (h *Handle) Invalidate() {
	h.mu.Lock()
	a := h.adapter
	h.adapter = nil
	h.mu.Unlock()

	if a == nil {
		return
	}
	if err := a.Stop(); err != nil {
		h.logger.WithError(err).Warn("Failed to stop Bluetooth adapter")
	}
	h.logger.Info("Bluetooth adapter invalidated")
}
