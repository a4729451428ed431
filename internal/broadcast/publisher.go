package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Publisher delivers messages to one sink. Implementations must be safe for
// concurrent use; sessions publish from their own goroutines.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg Message) error

func (f PublisherFunc) Publish(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Discard drops every message.
var Discard Publisher = PublisherFunc(func(context.Context, Message) error { return nil })

type sink struct {
	name string
	pub  Publisher
}

// Fanout publishes every message to all of its sinks. A failing sink does not
// stop delivery to the others.
type Fanout struct {
	logger *logrus.Logger

	mu    sync.RWMutex
	sinks []sink
}

func NewFanout(logger *logrus.Logger) *Fanout {
	if logger == nil {
		logger = logrus.New()
	}
	return &Fanout{logger: logger}
}

// Add registers a named sink.
func (f *Fanout) Add(name string, p Publisher) *Fanout {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink{name: name, pub: p})
	return f
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

func (f *Fanout) Publish(ctx context.Context, msg Message) error {
	f.mu.RLock()
	sinks := append([]sink(nil), f.sinks...)
	f.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.pub.Publish(ctx, msg); err != nil {
			f.logger.WithFields(logrus.Fields{
				"sink": s.name,
				"kind": msg.Kind.String(),
			}).WithError(err).Warn("Publish failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
