package goble

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/ringchan"
)

// stream buffers notifications from the go-ble callback. The callback never
// blocks: when the consumer falls behind the oldest payload is overwritten.
type stream struct {
	logger      *logrus.Entry
	queue       *ringchan.RingChannel[[]byte]
	unsubscribe func() error

	mu    sync.Mutex
	done  bool
	err   error
	ended chan struct{}

	unsubOnce sync.Once
	unsubErr  error
}

func newStream(size int, logger *logrus.Entry, unsubscribe func() error) *stream {
	return &stream{
		logger:      logger,
		queue:       ringchan.New[[]byte](size),
		unsubscribe: unsubscribe,
		ended:       make(chan struct{}),
	}
}

func (s *stream) push(data []byte) {
	// go-ble reuses its receive buffer
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	if s.queue.Send(buf) {
		s.logger.Debug("notification queue full, dropped oldest payload")
	}
}

func (s *stream) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.err = err
	s.queue.Close()
	close(s.ended)
}

func (s *stream) C() <-chan []byte { return s.queue.C() }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() error {
	s.unsubOnce.Do(func() {
		s.unsubErr = s.unsubscribe()
	})
	s.finish(nil)
	return s.unsubErr
}
