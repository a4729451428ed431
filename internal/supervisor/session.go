package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/broadcast"
	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/device"
	"github.com/srg/beathard/internal/frame"
	"github.com/srg/beathard/internal/groutine"
)

// Task is the handle of one device session.
type Task struct {
	id     string
	cancel context.CancelFunc

	mu     sync.Mutex
	link   device.Link
	stream device.NotificationStream
	done   <-chan struct{}
	exit   error
	closed bool

	closeOnce sync.Once
	closeErr  error
}

func newTask(id string, cancel context.CancelFunc) *Task {
	return &Task{id: id, cancel: cancel}
}

func (t *Task) Cancel() { t.cancel() }

// Done is closed once the streaming goroutine has returned. It is nil until
// streaming starts.
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Err is the reason streaming stopped: nil after a cancel, otherwise
// device.ErrStreamEnded or device.ErrStreamError.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exit
}

// attach stores the resources opened during setup. Once the task is closed
// it releases them right away instead and reports false.
func (t *Task) attach(link device.Link, stream device.NotificationStream) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		if link != nil {
			_ = link.Close()
		}
		return false
	}
	defer t.mu.Unlock()
	if link != nil {
		t.link = link
	}
	if stream != nil {
		t.stream = stream
	}
	return true
}

// close releases the stream and link exactly once and returns the link close error.
func (t *Task) close() error {
	t.closeOnce.Do(func() {
		t.cancel()

		t.mu.Lock()
		t.closed = true
		link, stream := t.link, t.stream
		t.mu.Unlock()

		if stream != nil {
			_ = stream.Close()
		}
		if link != nil {
			t.closeErr = link.Close()
		}
	})
	return t.closeErr
}

type session struct {
	id       string
	link     device.Link
	stream   device.NotificationStream
	detector *detection.Detector
	log      *logrus.Entry
}

// Connect resolves, dials and subscribes to the sensor id, then streams its
// notifications in the background. A nil competitor connects the sensor
// without classifying its motion.
//
// Connect returns once the subscription is live; the returned error is a
// *device.SessionError naming the step that failed.
func (m *Manager) Connect(ctx context.Context, id string, competitor *detection.Competitor) error {
	log := m.logger.WithField("device_id", id)

	sessCtx, cancel := context.WithCancel(context.Background())
	t := newTask(id, cancel)
	if err := m.registry.AttachTask(id, t); err != nil {
		cancel()
		return &device.SessionError{Device: id, State: device.StateResolving, Err: err}
	}

	// setup follows the caller's ctx and stops early on Disconnect
	stepCtx, stopSteps := context.WithCancel(ctx)
	defer stopSteps()
	unhook := context.AfterFunc(sessCtx, stopSteps)
	defer unhook()

	fail := func(state device.SessionState, err error) error {
		m.registry.DetachTaskIf(id, t)
		if cerr := t.close(); cerr != nil {
			log.WithError(cerr).Debug("Close after failed setup")
		}
		log.WithField("state", state).WithError(err).Warn("Connection failed")
		return &device.SessionError{Device: id, State: state, Err: err}
	}

	rec, err := m.registry.Resolve(stepCtx, id)
	if err != nil {
		return fail(device.StateResolving, err)
	}

	adapter, err := m.radio.Acquire()
	if err != nil {
		return fail(device.StateConnecting, err)
	}

	log.WithField("name", rec.Name).Info("Connecting")
	link, err := adapter.Dial(stepCtx, rec.Peripheral)
	if err != nil {
		if errors.Is(err, device.ErrAdapterUnavailable) {
			m.radio.Invalidate()
		}
		if !errors.Is(err, device.ErrConnectFailed) {
			err = fmt.Errorf("%w: %w", device.ErrConnectFailed, err)
		}
		return fail(device.StateConnecting, err)
	}
	if !t.attach(link, nil) {
		return fail(device.StateConnecting, context.Canceled)
	}

	if err := sleepCtx(stepCtx, m.opts.SettleDelay); err != nil {
		return fail(device.StateConnecting, err)
	}

	char, err := findNotify(stepCtx, link)
	if err != nil {
		return fail(device.StateDiscoveringService, err)
	}

	stream, err := link.Subscribe(stepCtx, char)
	if err != nil {
		if !errors.Is(err, device.ErrSubscribeFailed) {
			err = fmt.Errorf("%w: %w", device.ErrSubscribeFailed, err)
		}
		return fail(device.StateSubscribing, err)
	}
	if !t.attach(nil, stream) {
		return fail(device.StateSubscribing, context.Canceled)
	}

	competitorName := ""
	if competitor != nil {
		competitorName = competitor.Name
	}
	m.registry.Register(id, rec.Name, rec.Limb, competitorName)

	// Disconnect cancels before it unregisters, so checking after Register
	// never leaves a stale entry behind.
	if sessCtx.Err() != nil {
		m.registry.Unregister(id)
		return fail(device.StateSubscribing, context.Canceled)
	}

	s := &session{
		id:       id,
		link:     link,
		stream:   stream,
		detector: detection.NewDetector(rec.Limb, competitor, m.opts.Detection),
		log:      log.WithField("limb", rec.Limb.String()),
	}

	done := groutine.Go(sessCtx, "session:"+id, func(ctx context.Context) {
		m.runSession(ctx, t, s)
	})
	t.mu.Lock()
	t.done = done
	t.mu.Unlock()

	fields := logrus.Fields{"name": rec.Name, "characteristic": char.UUID()}
	if competitor != nil {
		fields["fighter_id"] = competitor.FighterID()
	}
	log.WithFields(fields).Info("Device streaming")
	return nil
}

// Disconnect stops the session for id. Queued notifications are dropped.
// The returned error is the link close error, if any.
func (m *Manager) Disconnect(id string) error {
	rt := m.registry.DetachTask(id)
	if rt == nil {
		if m.registry.Unregister(id) {
			return nil
		}
		return &device.ConnectionError{State: device.NotConnected, Msg: id}
	}

	rt.Cancel()
	m.registry.Unregister(id)

	log := m.logger.WithField("device_id", id)
	t, ok := rt.(*Task)
	if !ok {
		return nil
	}
	if err := t.close(); err != nil {
		log.WithError(err).Warn("Link close failed")
		return fmt.Errorf("disconnect %s: %w", id, err)
	}
	log.Info("Device disconnected")
	return nil
}

// DisconnectAll disconnects every connected device. A failure for one device
// does not stop the others; all failures are returned joined.
func (m *Manager) DisconnectAll() error {
	var errs []error
	for _, c := range m.registry.ListConnected() {
		if err := m.Disconnect(c.ID); err != nil {
			if device.IsConnectionState(err, device.NotConnected) {
				continue
			}
			m.logger.WithField("device_id", c.ID).WithError(err).Warn("Disconnect failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) runSession(ctx context.Context, t *Task, s *session) {
	err := m.pump(ctx, s)

	switch {
	case err == nil:
		s.log.Debug("Session cancelled")
	case errors.Is(err, device.ErrStreamEnded):
		s.log.Info("Notification stream ended")
	default:
		s.log.WithError(err).Warn("Notification stream failed")
	}

	if m.registry.DetachTaskIf(s.id, t) {
		m.registry.Unregister(s.id)
	}
	if cerr := t.close(); cerr != nil {
		s.log.WithError(cerr).Warn("Link close failed")
	}

	t.mu.Lock()
	t.exit = err
	t.mu.Unlock()
}

func (m *Manager) pump(ctx context.Context, s *session) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.link.Disconnected():
			return fmt.Errorf("%w: peripheral disconnected", device.ErrStreamEnded)
		case payload, ok := <-s.stream.C():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				if err := s.stream.Err(); err != nil {
					return fmt.Errorf("%w: %w", device.ErrStreamError, err)
				}
				return device.ErrStreamEnded
			}
			if ctx.Err() != nil {
				return nil
			}
			if err := m.handle(ctx, s, payload); err != nil {
				return err
			}
		}
	}
}

// handle runs one payload through decode, detection, stats and publishing.
func (m *Manager) handle(ctx context.Context, s *session, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic while processing sample: %v", device.ErrStreamError, r)
		}
	}()

	sample, err := frame.Decode(payload, m.now())
	if err != nil {
		s.log.WithError(err).Debug("Skipping malformed notification")
		return nil
	}

	m.registry.UpdateBattery(s.id, sample.Battery)
	if limb, ok := detection.LimbFromID(sample.LimbID); !ok || limb != s.detector.Limb() {
		s.log.WithField("frame_limb_id", sample.LimbID).Debug("Frame limb id does not match assigned limb")
	}

	ev, ok := s.detector.Detect(sample)
	if !ok {
		return nil
	}

	s.log.WithFields(logrus.Fields{
		"fighter_id": ev.FighterID,
		"event_type": ev.EventType,
		"force":      ev.Force,
	}).Info("Combat event")
	m.publish(ctx, broadcast.CombatEvent(ev))

	if rec, broken := m.tracker.Apply(ev); len(broken) > 0 {
		m.publish(ctx, broadcast.NewRecord(rec, broken, ev))
	}
	return nil
}

// findNotify returns the first characteristic, in discovery order, that
// supports notifications.
func findNotify(ctx context.Context, link device.Link) (device.Characteristic, error) {
	services, err := link.DiscoverServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: service discovery: %w", device.ErrNoNotifyChannel, err)
	}
	for _, svc := range services {
		chars, err := link.DiscoverCharacteristics(ctx, svc)
		if err != nil {
			return nil, fmt.Errorf("%w: characteristic discovery on %s: %w", device.ErrNoNotifyChannel, svc.UUID(), err)
		}
		for _, c := range chars {
			if c.Properties().Has(device.PropNotify) {
				return c, nil
			}
		}
	}
	return nil, device.ErrNoNotifyChannel
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
