package supervisor_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/srg/beathard/internal/broadcast"
	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/device"
	"github.com/srg/beathard/internal/supervisor"
	"github.com/srg/beathard/internal/testutils"
)

// stepClock advances one second per reading so every sample clears the cooldown.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.UnixMilli(1_712_345_678_000)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type recorder struct {
	msgs chan broadcast.Message
}

func newRecorder() *recorder {
	return &recorder{msgs: make(chan broadcast.Message, 32)}
}

func (r *recorder) Publish(_ context.Context, msg broadcast.Message) error {
	select {
	case r.msgs <- msg:
	default:
	}
	return nil
}

func (r *recorder) next(timeout time.Duration) (broadcast.Message, bool) {
	select {
	case msg := <-r.msgs:
		return msg, true
	case <-time.After(timeout):
		return broadcast.Message{}, false
	}
}

type ManagerTestSuite struct {
	testutils.MockRadioSuite

	pub     *recorder
	fighter *detection.Competitor
}

func (s *ManagerTestSuite) SetupTest() {
	s.MockRadioSuite.SetupTest()
	s.pub = newRecorder()
	s.fighter = &detection.Competitor{ID: 1, Name: "Ana", Weight: 70}
}

func (s *ManagerTestSuite) options() supervisor.Options {
	opts := supervisor.DefaultOptions()
	opts.ScanBudget = 50 * time.Millisecond
	opts.ResolveBudget = 100 * time.Millisecond
	opts.SettleDelay = 0
	return opts
}

func (s *ManagerTestSuite) newManager() *supervisor.Manager {
	return s.newManagerWith(s.pub)
}

func (s *ManagerTestSuite) newManagerWith(pub broadcast.Publisher) *supervisor.Manager {
	m := supervisor.New(s.Factory(), pub, s.options(), s.Logger).WithClock(newStepClock().Now)
	s.T().Cleanup(func() { _ = m.Cleanup(context.Background()) })
	return m
}

func (s *ManagerTestSuite) withSensor(address, name string) *testutils.PeripheralBuilder {
	p := testutils.NewPeripheralBuilder(address)
	s.Radio.WithSensor(address, name, -40).WithPeripheral(p)
	return p
}

// acc 1.5 g, gyro 40 dps
func slapPayload() []byte {
	return testutils.NewFrameBuilder().WithLimbID(1).WithBattery(80).
		WithAcc(1500, 0, 0).WithGyro(10000, 0, 0).Build()
}

func (s *ManagerTestSuite) waitIdle(m *supervisor.Manager) {
	s.Require().Eventually(func() bool {
		st := m.Status()
		return st.ActiveTasks == 0 && st.ConnectedDevices == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ManagerTestSuite) TestScanDescribesSensors() {
	s.Radio.
		WithSensor("AA:01", "BH-ManoDerecha", -42).
		WithSensor("CC:09", "Speaker", -30).
		WithSensor("AA:04", "BH-PiernaIzquierda", -60)
	m := s.newManager()

	results, err := m.Scan(context.Background())

	s.Require().NoError(err)
	s.Require().Len(results, 2)
	s.Equal(supervisor.ScanResult{
		ID:            "AA:01",
		Name:          "BH-ManoDerecha",
		Address:       "AA:01",
		Limb:          detection.RightHand,
		LimbName:      "Mano Derecha",
		RSSI:          -42,
		IsConnectable: true,
	}, results[0])
	s.Equal(detection.LeftFoot, results[1].Limb)
	s.True(m.Status().Initialized)
}

func (s *ManagerTestSuite) TestScanAdapterFailureInvalidatesRadio() {
	s.Radio.WithScanError(device.ErrAdapterUnavailable)
	m := s.newManager()

	_, err := m.Scan(context.Background())

	s.ErrorIs(err, device.ErrAdapterUnavailable)
	s.False(m.Status().Initialized)
}

func (s *ManagerTestSuite) TestResetStatsPublishes() {
	m := s.newManager()

	m.ResetStats(context.Background())

	msg, ok := s.pub.next(time.Second)
	s.Require().True(ok)
	s.Equal(broadcast.KindStatsReset, msg.Kind)
	s.NotZero(msg.Timestamp)
	s.Empty(m.AllStats())
}

func (s *ManagerTestSuite) TestControlBroadcasts() {
	m := s.newManager()
	ctx := context.Background()

	s.Require().NoError(m.BroadcastBattleConfig(ctx, map[string]any{"rounds": 3}))
	msg, ok := s.pub.next(time.Second)
	s.Require().True(ok)
	s.Equal(broadcast.KindBattleConfig, msg.Kind)
	s.Equal(map[string]any{"rounds": 3}, msg.Data)

	s.Require().NoError(m.BroadcastViewChange(ctx, "stats", nil))
	msg, ok = s.pub.next(time.Second)
	s.Require().True(ok)
	s.Equal(broadcast.KindViewChange, msg.Kind)
	s.Equal("stats", msg.View)

	s.Error(m.BroadcastViewChange(ctx, "", nil))

	s.Run("publisher errors are returned", func() {
		failing := s.newManagerWith(broadcast.PublisherFunc(func(context.Context, broadcast.Message) error {
			return errors.New("no consumers")
		}))
		s.EqualError(failing.BroadcastBattleConfig(ctx, nil), "no consumers")
	})
}
