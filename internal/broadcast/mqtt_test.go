package broadcast_test

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/srg/beathard/internal/broadcast"
	"github.com/srg/beathard/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockMQTTClient overrides the calls MQTTPublisher makes; anything else
// panics through the nil embedded interface.
type mockMQTTClient struct {
	mqtt.Client
	mock.Mock
}

func (m *mockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return m.Called(topic, qos, retained, payload).Get(0).(mqtt.Token)
}

func (m *mockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

type fakeToken struct {
	completed bool
	err       error
}

func (t *fakeToken) Wait() bool                     { return t.completed }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.completed }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.completed {
		close(ch)
	}
	return ch
}

func TestMQTTPublisherTopics(t *testing.T) {
	client := &mockMQTTClient{}
	pub := broadcast.NewMQTTPublisher(client, "beathard", 1, time.Second, nil)

	var payload []byte
	client.On("Publish", "beathard/events", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(3).([]byte) }).
		Return(&fakeToken{completed: true})
	client.On("Publish", "beathard/control", byte(1), false, mock.Anything).
		Return(&fakeToken{completed: true})

	require.NoError(t, pub.Publish(context.Background(), broadcast.CombatEvent(slap)))
	require.NoError(t, pub.Publish(context.Background(), broadcast.StatsReset(5)))

	client.AssertExpectations(t)
	testutils.NewJSONAsserter(t).Assert(string(payload), `{"viewType":"live-combat","data":{"fighter_id":"fighter_1"}}`)
	assert.Equal(t, "beathard/records", pub.Topic(broadcast.KindNewRecord))
	assert.Equal(t, "records", broadcast.NewMQTTPublisher(client, "", 0, 0, nil).Topic(broadcast.KindNewRecord))
}

func TestMQTTPublisherErrors(t *testing.T) {
	tests := []struct {
		name    string
		token   *fakeToken
		wantErr string
	}{
		{"timeout", &fakeToken{completed: false}, "timed out"},
		{"broker error", &fakeToken{completed: true, err: errors.New("not authorized")}, "not authorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockMQTTClient{}
			client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tt.token)

			err := broadcast.NewMQTTPublisher(client, "bh", 0, 10*time.Millisecond, nil).
				Publish(context.Background(), broadcast.StatsReset(1))

			require.Error(t, err)
			assert.Contains(t, err.Error(), "bh/control")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMQTTPublisherClose(t *testing.T) {
	client := &mockMQTTClient{}
	client.On("Disconnect", uint(250)).Return()

	assert.NoError(t, broadcast.NewMQTTPublisher(client, "bh", 0, 0, nil).Close())
	client.AssertExpectations(t)
}
