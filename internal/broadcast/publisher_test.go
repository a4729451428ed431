package broadcast_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/srg/beathard/internal/broadcast"
	"github.com/srg/beathard/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []broadcast.Message
	err  error
}

func (r *recorder) Publish(_ context.Context, msg broadcast.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recorder) Messages() []broadcast.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Message(nil), r.msgs...)
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	failing := &recorder{err: errors.New("broker gone")}
	healthy := &recorder{}

	fan := broadcast.NewFanout(helper.Logger).
		Add("mqtt", failing).
		Add("ws", healthy)
	require.Equal(t, 2, fan.Len())

	err := fan.Publish(context.Background(), broadcast.StatsReset(1))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt: broker gone")
	assert.Len(t, failing.Messages(), 1)
	assert.Len(t, healthy.Messages(), 1, "a failing sink must not block the others")
	assert.Len(t, helper.Hook.AllEntries(), 1)
}

func TestFanoutEmpty(t *testing.T) {
	assert.NoError(t, broadcast.NewFanout(nil).Publish(context.Background(), broadcast.StatsReset(1)))
}

func TestPublisherFunc(t *testing.T) {
	var got broadcast.Kind
	p := broadcast.PublisherFunc(func(_ context.Context, msg broadcast.Message) error {
		got = msg.Kind
		return nil
	})

	require.NoError(t, p.Publish(context.Background(), broadcast.ViewChange("live", nil, 1)))
	assert.Equal(t, broadcast.KindViewChange, got)
	assert.NoError(t, broadcast.Discard.Publish(context.Background(), broadcast.StatsReset(1)))
}
