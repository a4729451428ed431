package broadcast_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/srg/beathard/internal/broadcast"
	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/stats"
	"github.com/srg/beathard/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStreams struct {
	calls []*redis.XAddArgs
	err   error
}

func (f *fakeStreams) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.calls = append(f.calls, a)
	return redis.NewStringResult("1712345678901-0", f.err)
}

func TestRedisPublisherAppendsToTopicStream(t *testing.T) {
	streams := &fakeStreams{}
	pub := broadcast.NewRedisPublisher(streams, "beathard", 1000)

	rec := stats.Record{FighterID: "fighter_2", MaxForce: 50}
	ev := detection.Event{EventType: detection.LowKick, FighterID: "fighter_2", Force: 50, Timestamp: 42}
	require.NoError(t, pub.Publish(context.Background(), broadcast.NewRecord(rec, []stats.Kind{stats.Force}, ev)))

	require.Len(t, streams.calls, 1)
	args := streams.calls[0]
	assert.Equal(t, "beathard:records", args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values := args.Values.(map[string]interface{})
	assert.Equal(t, "max_stats_update", values["kind"])
	assert.Equal(t, int64(42), values["timestamp"])
	testutils.NewJSONAsserter(t).Assert(values["data"].(string),
		`{"type":"max_stats_update","fighter_id":"fighter_2","new_records":["force"],"triggering_event":{"event_type":"low_kick","force":50},"timestamp":42}`)
}

func TestRedisPublisherUnboundedStream(t *testing.T) {
	streams := &fakeStreams{}
	pub := broadcast.NewRedisPublisher(streams, "", 0)

	require.NoError(t, pub.Publish(context.Background(), broadcast.CombatEvent(slap)))

	assert.Equal(t, "events", streams.calls[0].Stream)
	assert.Zero(t, streams.calls[0].MaxLen)
	assert.False(t, streams.calls[0].Approx)
	assert.NoError(t, pub.Close())
}

func TestRedisPublisherError(t *testing.T) {
	pub := broadcast.NewRedisPublisher(&fakeStreams{err: errors.New("OOM command not allowed")}, "bh", 0)

	err := pub.Publish(context.Background(), broadcast.StatsReset(1))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bh:control")
	assert.Contains(t, err.Error(), "OOM")
}
