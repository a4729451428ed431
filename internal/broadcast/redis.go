package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// StreamAdder is the part of a redis client used by RedisPublisher.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisOptions configures DialRedis.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	StreamPrefix string
	MaxLen       int64
}

// RedisPublisher appends each message to the stream <prefix>:<topic>.
type RedisPublisher struct {
	client StreamAdder
	prefix string
	maxLen int64
	closer func() error
}

func NewRedisPublisher(client StreamAdder, prefix string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix, maxLen: maxLen}
}

// DialRedis connects to the server and checks it answers.
func DialRedis(ctx context.Context, opts RedisOptions) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	p := NewRedisPublisher(client, opts.StreamPrefix, opts.MaxLen)
	p.closer = client.Close
	return p, nil
}

// Stream returns the stream a message of kind k is appended to.
func (p *RedisPublisher) Stream(k Kind) string {
	if p.prefix == "" {
		return k.Topic()
	}
	return p.prefix + ":" + k.Topic()
}

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.Stream(msg.Kind),
		Values: map[string]interface{}{
			"kind":      msg.Kind.String(),
			"data":      string(payload),
			"timestamp": msg.Timestamp,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", args.Stream, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
