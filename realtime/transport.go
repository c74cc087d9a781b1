package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Subscription is one live channel subscription. Messages is closed when
// the subscription dies or is closed; a closed channel is how the manager
// detects transport failure.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Transport is the minimal pub/sub surface the manager needs. It is
// satisfied by RedisTransport in production and by fakes in tests.
type Transport interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Channel naming, scoped per match.
func messageChannel(matchID string) string { return "match:" + matchID + ":messages" }
func typingChannel(matchID string) string  { return "match:" + matchID + ":typing" }

// RedisTransport adapts a go-redis client to the Transport interface.
type RedisTransport struct {
	rdb *redis.Client
}

// NewRedisTransport wraps an existing Redis client.
func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{rdb: rdb}
}

// Subscribe opens a channel subscription and confirms it with the server
// before returning, so a refused subscribe surfaces as an error here rather
// than as a silently dead channel.
func (t *RedisTransport) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := t.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			out <- []byte(msg.Payload)
		}
	}()
	return &redisSubscription{ps: ps, out: out}, nil
}

// Publish sends one payload on a named channel.
func (t *RedisTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := t.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan []byte
}

func (s *redisSubscription) Messages() <-chan []byte { return s.out }
func (s *redisSubscription) Close() error            { return s.ps.Close() }
