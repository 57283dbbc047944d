// Package broker fans Messages out across multiple transport.Server
// processes behind a load balancer, using Redis pub/sub, so that two
// clients connected to different processes still converge on the same
// document. Grounded on the teacher's server/main.go handleConnections,
// which subscribes to and publishes on a single hardcoded "test-doc"
// Redis channel; this package generalizes that to one channel per
// document ID.
package broker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis implements transport.Broker against a redis.Client.
type Redis struct {
	client *redis.Client
}

// New wraps an already-connected redis.Client.
func New(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Dial connects to addr and pings it, matching the teacher's
// rdb.Ping(ctx) startup check in server/main.go.
func Dial(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("broker: connect to redis at %s: %w", addr, err)
	}
	return New(client), nil
}

// channelFor maps a document ID to its Redis pub/sub channel name.
func channelFor(docID string) string {
	return "collabtext:doc:" + docID
}

// Publish publishes payload on docID's channel, for every other process
// subscribed to it to relay to its own local websocket clients.
func (r *Redis) Publish(docID string, payload []byte) error {
	ctx := context.Background()
	if err := r.client.Publish(ctx, channelFor(docID), payload).Err(); err != nil {
		return fmt.Errorf("broker: publish to %q: %w", docID, err)
	}
	return nil
}

// Subscribe registers onMessage to be called with every payload published
// on docID's channel by another process, mirroring the teacher's
// goroutine that forwards Redis messages onto the websocket connection.
// The returned unsubscribe function stops the relay and releases the
// underlying pub/sub connection.
func (r *Redis) Subscribe(docID string, onMessage func(payload []byte)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelFor(docID))
	ch := pubsub.Channel()

	go func() {
		for msg := range ch {
			onMessage([]byte(msg.Payload))
		}
	}()

	unsubscribe := func() {
		cancel()
		_ = pubsub.Close()
	}
	return unsubscribe, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
