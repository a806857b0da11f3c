// Package notifications provides real-time event delivery over websockets.
package notifications

import (
	"context"
	"log"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
)

// eventsChannel carries content events (post_created, comment_created) across
// all server instances. Subscribers fan the payload out to their local hub.
const eventsChannel = "events:content"

// Notifier publishes content events into Redis so every instance's hub sees
// them, not just the one that handled the request.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishBroadcast sends an event payload to all connected clients everywhere.
// Without Redis this is a no-op; the caller should broadcast locally instead.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, eventsChannel, payload).Err()
}

// Distributed reports whether events travel through Redis.
func (n *Notifier) Distributed() bool {
	return n != nil && n.rdb != nil
}

// StartSubscriber subscribes to the events channel and calls onMessage for
// each incoming payload until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, eventsChannel)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in event subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
