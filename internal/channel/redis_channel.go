package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Event names shared with connected clients over the realtime channel.
const (
	EventNotification         = "notification"
	EventNotificationRead     = "notification:read"
	EventNotificationsAllRead = "notifications:allRead"
	EventNotificationAck      = "notification:ack"
)

// Envelope frames every message crossing the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Publisher pushes a payload to all sessions currently subscribed to a
// user's topic. Publishing to a user with no connected sessions is a valid
// no-op; the channel never queues missed messages — durability is the
// notification row's job.
type Publisher interface {
	Publish(ctx context.Context, userID uint64, event string, data any) error
}

// Topic is the per-recipient pub/sub topic. An authenticated session
// subscribes to its own topic on connect.
func Topic(userID uint64) string {
	return fmt.Sprintf("user:%d", userID)
}

// RedisChannel implements the delivery channel on redis pub/sub.
type RedisChannel struct {
	client *redis.Client
}

// NewRedisChannel wraps an existing redis client.
func NewRedisChannel(client *redis.Client) *RedisChannel {
	return &RedisChannel{client: client}
}

// Publish sends an enveloped event to the user's topic. The subscriber
// count is irrelevant: zero receivers is success, only an unreachable
// channel is an error.
func (c *RedisChannel) Publish(ctx context.Context, userID uint64, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal channel payload: %w", err)
	}
	env, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return c.client.Publish(ctx, Topic(userID), env).Err()
}

// Subscription is one connected session's view of its user topic.
type Subscription struct {
	pubsub *redis.PubSub
	ch     chan Envelope
}

// Subscribe attaches a session to the user's topic and starts delivering
// envelopes on Events(). Callers must Close() when the session ends.
func (c *RedisChannel) Subscribe(ctx context.Context, userID uint64) (*Subscription, error) {
	ps := c.client.Subscribe(ctx, Topic(userID))
	// confirm the subscription before handing it out
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Topic(userID), err)
	}

	sub := &Subscription{pubsub: ps, ch: make(chan Envelope, 16)}
	go sub.pump()
	return sub, nil
}

func (s *Subscription) pump() {
	defer close(s.ch)
	for msg := range s.pubsub.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			continue
		}
		s.ch <- env
	}
}

// Events yields envelopes pushed to the topic while subscribed.
func (s *Subscription) Events() <-chan Envelope {
	return s.ch
}

// Close detaches the session from the topic.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
