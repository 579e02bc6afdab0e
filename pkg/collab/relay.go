package collab

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// relayChannel is the Redis pub/sub channel shared by all instances.
const relayChannel = "netcanvas:rooms"

// relayMessage is the wire format for cross-instance events.
type relayMessage struct {
	Instance string          `json:"instance"`
	Room     string          `json:"room"`
	SenderID string          `json:"senderId"`
	Name     string          `json:"event"`
	Data     json.RawMessage `json:"data"`
}

// RedisRelay bridges room events between server instances over Redis
// pub/sub. Each instance tags its messages with a random instance id and
// ignores its own, so events traverse the relay at most once.
type RedisRelay struct {
	client   *redis.Client
	instance string
	logger   *log.Logger
}

// NewRedisRelay connects to Redis at addr and verifies the connection.
func NewRedisRelay(ctx context.Context, addr string, logger *log.Logger) (*RedisRelay, error) {
	if logger == nil {
		logger = log.Default()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisRelay{
		client:   client,
		instance: uuid.NewString(),
		logger:   logger,
	}, nil
}

// Publish sends a room event to all other instances.
func (r *RedisRelay) Publish(ctx context.Context, room, senderID string, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(relayMessage{
		Instance: r.instance,
		Room:     room,
		SenderID: senderID,
		Name:     ev.Name,
		Data:     data,
	})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, relayChannel, msg).Err()
}

// Run subscribes to the relay channel and forwards remote events into the
// broadcaster until ctx is canceled. Run blocks; call it in a goroutine.
func (r *RedisRelay) Run(ctx context.Context, b *Broadcaster) {
	sub := r.client.Subscribe(ctx, relayChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg relayMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				r.logger.Warn("relay: dropping malformed message", "err", err)
				continue
			}
			if msg.Instance == r.instance {
				continue // our own publish echoed back
			}
			b.DeliverRemote(msg.Room, msg.SenderID, Event{Name: msg.Name, Data: msg.Data})
		}
	}
}

// Close releases the Redis connection.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
