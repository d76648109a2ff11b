package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Skotchmaster/jewelry_shop/pkg/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultRelayChannel = "chat-events"

// RedisRelay shares broadcasts between instances over a pub/sub channel.
// Origin tags what this instance publishes so its own subscriber skips it.
type RedisRelay struct {
	Client  *redis.Client
	Channel string
	Origin  string
}

type relayEnvelope struct {
	Origin string          `json:"origin"`
	Rooms  []string        `json:"rooms"`
	Data   json.RawMessage `json:"data"`
}

func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{Client: client, Channel: channel, Origin: uuid.NewString()}
}

func (r *RedisRelay) Publish(ctx context.Context, rooms []string, data []byte) error {
	payload, err := json.Marshal(relayEnvelope{Origin: r.Origin, Rooms: rooms, Data: data})
	if err != nil {
		return fmt.Errorf("relay: json.Marshal failed: %w", err)
	}
	if err := r.Client.Publish(ctx, r.Channel, payload).Err(); err != nil {
		return fmt.Errorf("relay: publish failed: %w", err)
	}
	return nil
}

// Subscribe blocks, handing every relayed broadcast to deliver.
func (r *RedisRelay) Subscribe(ctx context.Context, deliver func(rooms []string, data []byte)) error {
	l := logging.FromContext(ctx).With("svc", "realtime.relay", "channel", r.Channel)

	sub := r.Client.Subscribe(ctx, r.Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: subscribe failed: %w", err)
	}
	l.Info("relay_subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := r.decode(m.Payload)
			if err != nil {
				l.Warn("relay_decode_error", "error", err)
				continue
			}
			if env == nil {
				continue
			}
			deliver(env.Rooms, env.Data)
		}
	}
}

// decode returns nil for envelopes this instance published itself.
func (r *RedisRelay) decode(payload string) (*relayEnvelope, error) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, err
	}
	if env.Origin == r.Origin {
		return nil, nil
	}
	return &env, nil
}
