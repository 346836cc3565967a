package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"installpro/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RelayChannel is the redis pub/sub channel live notifications travel on
// between the worker and API processes.
const RelayChannel = "installpro:notifications"

const publishTimeout = 2 * time.Second

type relayEnvelope struct {
	UserID  uuid.UUID       `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// Pusher delivers a payload to a user's live connections.
type Pusher interface {
	PushToUser(userID uuid.UUID, payload []byte)
}

// RedisRelay fans notifications out through redis so that whichever process
// holds the user's socket can deliver it.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisRelay(client redis.UniversalClient) *RedisRelay {
	return &RedisRelay{client: client, channel: RelayChannel}
}

// PushToUser publishes the payload. Failures are logged and dropped.
func (r *RedisRelay) PushToUser(userID uuid.UUID, payload []byte) {
	msg, err := encodeEnvelope(userID, payload)
	if err != nil {
		logger.L().Warn("relay encode failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		logger.L().Warn("relay publish failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// Run forwards relayed messages to the local hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context, local Pusher) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	logger.L().Info("notification relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := decodeEnvelope(msg.Payload)
			if err != nil {
				logger.L().Warn("relay message discarded", zap.Error(err))
				continue
			}
			local.PushToUser(env.UserID, env.Payload)
		}
	}
}

func encodeEnvelope(userID uuid.UUID, payload []byte) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, fmt.Errorf("payload for %s is not valid JSON", userID)
	}
	return json.Marshal(relayEnvelope{UserID: userID, Payload: payload})
}

func decodeEnvelope(raw string) (relayEnvelope, error) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return env, fmt.Errorf("decode relay message: %w", err)
	}
	if env.UserID == uuid.Nil {
		return env, fmt.Errorf("relay message has no user")
	}
	return env, nil
}
