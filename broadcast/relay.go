package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRelayChannel = "matchday:broadcast"
	publishTimeout      = 2 * time.Second
	relayQueueSize      = 1024
)

type relayEnvelope struct {
	Origin    string          `json:"origin"`
	MatchID   int             `json:"matchId"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

// RedisRelay fans events out across instances. Local subscribers are served
// straight from the hub; the Redis copy is for every other instance.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	origin  string
	outbox  chan []byte
	logger  *slog.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, channel string, logger *slog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{
		client:  client,
		hub:     hub,
		channel: channel,
		origin:  uuid.NewString(),
		outbox:  make(chan []byte, relayQueueSize),
		logger:  logger,
	}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Broadcast serves local subscribers and queues the Redis copy; it never
// waits on Redis. When the queue is full the remote copy is dropped.
func (r *RedisRelay) Broadcast(matchID int, eventType string, payload any) {
	r.hub.Broadcast(matchID, eventType, payload)

	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("relay: failed to encode payload", slog.String("event", eventType), slog.Any("error", err))
		return
	}
	msg, err := json.Marshal(relayEnvelope{Origin: r.origin, MatchID: matchID, EventType: eventType, Payload: data})
	if err != nil {
		return
	}

	select {
	case r.outbox <- msg:
	default:
		r.logger.Warn("relay: publish queue full, dropping remote copy",
			slog.Int("match_id", matchID), slog.String("event", eventType))
	}
}

// Run publishes queued events and delivers events published by other
// instances to local subscribers until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("relay subscribed", slog.String("channel", r.channel), slog.String("origin", r.origin))

	pubCtx, stop := context.WithCancel(ctx)
	published := make(chan struct{})
	go func() {
		defer close(published)
		r.publishLoop(pubCtx)
	}()
	defer func() {
		stop()
		<-published
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.outbox:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := r.client.Publish(pubCtx, r.channel, msg).Err()
			cancel()
			if err != nil {
				r.logger.Warn("relay: publish failed", slog.Any("error", err))
			}
		}
	}
}

func (r *RedisRelay) handle(raw string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.logger.Warn("relay: dropping malformed message", slog.Any("error", err))
		return
	}
	if env.Origin == r.origin {
		return
	}
	r.hub.Broadcast(env.MatchID, env.EventType, env.Payload)
}
