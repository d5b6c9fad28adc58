// Package events broadcasts persisted status transitions to subscribers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const connectionTimeout = 2 * time.Second

// Entity kinds.
const (
	EntityDomain  = "domain"
	EntityProduct = "product"
)

// Fields that carry a status machine.
const (
	FieldStatus        = "status"
	FieldVideoStatus   = "video_status"
	FieldPublishStatus = "publish_status"
)

// Event is one persisted status change.
type Event struct {
	Entity   string    `json:"entity"`
	ID       int64     `json:"id"`
	DomainID int64     `json:"domain_id"`
	Field    string    `json:"field"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

// Notifier delivers events. Delivery failures never affect the caller's
// state machine.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}

// RedisNotifier publishes events as JSON on a Redis channel.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRedisClient creates a Redis client and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisNotifier(client redis.UniversalClient, channel string, logger zerolog.Logger) (*RedisNotifier, error) {
	if client == nil {
		return nil, errors.New("events: redis client is nil")
	}
	if channel == "" {
		return nil, errors.New("events: channel is required")
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger, now: time.Now}, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = n.now()
	}
	ev.At = ev.At.UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error().Err(err).Str("entity", ev.Entity).Int64("id", ev.ID).Msg("events: encode failed")
		return
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.logger.Warn().Err(err).
			Str("channel", n.channel).
			Str("entity", ev.Entity).
			Int64("id", ev.ID).
			Str("status", ev.Status).
			Msg("events: publish failed")
	}
}

var (
	_ Notifier = Noop{}
	_ Notifier = (*RedisNotifier)(nil)
)
