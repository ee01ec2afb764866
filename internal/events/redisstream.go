package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultStreamPrefix = "events:"
	DefaultMaxLen       = 100_000
)

type RedisStreamConfig struct {
	// Stream name is prefix + topic
	Prefix string

	// Streams are trimmed approximately to this length
	MaxLen int64
}

// RedisStream appends events to redis streams, one stream per topic
type RedisStream struct {
	client redis.UniversalClient
	prefix string
	maxLen int64
}

func NewRedisStream(cfg RedisStreamConfig, client redis.UniversalClient) (*RedisStream, error) {
	if client == nil {
		return nil, errors.New("redis client must not be nil")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultStreamPrefix
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = DefaultMaxLen
	}

	return &RedisStream{client: client, prefix: cfg.Prefix, maxLen: cfg.MaxLen}, nil
}

func (p *RedisStream) Stream(topic string) string {
	return p.prefix + topic
}

func (p *RedisStream) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("error while encoding event. Err: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.Stream(event.Topic),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"key":     event.Key,
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("error while publishing to %s. Err: %w", event.Topic, err)
	}

	return nil
}
