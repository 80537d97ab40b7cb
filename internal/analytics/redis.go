// Package analytics aggregates observation events into Redis so an
// external analyzer can count round trips and join tokens without touching
// the event stream itself.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisSink(client *redis.Client, retention time.Duration) *RedisSink {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisSink{client: client, retention: retention}
}

// RecordObservation bumps the minute-bucket observation counter and marks
// the token observed, both with the configured retention.
func (s *RedisSink) RecordObservation(ctx context.Context, token domain.CorrelationToken, at time.Time) error {
	bucketKey := "e2e:observed:" + bucket(at)
	tokenKey := "e2e:corr:" + token.String()

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, bucketKey)
	pipe.Expire(ctx, bucketKey, s.retention)
	pipe.Set(ctx, tokenKey, at.UTC().Format(time.RFC3339Nano), s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func bucket(t time.Time) string {
	return t.UTC().Format("200601021504")
}
