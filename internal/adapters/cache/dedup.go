package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"admissionengine/internal/domain"
)

type redisDeduper struct {
	client redis.Cmdable
	window time.Duration
}

// NewRedisDeduper returns a Deduper that claims (eventID, title) with SET NX
// for window. The first caller inside the window wins across all instances.
func NewRedisDeduper(client redis.Cmdable, window time.Duration) domain.Deduper {
	return &redisDeduper{client: client, window: window}
}

func (d *redisDeduper) Acquire(ctx context.Context, eventID, title string) (bool, error) {
	ok, err := d.client.SetNX(ctx, DedupKey(eventID, title), "1", d.window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return ok, nil
}

// Release deletes the claim so a retry inside the window is not suppressed.
func (d *redisDeduper) Release(ctx context.Context, eventID, title string) error {
	if err := d.client.Del(ctx, DedupKey(eventID, title)).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

// DedupKey is the Redis key guarding one (eventID, title) pair.
func DedupKey(eventID, title string) string {
	sum := sha256.Sum256([]byte(title))
	return "notify:dedup:" + eventID + ":" + hex.EncodeToString(sum[:12])
}
