package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers processed payment event IDs so redelivered
// confirmations become no-ops.
type Deduper interface {
	// MarkProcessed records the event ID and reports whether this is
	// its first occurrence.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	// Forget releases a marked event ID so the provider's retry of the
	// same event is processed again. Called when applying the event
	// failed after the mark.
	Forget(ctx context.Context, eventID string) error
}

// RedisDeduper keys processed events in Redis with a TTL; providers
// redeliver within hours, not weeks.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf("payment_event:%s", eventID)
	first, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set payment event key in redis: %w", err)
	}
	return first, nil
}

func (d *RedisDeduper) Forget(ctx context.Context, eventID string) error {
	key := fmt.Sprintf("payment_event:%s", eventID)
	if err := d.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete payment event key in redis: %w", err)
	}
	return nil
}

// MemoryDeduper is a process-local Deduper for tests and tooling.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]bool)}
}

func (d *MemoryDeduper) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[eventID] {
		return false, nil
	}
	d.seen[eventID] = true
	return true, nil
}

func (d *MemoryDeduper) Forget(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}
