package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates another actor currently holds the record lock.
var ErrLockHeld = errors.New("record lock held")

// RecordLockKey builds redis keys for line-item critical sections.
func RecordLockKey(entity string, id int64) string {
	return fmt.Sprintf("procurehub:%s:%d:lock", entity, id)
}

// RecordLocker guards short read-modify-write sections with redis SETNX leases.
// It is a second line of defence next to the version check on every update.
type RecordLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRecordLocker constructs a RecordLocker. TTL bounds how long a crashed
// holder can block other writers.
func NewRecordLocker(client *redis.Client, ttl time.Duration) *RecordLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RecordLocker{client: client, ttl: ttl}
}

// Acquire takes the lock or fails with ErrLockHeld. A nil locker is a no-op.
func (l *RecordLocker) Acquire(ctx context.Context, key string) error {
	if l == nil || l.client == nil {
		return nil
	}
	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Release drops the lock. Safe on a nil locker.
func (l *RecordLocker) Release(ctx context.Context, key string) {
	if l == nil || l.client == nil {
		return
	}
	_ = l.client.Del(ctx, key).Err()
}
