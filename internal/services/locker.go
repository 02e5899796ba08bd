package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrLockNotAcquired = errors.New("slot lock not acquired")

// Locker guards the check-then-insert of a booking for one doctor slot.
type Locker interface {
	WithSlotLock(ctx context.Context, doctorID primitive.ObjectID, slot time.Time, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSlotLocker{client: client, ttl: ttl}
}

func SlotKey(doctorID primitive.ObjectID, slot time.Time) string {
	return fmt.Sprintf("lock:slot:%s:%d", doctorID.Hex(), slot.Unix())
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, doctorID primitive.ObjectID, slot time.Time, fn func(ctx context.Context) error) error {
	key := SlotKey(doctorID, slot)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

// LocalSlotLocker serializes bookings inside one process. Used when Redis is
// not configured; it gives no protection across instances.
type LocalSlotLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalSlotLocker() *LocalSlotLocker {
	return &LocalSlotLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalSlotLocker) WithSlotLock(ctx context.Context, doctorID primitive.ObjectID, slot time.Time, fn func(ctx context.Context) error) error {
	key := SlotKey(doctorID, slot)
	for {
		l.mu.Lock()
		held, busy := l.slots[key]
		if !busy {
			done := make(chan struct{})
			l.slots[key] = done
			l.mu.Unlock()

			defer func() {
				l.mu.Lock()
				delete(l.slots, key)
				l.mu.Unlock()
				close(done)
			}()
			return fn(ctx)
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
