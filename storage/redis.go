package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKey = "medibot:run-lock"

// ErrLockHeld means another medibot invocation is still running
var ErrLockHeld = errors.New("run lock held by another invocation")

// releaseScript deletes the lock only if this invocation still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Storage keeps overlapping cron invocations from hitting Doctolib twice.
// Nothing about slots or doctors is stored.
type Storage struct {
	client *redis.Client
	ttl    time.Duration
	token  string
}

func New(addr, password string, db int, ttl time.Duration) *Storage {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Storage{client: rdb, ttl: ttl, token: uuid.NewString()}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Acquire takes the run lock for ttl. It returns ErrLockHeld if another
// invocation owns it.
func (s *Storage) Acquire(ctx context.Context) error {
	ok, err := s.client.SetNX(ctx, lockKey, s.token, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Release drops the lock if it is still ours; an expired lock is not an error
func (s *Storage) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, s.client, []string{lockKey}, s.token).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}
