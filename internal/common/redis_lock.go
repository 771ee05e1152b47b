package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockHeld is returned when another holder owns the lock
	ErrLockHeld = errors.New("lock is held by another owner")
	// ErrLockLost is returned when refreshing a lock that expired
	ErrLockLost = errors.New("lock is no longer held")
)

// Lock is an acquired lock
type Lock interface {
	// Refresh extends the lock to ttl from now
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// RunLocker hands out exclusive, expiring locks by key
type RunLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker coordinates locks across instances through Redis
type RedisLocker struct {
	client *redislock.Client
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: redislock.New(client), prefix: prefix}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, l.prefix+":lock:"+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}
	return &redisLock{lock: lock}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l *redisLock) Refresh(ctx context.Context, ttl time.Duration) error {
	err := l.lock.Refresh(ctx, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrLockLost
	}
	return err
}

func (l *redisLock) Release(ctx context.Context) error {
	return l.lock.Release(ctx)
}

// LocalLocker serializes holders within one process
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, ErrLockHeld
	}
	until := now.Add(ttl)
	l.held[key] = until
	return &localLock{owner: l, key: key, until: until}, nil
}

type localLock struct {
	owner *LocalLocker
	key   string
	until time.Time
}

func (k *localLock) Refresh(_ context.Context, ttl time.Duration) error {
	k.owner.mu.Lock()
	defer k.owner.mu.Unlock()
	now := k.owner.now()
	if !k.owner.held[k.key].Equal(k.until) || !now.Before(k.until) {
		return ErrLockLost
	}
	k.until = now.Add(ttl)
	k.owner.held[k.key] = k.until
	return nil
}

func (k *localLock) Release(context.Context) error {
	k.owner.mu.Lock()
	defer k.owner.mu.Unlock()
	// a lock that expired and was re-taken belongs to the new holder
	if k.owner.held[k.key].Equal(k.until) {
		delete(k.owner.held, k.key)
	}
	return nil
}
