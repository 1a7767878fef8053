package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotObtained = errors.New("lock is held by another process")
)

// Locker выдает эксклюзивную блокировку по ключу
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// Блокировка в Redis: общая для нескольких экземпляров сервиса

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedisLocker: TTL должен перекрывать самую долгую синхронизацию
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{client: redislock.New(rdb), ttl: ttl}
}

func (locker *redisLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	lock, err := locker.client.Obtain(ctx, "lock:"+key, locker.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// Блокировка в памяти процесса: один экземпляр сервиса

type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() Locker {
	return &localLocker{held: make(map[string]struct{})}
}

func (locker *localLocker) Obtain(_ context.Context, key string) (Lock, error) {
	locker.mu.Lock()
	defer locker.mu.Unlock()

	if _, ok := locker.held[key]; ok {
		return nil, ErrNotObtained
	}
	locker.held[key] = struct{}{}
	return &localLock{locker: locker, key: key}, nil
}

type localLock struct {
	locker *localLocker
	key    string
	once   sync.Once
}

func (lock *localLock) Release(_ context.Context) error {
	lock.once.Do(func() {
		lock.locker.mu.Lock()
		delete(lock.locker.held, lock.key)
		lock.locker.mu.Unlock()
	})
	return nil
}
