package retention

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    "github.com/redis/go-redis/v9"
)

// ErrLocked means another compaction holds the lock.
var ErrLocked = errors.New("compaction already running")

// Locker makes compaction runs mutually exclusive across hosts.
type Locker interface {
    // Acquire returns a release func, or ErrLocked.
    Acquire(ctx context.Context) (release func(), err error)
}

// NoLock is used when no Redis is configured; the operator is then
// responsible for not running two compactions at once.
type NoLock struct{}

func (NoLock) Acquire(context.Context) (func(), error) { return func() {}, nil }

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another run is left alone.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisLock is a SET NX lock with a TTL as a safety net for crashed runs.
type RedisLock struct {
    rdb *redis.Client
    key string
    ttl time.Duration
}

func NewRedisLock(rdb *redis.Client, key string, ttl time.Duration) *RedisLock {
    return &RedisLock{rdb: rdb, key: key, ttl: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context) (func(), error) {
    token := uuid.NewString()
    ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
    if err != nil {
        return nil, fmt.Errorf("acquire compaction lock: %w", err)
    }
    if !ok {
        return nil, ErrLocked
    }
    return func() {
        ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
    }, nil
}
