package infrastructure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"commitbet/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// unlockLua deletes the lock key only while it still holds the caller's token
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisLocker serializes market mutations across instances with SETNX locks
type RedisLocker struct {
	rdb      *redis.Client
	ttl      time.Duration
	unlockSc *redis.Script
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}

	log.WithField("addr", addr).Info("Connected to Redis")
	return rdb, nil
}

// NewRedisLocker creates a locker whose locks expire after ttl
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		rdb:      rdb,
		ttl:      ttl,
		unlockSc: redis.NewScript(unlockLua),
	}
}

func marketLockKey(key models.MarketKey) string {
	return "commitbet:lock:market:" + key.String()
}

// Lock acquires the market's lock, failing with ErrMarketBusy if another holder has it.
// The returned unlock function is safe to call more than once.
func (l *RedisLocker) Lock(ctx context.Context, key models.MarketKey) (func(), error) {
	token := uuid.New().String()
	lk := marketLockKey(key)

	ok, err := l.rdb.SetNX(ctx, lk, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock for market %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("market %s: %w", key, models.ErrMarketBusy)
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			// The caller's context may already be cancelled
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := l.unlockSc.Run(unlockCtx, l.rdb, []string{lk}, token).Err(); err != nil {
				log.WithFields(log.Fields{
					"marketKey": key,
					"error":     err,
				}).Warn("Failed to release market lock")
			}
		})
	}

	return unlock, nil
}
