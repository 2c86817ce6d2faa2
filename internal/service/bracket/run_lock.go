package bracket

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrRunLockHeld = errors.New("another bracket bot holds the run lock for this account and market")

var (
	releaseRunLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)
	refreshRunLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
    return 0
end
`)
)

// RedisRunLock keeps two bot processes from trading the same account and market, since
// both would start their client order ids at 1.
type RedisRunLock struct {
	client redis.UniversalClient
	key    string
	owner  string
	ttl    time.Duration
}

func NewRedisRunLock(client redis.UniversalClient, key string, ttl time.Duration) *RedisRunLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &RedisRunLock{
		client: client,
		key:    key,
		owner:  uuid.NewString(),
		ttl:    ttl,
	}
}

func (l *RedisRunLock) Acquire(ctx context.Context) error {
	acquired, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return err
	}
	if !acquired {
		return ErrRunLockHeld
	}

	return nil
}

// Keep refreshes the lock until ctx is done. lost is called once if ownership is gone.
func (l *RedisRunLock) Keep(ctx context.Context, lost func()) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshed, err := refreshRunLockScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int64()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logrus.WithField("key", l.key).WithError(err).Warn("failed to refresh run lock")
				continue
			}
			if refreshed == 0 {
				logrus.WithField("key", l.key).Error("run lock lost")
				if lost != nil {
					lost()
				}
				return
			}
		}
	}
}

func (l *RedisRunLock) Release(ctx context.Context) error {
	_, err := releaseRunLockScript.Run(ctx, l.client, []string{l.key}, l.owner).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	return nil
}
