package distlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// The release and extend scripts check ownership first: a lock whose lease
// expired mid-run may already belong to another process, and touching it
// would break that process's run.
var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)
	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)
)

// RedisLock serializes campaign runs across hosts with SET NX + TTL. Each
// instance carries its own ownership token, so Release and Extend only act
// on a lock this instance still holds.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLock builds a Redis-backed lock for the given key. The TTL is
// the initial lease; long holders (paced runs, multi-batch sweeps) keep it
// alive with Extend.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    "outreach:lock:" + key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire takes the lock if free. false means another holder has it.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

// Release drops the lock if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if _, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// Extend refreshes the lease. A lock already lost to expiry is not
// re-taken; the refresh silently misses and the next Acquire arbitrates.
func (l *RedisLock) Extend(ctx context.Context, ttl time.Duration) error {
	if _, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Result(); err != nil {
		return fmt.Errorf("extend lock %s: %w", l.key, err)
	}
	return nil
}
