package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease guards work that must run on a single replica at a time.
type Lease interface {
	// Acquire takes or renews the lease and reports whether the caller
	// holds it.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lease up if the caller still holds it.
	Release(ctx context.Context) error
}

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a Lease stored under one Redis key whose value is the
// owner id.  It expires on its own after ttl if the owner dies.
type RedisLease struct {
	client redis.UniversalClient
	key    string
	owner  string
	ttl    time.Duration
}

// NewRedisLease creates a lease on key with a fresh owner id.
func NewRedisLease(client redis.UniversalClient, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{
		client: client,
		key:    key,
		owner:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Owner returns the id written into the lease key.
func (l *RedisLease) Owner() string { return l.owner }

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err()
}
